/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-nl-query/internal/session"
)

const shellHelp = `Type a question to get an answer. Commands:
  /tables   list the loaded tables
  /catalog  print the column metadata
  /clear    drop every loaded table
  /help     show this help
  /quit     leave the shell`

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive question loop over the loaded tables",
	Long:  `Opens a readline prompt where every line is a question. Lines starting with / are shell commands.`,
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

func runShell(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, closeSession, err := openSession(ctx, true, true)
	if err != nil {
		return err
	}
	defer closeSession()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "nl_query> ",
		HistoryFile:       filepath.Join(cfg.Workdir, ".nl_query_history"),
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	out := rl.Stdout()
	fmt.Fprintf(out, "Connected to %s, %d table(s) loaded. Type /help for commands.\n", s.DialectName(), len(s.Tables()))
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) || ctx.Err() != nil {
				fmt.Fprintln(out, "Goodbye!")
				return nil
			}
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			if quit := handleShellCommand(ctx, out, s, input); quit {
				fmt.Fprintln(out, "Goodbye!")
				return nil
			}
			continue
		}

		answer, err := s.Ask(ctx, input)
		if err != nil {
			logger.Error("question failed", zap.Error(err))
			fmt.Fprintf(out, "ERROR: %v\n", err)
			continue
		}
		printAnswer(out, answer, true)
	}
}

// handleShellCommand runs one slash command and reports whether the shell should exit.
func handleShellCommand(ctx context.Context, out io.Writer, s *session.Session, input string) bool {
	name := strings.ToLower(strings.Fields(input)[0])
	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(out, shellHelp)
	case "/tables":
		tables := s.Tables()
		if len(tables) == 0 {
			fmt.Fprintln(out, "No tables loaded.")
			break
		}
		fmt.Fprintln(out, strings.Join(tables, "\n"))
	case "/catalog":
		fmt.Fprintln(out, catalogMarkdown(s.Metadata()))
	case "/clear":
		if err := s.Clear(ctx); err != nil {
			fmt.Fprintf(out, "ERROR: %v\n", err)
			break
		}
		fmt.Fprintln(out, "Environment cleared.")
	default:
		fmt.Fprintf(out, "Unknown command: %s (type /help for available commands)\n", name)
	}
	return false
}
