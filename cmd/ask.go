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
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/db-nl-query/internal/utils"
)

var (
	renderAnswers bool
	questionsFile string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer natural language questions about the loaded tables",
	Long: `Generates a SQL query (data questions) or a metadata expression (questions about
tables and columns) with Gemini, runs it and prints the result as a markdown table.`,
	Example: `./nl_query ask "Quantas vendas foram feitas em São Paulo?"
./nl_query ask --render "Which tables have a column named cidade?"
./nl_query ask --file ./questions.txt`,
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	var questions []string
	if q := strings.TrimSpace(strings.Join(args, " ")); q != "" {
		questions = append(questions, q)
	}
	if questionsFile != "" {
		lines, err := utils.ReadLines(questionsFile)
		if err != nil {
			return err
		}
		questions = append(questions, lines...)
	}
	if len(questions) == 0 {
		return errors.New("a question or --file is required")
	}

	ctx := cmd.Context()
	s, closeSession, err := openSession(ctx, true, false)
	if err != nil {
		return err
	}
	defer closeSession()

	out := cmd.OutOrStdout()
	failed := 0
	for i, q := range questions {
		if len(questions) > 1 {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "> %s\n\n", q)
		}
		answer, err := s.Ask(ctx, q)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "ERROR: %v\n", err)
			continue
		}
		printAnswer(out, answer, renderAnswers)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d question(s) could not be answered", failed, len(questions))
	}
	return nil
}

func init() {
	askCmd.Flags().BoolVar(&renderAnswers, "render", false, "Render the answer as styled markdown for the terminal")
	askCmd.Flags().StringVarP(&questionsFile, "file", "f", "", "File with one question per line (blank lines and # comments are skipped)")
}
