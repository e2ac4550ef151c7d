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
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/GoogleCloudPlatform/db-nl-query/internal/router"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/session"
)

const maxRenderWidth = 120

// answerMarkdown lays out the generated code followed by its formatted result.
func answerMarkdown(a *session.Answer) string {
	if a.Code == "" {
		return a.Output + "\n"
	}
	lang := "sql"
	if a.Kind == router.MetadataQuery {
		lang = "python"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**%s query**\n\n```%s\n%s\n```\n\n", a.Kind, lang, a.Code)
	b.WriteString(a.Output)
	b.WriteString("\n")
	return b.String()
}

// printAnswer writes the answer as plain markdown, or rendered for the terminal when
// render is set. Rendering failures fall back to plain text.
func printAnswer(out io.Writer, a *session.Answer, render bool) {
	text := answerMarkdown(a)
	if render {
		if rendered, err := renderMarkdown(text); err == nil {
			fmt.Fprint(out, rendered)
			return
		}
	}
	fmt.Fprint(out, text)
}

func renderMarkdown(text string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(terminalWidth()),
	)
	if err != nil {
		return "", err
	}
	return r.Render(text)
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	if width > 2 {
		width -= 2
	}
	if width > maxRenderWidth {
		width = maxRenderWidth
	}
	return width
}
