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
package ingest

import (
	"fmt"
	"strings"
)

// ErrIngestion describes a problem with one source file. It never aborts the batch.
type ErrIngestion struct {
	File    string
	Msg     string
	Warning bool
	Err     error
}

func (e *ErrIngestion) Error() string {
	kind := "error"
	if e.Warning {
		kind = "warning"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s: %s", kind, e.File, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s: %v", kind, e.File, e.Msg, e.Err)
}

func (e *ErrIngestion) Unwrap() error {
	return e.Err
}

// ErrSourceUnavailable is returned when the source directory cannot be read at all.
type ErrSourceUnavailable struct {
	Dir string
	Err error
}

func (e *ErrSourceUnavailable) Error() string {
	return fmt.Sprintf("source directory %s is unavailable: %v", e.Dir, e.Err)
}

func (e *ErrSourceUnavailable) Unwrap() error {
	return e.Err
}

// Report summarizes one ingestion batch.
type Report struct {
	Processed int
	Tables    []string
	Errors    []*ErrIngestion
}

func (r *Report) add(e *ErrIngestion) {
	r.Errors = append(r.Errors, e)
}

// Messages returns the per-file problems as display strings.
func (r *Report) Messages() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Error()
	}
	return out
}

// Warnings counts the non-error entries.
func (r *Report) Warnings() int {
	n := 0
	for _, e := range r.Errors {
		if e.Warning {
			n++
		}
	}
	return n
}

func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d tabular file(s) loaded into the store and metadata updated.", r.Processed)
	if len(r.Tables) > 0 {
		fmt.Fprintf(&b, "\nTables: %s", strings.Join(r.Tables, ", "))
	}
	if len(r.Errors) > 0 {
		b.WriteString("\n\nErrors/warnings during ingestion:\n")
		b.WriteString(strings.Join(r.Messages(), "\n"))
	}
	return b.String()
}
