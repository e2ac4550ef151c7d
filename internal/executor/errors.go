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
package executor

import "fmt"

// ErrQueryExecution is returned when the store rejects a generated statement. It
// always carries the attempted query text.
type ErrQueryExecution struct {
	Msg   string
	Query string
	Err   error
}

func (e *ErrQueryExecution) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("query execution error: %s\nattempted query: %s", e.Msg, e.Query)
	}
	return fmt.Sprintf("query execution error: %s: %v\nattempted query: %s", e.Msg, e.Err, e.Query)
}

func (e *ErrQueryExecution) Unwrap() error {
	return e.Err
}

// ErrExpressionExecution is returned when a metadata expression cannot be parsed or
// evaluated. It always carries the attempted expression text.
type ErrExpressionExecution struct {
	Msg        string
	Expression string
	Err        error
}

func (e *ErrExpressionExecution) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("expression execution error: %s\nattempted expression: %s", e.Msg, e.Expression)
	}
	return fmt.Sprintf("expression execution error: %s: %v\nattempted expression: %s", e.Msg, e.Err, e.Expression)
}

func (e *ErrExpressionExecution) Unwrap() error {
	return e.Err
}
