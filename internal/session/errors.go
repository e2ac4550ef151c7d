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
package session

import "fmt"

// ErrQuestion wraps any failure of one question cycle with the user's question and
// the generated code, when there is any.
type ErrQuestion struct {
	Question string
	Code     string
	Err      error
}

func (e *ErrQuestion) Error() string {
	return fmt.Sprintf("could not answer %q: %v", e.Question, e.Err)
}

func (e *ErrQuestion) Unwrap() error {
	return e.Err
}
