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
package genai

import "fmt"

// ErrGeneration is returned when the generator fails or returns unusable output.
type ErrGeneration struct {
	Msg string
	Err error
}

func (e *ErrGeneration) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("generation error: %s", e.Msg)
	}
	return fmt.Sprintf("generation error: %s: %v", e.Msg, e.Err)
}

func (e *ErrGeneration) Unwrap() error {
	return e.Err
}
