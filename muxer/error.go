// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package muxer

import "fmt"

// FramingError reports a malformed or truncated SDU: a header that ended
// mid-read, or a payload shorter than its own header declared. This is
// distinct from a plain connection failure (reset, clean close before any
// header byte arrived), which readLoop reports unwrapped.
type FramingError struct {
	Detail string
	Err    error
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("muxer: framing: %s: %s", e.Detail, e.Err)
}

func (e *FramingError) Unwrap() error { return e.Err }
