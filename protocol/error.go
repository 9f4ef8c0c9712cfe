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

package protocol

import (
	"errors"
	"fmt"
)

// ErrProtocolShuttingDown is returned by Recv/Send once Close has been
// called and the mailbox has drained.
var ErrProtocolShuttingDown = errors.New("protocol is shutting down")

// CborDecodeError reports a failure to decode an inbound segment's CBOR
// payload, as distinct from a protocol-level violation such as an
// unexpected reply shape.
type CborDecodeError struct {
	Detail string
	Err    error
}

func (e *CborDecodeError) Error() string {
	return fmt.Sprintf("protocol: %s: %s", e.Detail, e.Err)
}

func (e *CborDecodeError) Unwrap() error { return e.Err }
