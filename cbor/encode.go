// Copyright 2023 Blink Labs, LLC.
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

package cbor

import (
	"bytes"
	"sync"

	_cbor "github.com/fxamacker/cbor/v2"
)

var (
	cachedEncMode     _cbor.EncMode
	cachedEncModeErr  error
	cachedEncModeOnce sync.Once
)

// getEncMode returns a cached EncMode configured for definite-length output.
//
// fxamacker/cbor/v2 only emits an indefinite-length header when the caller
// explicitly asks for one (there is no such helper type in this package),
// so using the default array/map/bytestring encoding here is sufficient to
// guarantee every container we produce carries an explicit length prefix.
// Relays drop connections on indefinite-length proposals, so this guarantee
// matters for every client-originated payload.
func getEncMode() (_cbor.EncMode, error) {
	cachedEncModeOnce.Do(func() {
		opts := _cbor.EncOptions{
			// Map keys must be emitted in a deterministic order; the version
			// table is a map[uint16]VersionData and its iteration order is
			// otherwise undefined.
			Sort: _cbor.SortCoreDeterministic,
			// An empty point list or peer list is a meaningful value on the
			// wire (a zero-length definite array), not CBOR null.
			NilContainers: _cbor.NilContainerAsEmpty,
		}
		cachedEncMode, cachedEncModeErr = opts.EncMode()
	})
	return cachedEncMode, cachedEncModeErr
}

// Encode marshals data to definite-length CBOR.
func Encode(data any) ([]byte, error) {
	encMode, err := getEncMode()
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	enc := encMode.NewEncoder(buf)
	if err := enc.Encode(data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
