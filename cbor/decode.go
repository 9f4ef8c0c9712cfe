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
	"errors"
	"fmt"
	"math"
	"sync"

	_cbor "github.com/fxamacker/cbor/v2"
)

var (
	cachedDecMode     _cbor.DecMode
	cachedDecModeErr  error
	cachedDecModeOnce sync.Once
)

// getDecMode returns a cached DecMode. Relays may send either definite or
// indefinite-length containers, and the upstream decoder accepts both without
// extra configuration.
func getDecMode() (_cbor.DecMode, error) {
	cachedDecModeOnce.Do(func() {
		opts := _cbor.DecOptions{
			// A handful of nested points/arrays is normal; this just avoids
			// the stock 32-level default tripping on deeply-nested replies.
			MaxNestedLevels: 64,
		}
		cachedDecMode, cachedDecModeErr = opts.DecMode()
	})
	return cachedDecMode, cachedDecModeErr
}

// Decode unmarshals CBOR data into dest and returns the number of bytes
// consumed, so callers can detect a second message trailing in the same mux
// segment.
func Decode(data []byte, dest any) (int, error) {
	decMode, err := getDecMode()
	if err != nil {
		return 0, err
	}
	r := bytes.NewReader(data)
	dec := decMode.NewDecoder(r)
	if err := dec.Decode(dest); err != nil {
		return 0, err
	}
	return dec.NumBytesRead(), nil
}

// DecodeMessageType extracts the first element of a CBOR array without
// decoding the rest, which is how every Ouroboros mini-protocol message
// discriminates its own type.
func DecodeMessageType(data []byte) (uint64, error) {
	if len(data) == 0 {
		return 0, errors.New("cbor: empty message")
	}
	// Fast path: short arrays whose first element is a small uint (major
	// type 0, value <= 23) are encoded as that single byte with no further
	// prefix, so we can read the message type without a full decode.
	arrayLen, fastErr := arrayLengthFast(data)
	if fastErr == nil && arrayLen > 0 && len(data) > 1 &&
		data[1] <= CborMaxUintSimple {
		return uint64(data[1]), nil
	}
	var tmp []RawValue
	if _, err := Decode(data, &tmp); err != nil {
		return 0, fmt.Errorf("cbor: decode error: %w", err)
	}
	if len(tmp) == 0 {
		return 0, errors.New("cbor: message array is empty")
	}
	var msgType uint64
	if _, err := Decode(tmp[0], &msgType); err != nil {
		return 0, fmt.Errorf("cbor: first array element is not numeric: %w", err)
	}
	return msgType, nil
}

// ArrayLength returns the declared length of a top-level CBOR array.
func ArrayLength(data []byte) (int, error) {
	return arrayLengthFast(data)
}

func arrayLengthFast(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, errors.New("cbor: empty data")
	}
	if data[0] < CborTypeArray || data[0] > CborTypeArray+0x1b {
		return 0, fmt.Errorf("cbor: expected array, got major type 0x%x", data[0]&CborTypeMask)
	}
	if data[0] <= CborTypeArray+CborMaxUintSimple {
		return int(data[0]) - int(CborTypeArray), nil
	}
	// Longer arrays need the full decode to get a trustworthy length.
	var tmp []RawValue
	if _, err := Decode(data, &tmp); err != nil {
		return 0, err
	}
	if len(tmp) > math.MaxInt32 {
		return 0, errors.New("cbor: array too large")
	}
	return len(tmp), nil
}

// RawValue holds the undecoded CBOR bytes for a single value, the way
// encoding/json.RawMessage defers decoding of a JSON value.
type RawValue = _cbor.RawMessage
