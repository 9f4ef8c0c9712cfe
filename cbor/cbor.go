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

// Package cbor provides definite-length CBOR encoding and decoding for the
// Ouroboros mini-protocol messages. It wraps github.com/fxamacker/cbor/v2
// rather than implementing CBOR from scratch.
package cbor

const (
	CborTypeByteString uint8 = 0x40
	CborTypeTextString uint8 = 0x60
	CborTypeArray      uint8 = 0x80
	CborTypeMap        uint8 = 0xa0
	CborTypeTag        uint8 = 0xc0

	// Only the top 3 bits are used to specify the major type
	CborTypeMask uint8 = 0xe0

	// Max value able to be stored in a single byte without a length prefix
	CborMaxUintSimple uint8 = 0x17
)

// StructAsArray is embedded in a struct to tell the CBOR encoder/decoder to
// convert it to/from a CBOR array instead of a map, matching the wire shape
// of every Ouroboros mini-protocol message.
type StructAsArray struct {
	_ struct{} `cbor:",toarray"`
}
