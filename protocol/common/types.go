// Copyright 2023 Blink Labs Software
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

// Package common holds types shared by more than one mini-protocol.
package common

import (
	"encoding/hex"
	"fmt"

	"github.com/cardano-relay/ntn-tip/cbor"
)

// Point identifies a location on chain by slot and block hash. The origin
// point (before any block) encodes as an empty CBOR array.
type Point struct {
	Slot uint64
	Hash []byte
}

func NewPoint(slot uint64, hash []byte) Point {
	return Point{Slot: slot, Hash: hash}
}

// NewPointOrigin returns the point preceding the first block on chain.
func NewPointOrigin() Point {
	return Point{}
}

func (p Point) IsOrigin() bool {
	return p.Slot == 0 && len(p.Hash) == 0
}

func (p Point) HashHex() string {
	return hex.EncodeToString(p.Hash)
}

func (p Point) MarshalCBOR() ([]byte, error) {
	if p.IsOrigin() {
		return cbor.Encode([]any{})
	}
	return cbor.Encode([]any{p.Slot, p.Hash})
}

func (p *Point) UnmarshalCBOR(data []byte) error {
	n, err := cbor.ArrayLength(data)
	if err != nil {
		return err
	}
	if n == 0 {
		*p = Point{}
		return nil
	}
	var tmp struct {
		cbor.StructAsArray
		Slot uint64
		Hash []byte
	}
	if _, err := cbor.Decode(data, &tmp); err != nil {
		return fmt.Errorf("common: decoding point: %w", err)
	}
	p.Slot = tmp.Slot
	p.Hash = tmp.Hash
	return nil
}

// Tip is the producer's current chain tip as reported by ChainSync: a
// point plus that point's block number. On the wire it is usually the flat
// 3-element array [slot, hash, blockNo], not a nested point structure, but
// this client treats any other shape (a nested origin-tip encoding, say)
// as opaque rather than failing the whole exchange over it: Opaque is true
// and Raw holds the decoded-but-uninterpreted value instead.
type Tip struct {
	Point       Point
	BlockNumber uint64
	Opaque      bool
	Raw         cbor.Value
}

func (t Tip) MarshalCBOR() ([]byte, error) {
	if t.Opaque {
		return t.Raw.Cbor(), nil
	}
	return cbor.Encode([]any{t.Point.Slot, t.Point.Hash, t.BlockNumber})
}

func (t *Tip) UnmarshalCBOR(data []byte) error {
	var tmp struct {
		cbor.StructAsArray
		Slot        uint64
		Hash        []byte
		BlockNumber uint64
	}
	if _, err := cbor.Decode(data, &tmp); err == nil {
		*t = Tip{Point: Point{Slot: tmp.Slot, Hash: tmp.Hash}, BlockNumber: tmp.BlockNumber}
		return nil
	}
	var raw cbor.Value
	if _, err := cbor.Decode(data, &raw); err != nil {
		return fmt.Errorf("common: decoding tip: %w", err)
	}
	*t = Tip{Opaque: true, Raw: raw}
	return nil
}
