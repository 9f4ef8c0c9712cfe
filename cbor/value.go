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
	"fmt"
	"sort"
)

// Kind identifies which variant of Value is populated.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInteger
	KindBool
	KindBytes
	KindText
	KindArray
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindBool:
		return "bool"
	case KindBytes:
		return "bytes"
	case KindText:
		return "text"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "invalid"
	}
}

// Pair is one key/value entry of a decoded CBOR map. A decoded map keeps
// its pairs in a slice sorted by ascending key, since a Value's fields make
// it unsuitable as a Go map key.
type Pair struct {
	Key   Value
	Value Value
}

// Value is a dynamically-typed decoded CBOR value, the tagged sum that the
// message layer pattern-matches on instead of working with bare interface{}.
// Byte strings are stored internally as Go strings for cheap comparisons.
type Value struct {
	kind    Kind
	integer uint64
	boolean bool
	text    string
	array   []Value
	mapping []Pair
	raw     string
}

func (v Value) Kind() Kind { return v.kind }

// Cbor returns the original undecoded CBOR bytes for this value.
func (v Value) Cbor() []byte { return []byte(v.raw) }

func (v Value) Int() (uint64, bool) {
	if v.kind != KindInteger {
		return 0, false
	}
	return v.integer, true
}

func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.boolean, true
}

func (v Value) Bytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return []byte(v.text), true
}

func (v Value) Text() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.text, true
}

func (v Value) Array() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.array, true
}

func (v Value) Map() ([]Pair, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.mapping, true
}

// MapGet looks up a map value by an integer key, which covers every tagged
// map the handshake and chain-sync messages use.
func (v Value) MapGet(key uint64) (Value, bool) {
	for _, p := range v.mapping {
		if n, ok := p.Key.Int(); ok && n == key {
			return p.Value, true
		}
	}
	return Value{}, false
}

func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return fmt.Sprintf("%d", v.integer)
	case KindBool:
		return fmt.Sprintf("%t", v.boolean)
	case KindBytes:
		return fmt.Sprintf("%x", []byte(v.text))
	case KindText:
		return v.text
	case KindArray:
		return fmt.Sprintf("%v", v.array)
	case KindMap:
		return fmt.Sprintf("%v", v.mapping)
	default:
		return "<invalid>"
	}
}

// UnmarshalCBOR implements cbor.Unmarshaler by switching on the major type
// of the leading byte and recursing into children as needed.
func (v *Value) UnmarshalCBOR(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("cbor: empty value")
	}
	v.raw = string(data)
	majorType := data[0] & CborTypeMask
	switch majorType {
	case CborTypeArray:
		var items []Value
		if _, err := Decode(data, &items); err != nil {
			return err
		}
		v.kind = KindArray
		v.array = items
	case CborTypeMap:
		// Every map this client sends or receives (the handshake version
		// table) keys on a small unsigned integer, so that's the only key
		// shape Value needs to support.
		var raw map[uint64]RawValue
		if _, err := Decode(data, &raw); err != nil {
			return err
		}
		pairs := make([]Pair, 0, len(raw))
		for key, rv := range raw {
			var val Value
			if _, err := Decode(rv, &val); err != nil {
				return err
			}
			pairs = append(pairs, Pair{Key: Value{kind: KindInteger, integer: key}, Value: val})
		}
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key.integer < pairs[j].Key.integer })
		v.kind = KindMap
		v.mapping = pairs
	case CborTypeTextString:
		var s string
		if _, err := Decode(data, &s); err != nil {
			return err
		}
		v.kind = KindText
		v.text = s
	case CborTypeByteString:
		var b []byte
		if _, err := Decode(data, &b); err != nil {
			return err
		}
		v.kind = KindBytes
		v.text = string(b)
	case CborTypeTag:
		// Unwrap the tag and decode its contents directly; this client has
		// no need to round-trip tag numbers, only the tip/version payloads
		// nested inside them.
		var raw _rawTag
		if _, err := Decode(data, &raw); err != nil {
			return err
		}
		var inner Value
		if _, err := Decode(raw.Content, &inner); err != nil {
			return err
		}
		*v = inner
		v.raw = string(data)
	default:
		// Only booleans (simple values 0xf4/0xf5) and unsigned integers
		// are supported here; null, floats, negative integers and other
		// simple values are rejected with an error.
		switch data[0] {
		case 0xf4:
			v.kind = KindBool
			v.boolean = false
			return nil
		case 0xf5:
			v.kind = KindBool
			v.boolean = true
			return nil
		}
		var u uint64
		if _, err := Decode(data, &u); err == nil {
			v.kind = KindInteger
			v.integer = u
			return nil
		}
		return fmt.Errorf("cbor: unsupported value with leading byte 0x%x", data[0])
	}
	return nil
}

type _rawTag struct {
	_       struct{} `cbor:",toarray"`
	Number  uint64
	Content RawValue
}
