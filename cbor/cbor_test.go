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

package cbor_test

import (
	"testing"

	"github.com/cardano-relay/ntn-tip/cbor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMessage struct {
	cbor.StructAsArray
	Type uint64
	Name string
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	orig := testMessage{Type: 4, Name: "hello"}
	data, err := cbor.Encode(&orig)
	require.NoError(t, err)

	var got testMessage
	n, err := cbor.Decode(data, &got)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, orig, got)
}

// No helper type in this package knows how to emit an indefinite-length
// header, so nothing encoded here should ever carry one. Indefinite-length
// major types use the low 5 bits value 31 (0x1f).
func TestEncodeNeverProducesIndefiniteLength(t *testing.T) {
	cases := []any{
		testMessage{Type: 0, Name: "a relay name long enough to span bytes"},
		[]uint64{1, 2, 3, 4, 5},
		map[uint64]string{1: "x", 2: "y"},
		[]byte{0xde, 0xad, 0xbe, 0xef},
	}
	for _, c := range cases {
		data, err := cbor.Encode(c)
		require.NoError(t, err)
		require.NotEmpty(t, data)
		assert.NotEqual(t, byte(0x1f), data[0]&0x1f, "leading byte %x looks indefinite-length", data[0])
	}
}

func TestDecodeMessageType(t *testing.T) {
	data, err := cbor.Encode(&testMessage{Type: 6, Name: "tip"})
	require.NoError(t, err)

	msgType, err := cbor.DecodeMessageType(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), msgType)
}

func TestDecodeMessageTypeLargerValue(t *testing.T) {
	// A message type >= 24 no longer fits in the fast-path single byte, so
	// this exercises the full-decode fallback.
	data, err := cbor.Encode(&testMessage{Type: 30, Name: "overflow"})
	require.NoError(t, err)

	msgType, err := cbor.DecodeMessageType(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), msgType)
}

func TestArrayLength(t *testing.T) {
	data, err := cbor.Encode([]uint64{1, 2, 3})
	require.NoError(t, err)

	n, err := cbor.ArrayLength(data)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestDecodeAcceptsIndefiniteLength(t *testing.T) {
	// Manually built indefinite-length array of two uints: 1, 2.
	indef := []byte{0x9f, 0x01, 0x02, 0xff}

	var got []uint64
	n, err := cbor.Decode(indef, &got)
	require.NoError(t, err)
	assert.Equal(t, len(indef), n)
	assert.Equal(t, []uint64{1, 2}, got)
}

func TestValueDecodesMapWithTextValue(t *testing.T) {
	data, err := cbor.Encode(map[uint64]string{14: "v14"})
	require.NoError(t, err)

	var v cbor.Value
	_, err = cbor.Decode(data, &v)
	require.NoError(t, err)
	require.Equal(t, cbor.KindMap, v.Kind())

	entry, ok := v.MapGet(14)
	require.True(t, ok)
	text, ok := entry.Text()
	require.True(t, ok)
	assert.Equal(t, "v14", text)
}

func TestValueArrayAndScalars(t *testing.T) {
	data, err := cbor.Encode([]any{uint64(2), true, "ok", []byte{0x01, 0x02}})
	require.NoError(t, err)

	var v cbor.Value
	_, err = cbor.Decode(data, &v)
	require.NoError(t, err)

	items, ok := v.Array()
	require.True(t, ok)
	require.Len(t, items, 4)

	n, ok := items[0].Int()
	require.True(t, ok)
	assert.Equal(t, uint64(2), n)

	b, ok := items[1].Bool()
	require.True(t, ok)
	assert.True(t, b)

	s, ok := items[2].Text()
	require.True(t, ok)
	assert.Equal(t, "ok", s)

	raw, ok := items[3].Bytes()
	require.True(t, ok)
	assert.Equal(t, []byte{0x01, 0x02}, raw)
}
