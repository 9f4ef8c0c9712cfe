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

package common_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardano-relay/ntn-tip/cbor"
	"github.com/cardano-relay/ntn-tip/protocol/common"
)

func TestTipUnmarshalCBORFlatTriple(t *testing.T) {
	hash := make([]byte, 32)
	data, err := cbor.Encode([]any{uint64(142), hash, uint64(9001)})
	require.NoError(t, err)

	var tip common.Tip
	_, err = cbor.Decode(data, &tip)
	require.NoError(t, err)
	assert.False(t, tip.Opaque)
	assert.Equal(t, uint64(142), tip.Point.Slot)
	assert.Equal(t, uint64(9001), tip.BlockNumber)
}

// A tip shaped as [point, blockNo] (a nested origin-tip encoding, say)
// doesn't match the flat 3-element triple this client otherwise expects;
// it must decode into an opaque passthrough instead of an error.
func TestTipUnmarshalCBOROpaqueFallback(t *testing.T) {
	data, err := cbor.Encode([]any{
		[]any{},
		uint64(0),
	})
	require.NoError(t, err)

	var tip common.Tip
	_, err = cbor.Decode(data, &tip)
	require.NoError(t, err)
	require.True(t, tip.Opaque)
	items, ok := tip.Raw.Array()
	require.True(t, ok)
	require.Len(t, items, 2)

	reencoded, err := tip.MarshalCBOR()
	require.NoError(t, err)
	assert.Equal(t, data, reencoded)
}
