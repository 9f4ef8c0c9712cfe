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

package chainsync_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cardano-relay/ntn-tip/cbor"
	"github.com/cardano-relay/ntn-tip/internal/mock"
	"github.com/cardano-relay/ntn-tip/internal/test"
	"github.com/cardano-relay/ntn-tip/muxer"
	"github.com/cardano-relay/ntn-tip/protocol"
	"github.com/cardano-relay/ntn-tip/protocol/chainsync"
)

func intersectNotFoundReply(t *testing.T, slot uint64, hash []byte, blockNo uint64) *mock.RawMessage {
	t.Helper()
	data, err := cbor.Encode([]any{
		uint64(chainsync.MessageTypeIntersectNotFound),
		[]any{slot, hash, blockNo},
	})
	require.NoError(t, err)
	return &mock.RawMessage{Data: data, MsgType: chainsync.MessageTypeIntersectNotFound}
}

func TestClientGetTipFromIntersectNotFound(t *testing.T) {
	defer goleak.VerifyNone(t)

	hash := test.DecodeHexString(strings.Repeat("00", 32))
	reply := intersectNotFoundReply(t, 142857142, hash, 9999999)

	conn := mock.NewConnection([]mock.ConversationEntry{
		{
			Type:             mock.EntryTypeInput,
			ProtocolId:       chainsync.ProtocolId,
			InputMessageType: chainsync.MessageTypeFindIntersect,
		},
		{
			Type:           mock.EntryTypeOutput,
			ProtocolId:     chainsync.ProtocolId,
			IsResponse:     true,
			OutputMessages: []protocol.Message{reply},
		},
	})
	defer conn.Close()

	m := muxer.New(conn)
	defer m.Stop()
	client := chainsync.NewClient(m, nil)
	m.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tip, err := client.GetTip(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(142857142), tip.Point.Slot)
	assert.Equal(t, uint64(9999999), tip.BlockNumber)
	assert.Equal(t, strings.Repeat("00", 32), tip.Point.HashHex())
}

func TestClientGetTipTimesOutWithNoReply(t *testing.T) {
	defer goleak.VerifyNone(t)

	conn := mock.NewConnection([]mock.ConversationEntry{
		{
			Type:             mock.EntryTypeInput,
			ProtocolId:       chainsync.ProtocolId,
			InputMessageType: chainsync.MessageTypeFindIntersect,
		},
	})
	defer conn.Close()

	m := muxer.New(conn)
	defer m.Stop()
	client := chainsync.NewClient(m, nil)
	m.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := client.GetTip(ctx)
	require.Error(t, err)
}
