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

package peersharing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cardano-relay/ntn-tip/cbor"
	"github.com/cardano-relay/ntn-tip/internal/mock"
	"github.com/cardano-relay/ntn-tip/muxer"
	"github.com/cardano-relay/ntn-tip/protocol"
	"github.com/cardano-relay/ntn-tip/protocol/peersharing"
)

func TestClientRequestPeers(t *testing.T) {
	defer goleak.VerifyNone(t)

	data, err := cbor.Encode([]any{
		uint64(peersharing.MessageTypeSharePeers),
		[]any{
			[]any{uint64(0), uint64(0x0102030A), uint64(3001)},
			[]any{
				uint64(1),
				uint64(0x20010DB8), uint64(0x00000000), uint64(0x00000000), uint64(0x00000001),
				uint64(3001),
			},
		},
	})
	require.NoError(t, err)
	reply := &mock.RawMessage{Data: data, MsgType: peersharing.MessageTypeSharePeers}

	conn := mock.NewConnection([]mock.ConversationEntry{
		{
			Type:             mock.EntryTypeInput,
			ProtocolId:       peersharing.ProtocolId,
			InputMessageType: peersharing.MessageTypeShareRequest,
		},
		{
			Type:           mock.EntryTypeOutput,
			ProtocolId:     peersharing.ProtocolId,
			IsResponse:     true,
			OutputMessages: []protocol.Message{reply},
		},
	})
	defer conn.Close()

	m := muxer.New(conn)
	defer m.Stop()
	client := peersharing.NewClient(m, nil)
	m.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	peers, err := client.RequestPeers(ctx, 8)
	require.NoError(t, err)
	require.Len(t, peers, 2)
	assert.Equal(t, "1.2.3.10", peers[0].IP)
	assert.Equal(t, uint16(3001), peers[0].Port)
	assert.Equal(t, "2001:0db8:0000:0000:0000:0000:0000:0001", peers[1].IP)
	assert.Equal(t, uint16(3001), peers[1].Port)
}
