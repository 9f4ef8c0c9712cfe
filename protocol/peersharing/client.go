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

package peersharing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cardano-relay/ntn-tip/muxer"
	"github.com/cardano-relay/ntn-tip/protocol"
)

// Client solicits peer addresses from a relay on a best-effort basis: a
// reply may never arrive, and that's not an error.
type Client struct {
	proto *protocol.Protocol
}

func NewClient(m *muxer.Muxer, logger *slog.Logger) *Client {
	return &Client{
		proto: protocol.New(protocol.Config{
			ProtocolId:         ProtocolId,
			Muxer:              m,
			NewMessageFromCbor: NewMessageFromCbor,
			Logger:             logger,
		}),
	}
}

// RequestPeers sends MsgShareRequest for amount peers (the network spec
// expects 8-25) and waits for either a MsgSharePeers reply or ctx to end.
// A context deadline or cancellation is not treated as an error by the
// caller; the orchestrator expects peer sharing to be best effort.
func (c *Client) RequestPeers(ctx context.Context, amount uint8) ([]PeerAddress, error) {
	defer c.proto.Close()
	if err := c.proto.Send(ctx, NewMsgShareRequest(amount), false); err != nil {
		return nil, fmt.Errorf("peersharing: sending share request: %w", err)
	}
	msg, err := c.proto.Recv(ctx)
	if err != nil {
		return nil, err
	}
	reply, ok := msg.(*MsgSharePeers)
	if !ok {
		return nil, fmt.Errorf("peersharing: unexpected reply message type %d", msg.Type())
	}
	return reply.PeerAddresses, nil
}
