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

package chainsync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cardano-relay/ntn-tip/muxer"
	"github.com/cardano-relay/ntn-tip/protocol"
	"github.com/cardano-relay/ntn-tip/protocol/common"
)

// UnexpectedError is returned for any reply that isn't an intersect
// found/not-found response.
type UnexpectedError struct {
	MessageType uint8
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("chainsync: unexpected reply message type %d", e.MessageType)
}

// Client drives the one-shot find-intersect exchange used to learn the
// producer's current tip; it doesn't stream blocks.
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

// GetTip sends an empty-point MsgFindIntersect and returns the tip carried
// in whichever reply comes back; an empty point list can never intersect,
// so either reply shape yields a usable tip.
func (c *Client) GetTip(ctx context.Context) (common.Tip, error) {
	defer c.proto.Close()
	if err := c.proto.Send(ctx, NewMsgFindIntersect([]common.Point{}), false); err != nil {
		return common.Tip{}, fmt.Errorf("chainsync: sending find-intersect: %w", err)
	}
	msg, err := c.proto.Recv(ctx)
	if err != nil {
		return common.Tip{}, fmt.Errorf("chainsync: awaiting reply: %w", err)
	}
	reply, ok := msg.(*MsgIntersectReply)
	if !ok {
		return common.Tip{}, &UnexpectedError{MessageType: msg.Type()}
	}
	return reply.Tip, nil
}
