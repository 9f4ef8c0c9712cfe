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

package handshake

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cardano-relay/ntn-tip/cbor"
	"github.com/cardano-relay/ntn-tip/muxer"
	"github.com/cardano-relay/ntn-tip/protocol"
)

// ProtocolId is the mini-protocol ID reserved for the handshake.
const ProtocolId uint16 = 0

// Session is the outcome of a successful handshake: the version both
// sides agreed on and the version data the responder echoed back. The
// responder is authoritative, so Version may not be one the client
// proposed.
type Session struct {
	Version     uint16
	VersionData protocol.VersionData
}

// RefusedError is returned when the responder rejects every proposed
// version.
type RefusedError struct {
	Reason cbor.Value
}

func (e *RefusedError) Error() string {
	return fmt.Sprintf("handshake refused: %s", e.Reason.String())
}

// UnexpectedError is returned for any handshake reply that isn't an
// accept or a refuse: an (ignored) query reply, or a message with an
// unrecognized tag.
type UnexpectedError struct {
	MessageType uint8
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("handshake: unexpected reply message type %d", e.MessageType)
}

// Client drives the handshake mini-protocol to completion exactly once; a
// Client is not meant to be reused after Run returns.
type Client struct {
	proto  *protocol.Protocol
	logger *slog.Logger
}

func NewClient(m *muxer.Muxer, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		logger: logger,
		proto: protocol.New(protocol.Config{
			ProtocolId:         ProtocolId,
			Muxer:              m,
			NewMessageFromCbor: NewMessageFromCbor,
			Logger:             logger,
		}),
	}
}

// Run proposes versionTable and waits for the responder's single reply.
func (c *Client) Run(ctx context.Context, versionTable protocol.ProtocolVersionMap) (*Session, error) {
	defer c.proto.Close()
	c.logger.Debug("handshake: proposing versions", "versions", versionTable)
	if err := c.proto.Send(ctx, NewMsgProposeVersions(versionTable), false); err != nil {
		return nil, fmt.Errorf("handshake: sending proposal: %w", err)
	}
	msg, err := c.proto.Recv(ctx)
	if err != nil {
		c.logger.Debug("handshake: awaiting reply failed", "error", err)
		return nil, fmt.Errorf("handshake: awaiting reply: %w", err)
	}
	switch reply := msg.(type) {
	case *MsgAcceptVersion:
		versionData, err := protocol.NewVersionDataFromCbor(reply.VersionData)
		if err != nil {
			return nil, fmt.Errorf("handshake: decoding accepted version data: %w", err)
		}
		c.logger.Debug("handshake: version accepted", "version", reply.Version)
		return &Session{Version: reply.Version, VersionData: versionData}, nil
	case *MsgRefuse:
		c.logger.Debug("handshake: version refused", "reason", reply.Reason.String())
		return nil, &RefusedError{Reason: reply.Reason}
	default:
		return nil, &UnexpectedError{MessageType: msg.Type()}
	}
}
