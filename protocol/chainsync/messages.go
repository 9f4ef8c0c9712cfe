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

// Package chainsync implements the initial intersect-query leg of mini-protocol
// 2, enough to learn the producer's current tip. Block-streaming
// (RequestNext/RollForward/RollBackward) is out of scope for this client.
package chainsync

import (
	"fmt"

	"github.com/cardano-relay/ntn-tip/cbor"
	"github.com/cardano-relay/ntn-tip/protocol"
	"github.com/cardano-relay/ntn-tip/protocol/common"
)

// ProtocolId is the mini-protocol ID for chain synchronization.
const ProtocolId uint16 = 2

const (
	MessageTypeFindIntersect     uint8 = 4
	MessageTypeIntersectFound    uint8 = 5
	MessageTypeIntersectNotFound uint8 = 6
)

type MsgFindIntersect struct {
	protocol.MessageBase
	Points []common.Point
}

func NewMsgFindIntersect(points []common.Point) *MsgFindIntersect {
	return &MsgFindIntersect{
		MessageBase: protocol.MessageBase{MessageType: MessageTypeFindIntersect},
		Points:      points,
	}
}

// MsgIntersectReply covers both MsgIntersectFound ([5, point, tip]) and
// MsgIntersectNotFound ([6, tip]). Sources disagree on which tag is which,
// so rather than decode a fixed shape per tag, the tip is always read as
// the last element of the reply array, which both shapes agree on.
type MsgIntersectReply struct {
	protocol.MessageBase
	Found bool
	Tip   common.Tip
}

// NewMessageFromCbor decodes a chain-sync reply once its leading tag has
// already been read off the wire.
func NewMessageFromCbor(msgType uint64, data []byte) (protocol.Message, error) {
	switch uint8(msgType) {
	case MessageTypeIntersectFound, MessageTypeIntersectNotFound:
	default:
		return nil, fmt.Errorf("chainsync: unknown message type %d", msgType)
	}
	var items []cbor.RawValue
	if _, err := cbor.Decode(data, &items); err != nil {
		return nil, fmt.Errorf("chainsync: decoding reply array: %w", err)
	}
	if len(items) < 2 {
		return nil, fmt.Errorf("chainsync: reply array has %d elements, want at least 2", len(items))
	}
	var tip common.Tip
	if _, err := cbor.Decode(items[len(items)-1], &tip); err != nil {
		return nil, fmt.Errorf("chainsync: decoding tip: %w", err)
	}
	msg := &MsgIntersectReply{
		MessageBase: protocol.MessageBase{MessageType: uint8(msgType)},
		Found:       uint8(msgType) == MessageTypeIntersectFound,
		Tip:         tip,
	}
	return msg, nil
}
