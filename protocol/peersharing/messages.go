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

// Package peersharing implements mini-protocol 10: best-effort solicitation
// of peer addresses from a relay.
package peersharing

import (
	"fmt"

	"github.com/cardano-relay/ntn-tip/cbor"
	"github.com/cardano-relay/ntn-tip/protocol"
)

// ProtocolId is the mini-protocol ID for peer sharing.
const ProtocolId uint16 = 10

const (
	MessageTypeShareRequest uint8 = 0
	MessageTypeSharePeers   uint8 = 1
	MessageTypeDone         uint8 = 2
)

type MsgShareRequest struct {
	protocol.MessageBase
	Amount uint8
}

func NewMsgShareRequest(amount uint8) *MsgShareRequest {
	return &MsgShareRequest{
		MessageBase: protocol.MessageBase{MessageType: MessageTypeShareRequest},
		Amount:      amount,
	}
}

type MsgSharePeers struct {
	protocol.MessageBase
	PeerAddresses []PeerAddress
}

type MsgDone struct {
	protocol.MessageBase
}

func NewMsgDone() *MsgDone {
	return &MsgDone{MessageBase: protocol.MessageBase{MessageType: MessageTypeDone}}
}

// NewMessageFromCbor decodes a peer-sharing message once its leading tag
// has already been read off the wire.
func NewMessageFromCbor(msgType uint64, data []byte) (protocol.Message, error) {
	var msg protocol.Message
	switch uint8(msgType) {
	case MessageTypeSharePeers:
		msg = &MsgSharePeers{}
	case MessageTypeDone:
		msg = &MsgDone{}
	default:
		return nil, fmt.Errorf("peersharing: unknown message type %d", msgType)
	}
	if _, err := cbor.Decode(data, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// PeerAddress is one peer entry from a MsgSharePeers reply, formatted
// eagerly on decode rather than kept as raw words.
type PeerAddress struct {
	IP   string
	Port uint16
}

// UnmarshalCBOR decodes either IPv4 ([0, addr32, port]) or IPv6
// ([1, w0, w1, w2, w3, port]) peer address entries, packing address words
// in network (big-endian) byte order per the current Ouroboros network
// spec, not the little-endian order some older client code used.
func (p *PeerAddress) UnmarshalCBOR(data []byte) error {
	var v cbor.Value
	if _, err := cbor.Decode(data, &v); err != nil {
		return err
	}
	items, ok := v.Array()
	if !ok || len(items) == 0 {
		return fmt.Errorf("peersharing: malformed peer address")
	}
	kind, ok := items[0].Int()
	if !ok {
		return fmt.Errorf("peersharing: peer address type is not an integer")
	}
	switch kind {
	case 0:
		if len(items) != 3 {
			return fmt.Errorf("peersharing: expected 3-element IPv4 address, got %d elements", len(items))
		}
		addr, _ := items[1].Int()
		port, _ := items[2].Int()
		p.IP = fmt.Sprintf(
			"%d.%d.%d.%d",
			byte(addr>>24), byte(addr>>16), byte(addr>>8), byte(addr),
		)
		p.Port = uint16(port)
	case 1:
		if len(items) != 6 {
			return fmt.Errorf("peersharing: expected 6-element IPv6 address, got %d elements", len(items))
		}
		var words [4]uint64
		for i := 0; i < 4; i++ {
			words[i], _ = items[1+i].Int()
		}
		port, _ := items[5].Int()
		p.IP = fmt.Sprintf(
			"%04x:%04x:%04x:%04x:%04x:%04x:%04x:%04x",
			uint16(words[0]>>16), uint16(words[0]),
			uint16(words[1]>>16), uint16(words[1]),
			uint16(words[2]>>16), uint16(words[2]),
			uint16(words[3]>>16), uint16(words[3]),
		)
		p.Port = uint16(port)
	default:
		return fmt.Errorf("peersharing: unknown peer address type %d", kind)
	}
	return nil
}
