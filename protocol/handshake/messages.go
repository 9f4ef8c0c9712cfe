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

// Package handshake implements mini-protocol 0: version negotiation.
package handshake

import (
	"github.com/cardano-relay/ntn-tip/cbor"
	"github.com/cardano-relay/ntn-tip/protocol"
)

const (
	MessageTypeProposeVersions uint8 = 0
	MessageTypeAcceptVersion   uint8 = 1
	MessageTypeRefuse          uint8 = 2
	MessageTypeQueryReply      uint8 = 3
)

type MsgProposeVersions struct {
	protocol.MessageBase
	VersionMap protocol.ProtocolVersionMap
}

func NewMsgProposeVersions(versionMap protocol.ProtocolVersionMap) *MsgProposeVersions {
	return &MsgProposeVersions{
		MessageBase: protocol.MessageBase{MessageType: MessageTypeProposeVersions},
		VersionMap:  versionMap,
	}
}

type MsgAcceptVersion struct {
	protocol.MessageBase
	Version     uint16
	VersionData cbor.RawValue
}

func NewMsgAcceptVersion(version uint16, versionData protocol.VersionData) (*MsgAcceptVersion, error) {
	data, err := cbor.Encode(versionData)
	if err != nil {
		return nil, err
	}
	return &MsgAcceptVersion{
		MessageBase: protocol.MessageBase{MessageType: MessageTypeAcceptVersion},
		Version:     version,
		VersionData: data,
	}, nil
}

type MsgRefuse struct {
	protocol.MessageBase
	Reason cbor.Value
}

type MsgQueryReply struct {
	protocol.MessageBase
	VersionMap map[uint64]cbor.RawValue
}

// NewMessageFromCbor decodes a handshake message once its leading tag has
// already been read off the wire.
func NewMessageFromCbor(msgType uint64, data []byte) (protocol.Message, error) {
	var msg protocol.Message
	switch uint8(msgType) {
	case MessageTypeAcceptVersion:
		msg = &MsgAcceptVersion{}
	case MessageTypeRefuse:
		msg = &MsgRefuse{}
	case MessageTypeQueryReply:
		msg = &MsgQueryReply{}
	default:
		// An unrecognized tag is still a well-formed reply; hand it back
		// undecoded so Client.Run reports it as an UnexpectedError.
		return &protocol.MessageBase{MessageType: uint8(msgType)}, nil
	}
	if _, err := cbor.Decode(data, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
