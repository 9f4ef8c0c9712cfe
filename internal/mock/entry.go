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

// Package mock simulates the far end of a Node-to-Node connection: a
// scripted sequence of expected inbound segments and scripted outbound
// replies, driven over a net.Pipe so the real muxer and protocol clients
// under test never know they aren't talking to a TCP socket.
package mock

import "github.com/cardano-relay/ntn-tip/protocol"

type EntryType int

const (
	EntryTypeInput  EntryType = 1
	EntryTypeOutput EntryType = 2
	EntryTypeClose  EntryType = 3
)

// ConversationEntry is one scripted step: either an expected inbound
// message on ProtocolId, a scripted outbound reply, or a connection close.
type ConversationEntry struct {
	Type             EntryType
	ProtocolId       uint16
	IsResponse       bool
	OutputMessages   []protocol.Message
	InputMessageType uint8
}

// RawMessage wraps an already-encoded CBOR payload as a protocol.Message,
// for scripting replies whose shape isn't one of the real message structs
// (an unrecognized tag, or a value the client's own decoder would reject).
type RawMessage struct {
	Data    []byte
	MsgType uint8
}

func (m *RawMessage) SetCbor([]byte) {}
func (m *RawMessage) Cbor() []byte   { return m.Data }
func (m *RawMessage) Type() uint8    { return m.MsgType }
