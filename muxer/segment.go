// Copyright 2025 Blink Labs Software
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

package muxer

import (
	"fmt"
	"time"
)

const (
	// SegmentProtocolIdResponseFlag is the high bit of the 16-bit protocol
	// ID field that marks a segment as carrying a responder-side message.
	SegmentProtocolIdResponseFlag = 0x8000

	// SegmentMaxPayloadLength is the largest payload a single segment can
	// carry; the mini-protocol dispatcher never fragments a message across
	// more than one segment, so anything larger is rejected outright.
	SegmentMaxPayloadLength = 65535
)

// SegmentHeader is the 8-byte, big-endian Segment Data Unit header that
// precedes every segment's payload on the wire.
type SegmentHeader struct {
	Timestamp     uint32
	ProtocolId    uint16
	PayloadLength uint16
}

// Segment is one SDU: an 8-byte header plus its payload.
type Segment struct {
	SegmentHeader
	Payload []byte
}

// NewSegment builds a segment for protocolId, tagging it as carrying a
// responder-side message when isResponse is set. It fails if payload is
// larger than a single segment can carry.
func NewSegment(protocolId uint16, payload []byte, isResponse bool) (*Segment, error) {
	if len(payload) > SegmentMaxPayloadLength {
		return nil, fmt.Errorf(
			"muxer: payload length %d exceeds max segment payload length %d",
			len(payload),
			SegmentMaxPayloadLength,
		)
	}
	header := SegmentHeader{
		Timestamp:  uint32(time.Now().UnixMicro() & 0xffffffff),
		ProtocolId: protocolId,
	}
	if isResponse {
		header.ProtocolId |= SegmentProtocolIdResponseFlag
	}
	header.PayloadLength = uint16(len(payload))
	return &Segment{
		SegmentHeader: header,
		Payload:       payload,
	}, nil
}

func (s *SegmentHeader) IsRequest() bool {
	return (s.ProtocolId & SegmentProtocolIdResponseFlag) == 0
}

func (s *SegmentHeader) IsResponse() bool {
	return (s.ProtocolId & SegmentProtocolIdResponseFlag) != 0
}

// ProtocolIdOnly strips the response flag bit, returning the bare
// mini-protocol ID.
func (s *SegmentHeader) ProtocolIdOnly() uint16 {
	return s.ProtocolId &^ SegmentProtocolIdResponseFlag
}
