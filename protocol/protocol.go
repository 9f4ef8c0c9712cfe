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

// Package protocol implements the mailbox-based plumbing shared by every
// mini-protocol client: encoding outbound messages, decoding inbound
// segments from the muxer, and handing decoded messages to the owning
// client one at a time through a bounded, single-consumer mailbox.
package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cardano-relay/ntn-tip/cbor"
	"github.com/cardano-relay/ntn-tip/muxer"
)

// NewMessageFromCborFunc decodes a full message payload once its leading
// message-type tag has already been extracted.
type NewMessageFromCborFunc func(msgType uint64, data []byte) (Message, error)

// Config describes a single mini-protocol's binding to a Muxer.
type Config struct {
	// ProtocolId is the mini-protocol ID this instance registers.
	ProtocolId uint16
	// Muxer is the shared connection multiplexer.
	Muxer *muxer.Muxer
	// NewMessageFromCbor decodes this mini-protocol's own message set.
	NewMessageFromCbor NewMessageFromCborFunc
	// MailboxSize bounds how many decoded-but-unread messages the
	// demultiplexer will buffer before it blocks. Defaults to 4.
	MailboxSize int
	// Logger receives decode-failure diagnostics. Defaults to
	// slog.Default() when nil.
	Logger *slog.Logger
}

// Protocol is one mini-protocol's connection to the mux layer: it owns the
// send/receive segment channels the muxer allocated for its protocol ID,
// decodes inbound segments on a dedicated goroutine, and exposes the
// result through Recv as a single-consumer mailbox.
type Protocol struct {
	config    Config
	sendChan  chan *muxer.Segment
	recvChan  chan *muxer.Segment
	mailbox   chan Message
	errChan   chan error
	doneChan  chan struct{}
	closeOnce sync.Once
}

// New registers cfg.ProtocolId with cfg.Muxer and starts the demultiplexer.
func New(cfg Config) *Protocol {
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	sendChan, recvChan := cfg.Muxer.RegisterProtocol(cfg.ProtocolId)
	p := &Protocol{
		config:   cfg,
		sendChan: sendChan,
		recvChan: recvChan,
		mailbox:  make(chan Message, cfg.MailboxSize),
		errChan:  make(chan error, 1),
		doneChan: make(chan struct{}),
	}
	go p.demux()
	return p
}

// Send encodes msg as definite-length CBOR and writes it as one segment.
// isResponse is almost always false for this client: every message this
// node-to-node client originates is an initiator-side request.
func (p *Protocol) Send(ctx context.Context, msg Message, isResponse bool) error {
	data, err := cbor.Encode(msg)
	if err != nil {
		return fmt.Errorf("protocol: encoding message: %w", err)
	}
	seg, err := muxer.NewSegment(p.config.ProtocolId, data, isResponse)
	if err != nil {
		return fmt.Errorf("protocol: building segment: %w", err)
	}
	select {
	case p.sendChan <- seg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.doneChan:
		return ErrProtocolShuttingDown
	}
}

// Recv blocks for the next decoded message, or returns ctx's error, or
// returns ErrProtocolShuttingDown once the protocol has been closed and
// drained.
func (p *Protocol) Recv(ctx context.Context) (Message, error) {
	select {
	case msg, ok := <-p.mailbox:
		if !ok {
			return nil, ErrProtocolShuttingDown
		}
		return msg, nil
	case err := <-p.errChan:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the demultiplexer. Safe to call more than once.
func (p *Protocol) Close() {
	p.closeOnce.Do(func() {
		close(p.doneChan)
	})
}

func (p *Protocol) demux() {
	defer close(p.mailbox)
	for {
		select {
		case <-p.doneChan:
			return
		case seg, ok := <-p.recvChan:
			if !ok {
				return
			}
			msg, err := p.decode(seg)
			if err != nil {
				select {
				case p.errChan <- err:
				case <-p.doneChan:
				}
				return
			}
			select {
			case p.mailbox <- msg:
			case <-p.doneChan:
				return
			}
		}
	}
}

func (p *Protocol) decode(seg *muxer.Segment) (Message, error) {
	msgType, err := cbor.DecodeMessageType(seg.Payload)
	if err != nil {
		p.config.Logger.Debug("protocol: decoding message type failed",
			"protocolId", p.config.ProtocolId, "error", err)
		return nil, &CborDecodeError{Detail: "decoding message type", Err: err}
	}
	msg, err := p.config.NewMessageFromCbor(msgType, seg.Payload)
	if err != nil {
		p.config.Logger.Debug("protocol: decoding message body failed",
			"protocolId", p.config.ProtocolId, "msgType", msgType, "error", err)
		return nil, &CborDecodeError{
			Detail: fmt.Sprintf("decoding message body (type %d)", msgType),
			Err:    err,
		}
	}
	msg.SetCbor(seg.Payload)
	return msg, nil
}
