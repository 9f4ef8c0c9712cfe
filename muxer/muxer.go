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

// Package muxer implements the Ouroboros mux/SDU layer: one TCP connection
// carries many mini-protocols, each distinguished by protocol ID and an
// initiator/responder mode bit in the segment header. There is exactly one
// reader and, behind a shared mutex, exactly one writer.
package muxer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

const (
	// ProtocolHandshake is the mini-protocol ID reserved for the handshake,
	// the protocol a client registers alone before Start is called.
	ProtocolHandshake uint16 = 0
)

// Muxer multiplexes and demultiplexes segments for every registered
// mini-protocol over a single net.Conn.
type Muxer struct {
	conn              net.Conn
	sendMutex         sync.Mutex
	startChan         chan bool
	doneChan          chan bool
	ErrorChan         chan error
	protocolSenders   map[uint16]chan *Segment
	protocolReceivers map[uint16]chan *Segment
}

// New starts a Muxer over conn. The demuxer read loop begins immediately,
// but after delivering the first segment for a registered protocol it reads
// nothing further until Start is called. Segments for unregistered protocols
// are discarded and do not count as that first segment.
func New(conn net.Conn) *Muxer {
	m := &Muxer{
		conn:              conn,
		startChan:         make(chan bool, 1),
		doneChan:          make(chan bool),
		ErrorChan:         make(chan error, 10),
		protocolSenders:   make(map[uint16]chan *Segment),
		protocolReceivers: make(map[uint16]chan *Segment),
	}
	go m.readLoop()
	return m
}

// Start releases the demuxer to deliver segments for every registered
// protocol, not just the handshake. Call this once the handshake confirms.
func (m *Muxer) Start() {
	m.startChan <- true
}

// Stop shuts the muxer down, closing every registered protocol's receive
// channel and the error channel. Safe to call more than once.
func (m *Muxer) Stop() {
	select {
	case <-m.doneChan:
		return
	default:
	}
	for _, recvChan := range m.protocolReceivers {
		close(recvChan)
	}
	close(m.ErrorChan)
	close(m.doneChan)
}

func (m *Muxer) sendError(err error) {
	select {
	case <-m.doneChan:
		return
	default:
	}
	m.ErrorChan <- err
	m.Stop()
}

// RegisterProtocol allocates the send and receive channels for
// protocolId and starts the goroutine that drains the send channel onto
// the wire. Must be called before Start for every mini-protocol the
// connection will use.
func (m *Muxer) RegisterProtocol(protocolId uint16) (chan *Segment, chan *Segment) {
	senderChan := make(chan *Segment, 10)
	receiverChan := make(chan *Segment, 10)
	m.protocolSenders[protocolId] = senderChan
	m.protocolReceivers[protocolId] = receiverChan
	go func() {
		for {
			select {
			case _, ok := <-m.doneChan:
				if !ok {
					return
				}
			case msg := <-senderChan:
				if err := m.Send(msg); err != nil {
					m.sendError(err)
					return
				}
			}
		}
	}()
	return senderChan, receiverChan
}

// Send writes one segment to the wire. Only one goroutine writes to the
// underlying connection at a time.
func (m *Muxer) Send(msg *Segment) error {
	if len(msg.Payload) > SegmentMaxPayloadLength {
		return fmt.Errorf(
			"muxer: payload length %d exceeds max segment payload length %d",
			len(msg.Payload),
			SegmentMaxPayloadLength,
		)
	}
	m.sendMutex.Lock()
	defer m.sendMutex.Unlock()
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.BigEndian, msg.SegmentHeader); err != nil {
		return err
	}
	buf.Write(msg.Payload)
	if _, err := m.conn.Write(buf.Bytes()); err != nil {
		return err
	}
	return nil
}

func (m *Muxer) readLoop() {
	started := false
	for {
		select {
		case <-m.doneChan:
			return
		default:
		}
		header := SegmentHeader{}
		if err := binary.Read(m.conn, binary.BigEndian, &header); err != nil {
			// A header that started but didn't fully arrive before the
			// connection ended is a framing problem, not a plain close; a
			// clean io.EOF with zero bytes read is the latter.
			if errors.Is(err, io.ErrUnexpectedEOF) {
				m.sendError(&FramingError{Detail: "short segment header", Err: err})
			} else {
				m.sendError(err)
			}
			return
		}
		msg := &Segment{
			SegmentHeader: header,
			Payload:       make([]byte, header.PayloadLength),
		}
		if _, err := io.ReadFull(m.conn, msg.Payload); err != nil {
			m.sendError(&FramingError{
				Detail: fmt.Sprintf("payload read: declared length %d", header.PayloadLength),
				Err:    err,
			})
			return
		}
		recvChan := m.protocolReceivers[msg.ProtocolIdOnly()]
		if recvChan == nil {
			// No caller ever registered this (mpid, mode), e.g. a relay
			// proactively pinging KeepAlive (mpid 8) on a connection this
			// client never asked for it on. Discard and keep reading
			// rather than tearing down the session over a protocol this
			// client doesn't speak.
			continue
		}
		recvChan <- msg
		// Hold back on reading a second segment until the handshake
		// confirms; the handshake protocol must own the connection alone
		// until then.
		if !started {
			select {
			case <-m.doneChan:
				return
			case <-m.startChan:
				started = true
			}
		}
	}
}
