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

package mock

import (
	"bytes"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cardano-relay/ntn-tip/cbor"
	"github.com/cardano-relay/ntn-tip/muxer"
)

// Connection is a net.Conn whose other end is driven by a scripted
// conversation instead of a real relay. Entries are grouped by
// ProtocolId and each group plays out on its own goroutine, independent
// of the others, the same way real mini-protocols don't order their
// messages against one another.
type Connection struct {
	clientConn net.Conn
	serverConn net.Conn
	muxer      *muxer.Muxer
	errChan    chan error
	closeOnce  sync.Once
}

// NewConnection starts a muxer on one end of a net.Pipe and returns the
// other end for the code under test to dial into.
func NewConnection(conversation []ConversationEntry) net.Conn {
	c := &Connection{}
	c.clientConn, c.serverConn = net.Pipe()
	c.muxer = muxer.New(c.serverConn)
	c.errChan = c.muxer.ErrorChan

	byProtocol := make(map[uint16][]ConversationEntry)
	var order []uint16
	for _, entry := range conversation {
		if _, ok := byProtocol[entry.ProtocolId]; !ok {
			order = append(order, entry.ProtocolId)
		}
		byProtocol[entry.ProtocolId] = append(byProtocol[entry.ProtocolId], entry)
	}

	var wg sync.WaitGroup
	for _, protocolId := range order {
		_, recvChan := c.muxer.RegisterProtocol(protocolId)
		entries := byProtocol[protocolId]
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.runEntries(entries, recvChan)
		}()
	}
	c.muxer.Start()

	go func() {
		err, ok := <-c.errChan
		if !ok {
			return
		}
		panic(fmt.Sprintf("mock: muxer error: %s", err))
	}()
	go func() {
		wg.Wait()
	}()
	return c
}

func (c *Connection) Read(b []byte) (int, error)  { return c.clientConn.Read(b) }
func (c *Connection) Write(b []byte) (int, error) { return c.clientConn.Write(b) }

func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.muxer.Stop()
		if cerr := c.clientConn.Close(); cerr != nil {
			err = cerr
			return
		}
		err = c.serverConn.Close()
	})
	return err
}

func (c *Connection) LocalAddr() net.Addr                { return c.clientConn.LocalAddr() }
func (c *Connection) RemoteAddr() net.Addr               { return c.clientConn.RemoteAddr() }
func (c *Connection) SetDeadline(t time.Time) error      { return c.clientConn.SetDeadline(t) }
func (c *Connection) SetReadDeadline(t time.Time) error  { return c.clientConn.SetReadDeadline(t) }
func (c *Connection) SetWriteDeadline(t time.Time) error { return c.clientConn.SetWriteDeadline(t) }

func (c *Connection) runEntries(entries []ConversationEntry, recvChan chan *muxer.Segment) {
	for _, entry := range entries {
		switch entry.Type {
		case EntryTypeInput:
			if err := c.processInput(entry, recvChan); err != nil {
				panic(err.Error())
			}
		case EntryTypeOutput:
			if err := c.processOutput(entry); err != nil {
				panic(fmt.Sprintf("mock: output error: %s", err))
			}
		case EntryTypeClose:
			c.Close()
			return
		default:
			panic(fmt.Sprintf("mock: unknown conversation entry type %d", entry.Type))
		}
	}
}

func (c *Connection) processInput(entry ConversationEntry, recvChan chan *muxer.Segment) error {
	segment, ok := <-recvChan
	if !ok {
		return nil
	}
	if segment.ProtocolIdOnly() != entry.ProtocolId {
		return fmt.Errorf(
			"mock: expected protocol ID %d, got %d",
			entry.ProtocolId,
			segment.ProtocolIdOnly(),
		)
	}
	if segment.IsResponse() != entry.IsResponse {
		return fmt.Errorf(
			"mock: expected response flag %v, got %v",
			entry.IsResponse,
			segment.IsResponse(),
		)
	}
	msgType, err := cbor.DecodeMessageType(segment.Payload)
	if err != nil {
		return fmt.Errorf("mock: decoding message type: %w", err)
	}
	if uint8(msgType) != entry.InputMessageType {
		return fmt.Errorf(
			"mock: expected input message type %d, got %d",
			entry.InputMessageType,
			msgType,
		)
	}
	return nil
}

func (c *Connection) processOutput(entry ConversationEntry) error {
	payload := &bytes.Buffer{}
	for _, msg := range entry.OutputMessages {
		data := msg.Cbor()
		if data == nil {
			var err error
			data, err = cbor.Encode(msg)
			if err != nil {
				return err
			}
		}
		payload.Write(data)
	}
	segment, err := muxer.NewSegment(entry.ProtocolId, payload.Bytes(), entry.IsResponse)
	if err != nil {
		return err
	}
	return c.muxer.Send(segment)
}
