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

package muxer_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cardano-relay/ntn-tip/muxer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// mockConn is an in-memory net.Conn backed by two buffers, one per
// direction, so the muxer's read loop and writer can be driven directly
// without a real socket.
type mockConn struct {
	mu       sync.Mutex
	readBuf  *bytes.Buffer
	writeBuf *bytes.Buffer
	closed   bool
}

func newMockConn() *mockConn {
	return &mockConn{readBuf: &bytes.Buffer{}, writeBuf: &bytes.Buffer{}}
}

func (m *mockConn) Read(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, io.EOF
	}
	if m.readBuf.Len() == 0 {
		return 0, io.EOF
	}
	return m.readBuf.Read(b)
}

func (m *mockConn) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, io.ErrClosedPipe
	}
	return m.writeBuf.Write(b)
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) LocalAddr() net.Addr                { return nil }
func (m *mockConn) RemoteAddr() net.Addr               { return nil }
func (m *mockConn) SetDeadline(t time.Time) error      { return nil }
func (m *mockConn) SetReadDeadline(t time.Time) error  { return nil }
func (m *mockConn) SetWriteDeadline(t time.Time) error { return nil }

func (m *mockConn) feed(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readBuf.Write(b)
}

func (m *mockConn) written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, m.writeBuf.Len())
	copy(out, m.writeBuf.Bytes())
	return out
}

func TestNewSegment(t *testing.T) {
	tests := []struct {
		name       string
		protocolId uint16
		payload    []byte
		isResponse bool
		expectErr  bool
	}{
		{name: "request", protocolId: 0x01, payload: []byte("hello"), isResponse: false},
		{name: "response", protocolId: 0x01, payload: []byte("hello"), isResponse: true},
		{name: "empty payload", protocolId: 0x02, payload: []byte{}},
		{name: "maximum payload", protocolId: 0x03, payload: make([]byte, muxer.SegmentMaxPayloadLength)},
		{name: "oversize payload", protocolId: 0x04, payload: make([]byte, muxer.SegmentMaxPayloadLength+1), expectErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg, err := muxer.NewSegment(tt.protocolId, tt.payload, tt.isResponse)
			if tt.expectErr {
				require.Error(t, err)
				assert.Nil(t, seg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.protocolId, seg.ProtocolIdOnly())
			assert.Equal(t, tt.payload, seg.Payload)
			assert.Equal(t, uint16(len(tt.payload)), seg.PayloadLength)
			assert.Equal(t, tt.isResponse, seg.IsResponse())
			assert.Equal(t, !tt.isResponse, seg.IsRequest())
		})
	}
}

func TestSegmentHeaderResponseFlag(t *testing.T) {
	header := muxer.SegmentHeader{ProtocolId: 0x7fff | muxer.SegmentProtocolIdResponseFlag}
	assert.True(t, header.IsResponse())
	assert.False(t, header.IsRequest())
	assert.Equal(t, uint16(0x7fff), header.ProtocolIdOnly())
}

func TestMuxerSendWritesHeaderAndPayload(t *testing.T) {
	defer goleak.VerifyNone(t)

	conn := newMockConn()
	m := muxer.New(conn)
	defer m.Stop()

	seg, err := muxer.NewSegment(0x02, []byte("ping"), false)
	require.NoError(t, err)
	require.NoError(t, m.Send(seg))

	written := conn.written()
	require.Len(t, written, 8+len("ping"))

	var header muxer.SegmentHeader
	require.NoError(t, binary.Read(bytes.NewReader(written[:8]), binary.BigEndian, &header))
	assert.Equal(t, uint16(0x02), header.ProtocolId)
	assert.Equal(t, uint16(len("ping")), header.PayloadLength)
	assert.Equal(t, "ping", string(written[8:]))
}

func TestMuxerSendRejectsOversizePayload(t *testing.T) {
	defer goleak.VerifyNone(t)

	conn := newMockConn()
	m := muxer.New(conn)
	defer m.Stop()

	oversized := &muxer.Segment{
		SegmentHeader: muxer.SegmentHeader{ProtocolId: 0x01},
		Payload:       make([]byte, muxer.SegmentMaxPayloadLength+1),
	}
	assert.Error(t, m.Send(oversized))
}

func TestMuxerDeliversHandshakeBeforeStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	conn := newMockConn()
	seg, err := muxer.NewSegment(muxer.ProtocolHandshake, []byte("v"), true)
	require.NoError(t, err)
	buf := &bytes.Buffer{}
	require.NoError(t, binary.Write(buf, binary.BigEndian, seg.SegmentHeader))
	buf.Write(seg.Payload)
	conn.feed(buf.Bytes())

	m := muxer.New(conn)
	defer m.Stop()
	_, recvChan := m.RegisterProtocol(muxer.ProtocolHandshake)

	select {
	case got := <-recvChan:
		assert.Equal(t, "v", string(got.Payload))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for handshake segment")
	}
}

func TestMuxerStopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	conn := newMockConn()
	m := muxer.New(conn)
	m.Stop()
	m.Stop()
}

func TestMuxerShortHeaderReportsFramingError(t *testing.T) {
	defer goleak.VerifyNone(t)

	conn := newMockConn()
	conn.feed([]byte{0x01, 0x02, 0x03}) // fewer than the 8-byte header

	m := muxer.New(conn)
	defer m.Stop()

	select {
	case err := <-m.ErrorChan:
		var framingErr *muxer.FramingError
		require.ErrorAs(t, err, &framingErr)
		assert.Equal(t, "short segment header", framingErr.Detail)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for framing error")
	}
}

func TestMuxerShortPayloadReportsFramingError(t *testing.T) {
	defer goleak.VerifyNone(t)

	conn := newMockConn()
	seg, err := muxer.NewSegment(0x01, []byte("hello"), false)
	require.NoError(t, err)
	buf := &bytes.Buffer{}
	require.NoError(t, binary.Write(buf, binary.BigEndian, seg.SegmentHeader))
	buf.Write([]byte("he")) // declares 5 payload bytes, delivers 2
	conn.feed(buf.Bytes())

	m := muxer.New(conn)
	defer m.Stop()

	select {
	case err := <-m.ErrorChan:
		var framingErr *muxer.FramingError
		require.ErrorAs(t, err, &framingErr)
		assert.Contains(t, framingErr.Detail, "payload read")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for framing error")
	}
}

// An unregistered (mpid, mode) must be discarded, not torn down into a
// fatal error; the loop keeps reading and still delivers the next segment
// to whichever protocol did register.
func TestMuxerDiscardsUnknownProtocolSegment(t *testing.T) {
	defer goleak.VerifyNone(t)

	conn := newMockConn()
	unknownSeg, err := muxer.NewSegment(0x99, []byte("x"), false)
	require.NoError(t, err)
	knownSeg, err := muxer.NewSegment(0x05, []byte("y"), false)
	require.NoError(t, err)
	buf := &bytes.Buffer{}
	for _, seg := range []*muxer.Segment{unknownSeg, knownSeg} {
		require.NoError(t, binary.Write(buf, binary.BigEndian, seg.SegmentHeader))
		buf.Write(seg.Payload)
	}
	conn.feed(buf.Bytes())

	m := muxer.New(conn)
	defer m.Stop()
	_, recvChan := m.RegisterProtocol(0x05)

	select {
	case got := <-recvChan:
		assert.Equal(t, "y", string(got.Payload))
	case err := <-m.ErrorChan:
		t.Fatalf("unexpected muxer error: %s", err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for known-protocol segment")
	}
}
