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

// Package ntntip fetches a Cardano relay's current chain tip, and
// optionally a list of its gossiped peers, over a single Node-to-Node
// connection: dial, Handshake, then ChainSync (required) and PeerSharing
// (best effort) concurrently.
//
// This package is the primary entry point; the muxer, protocol, and
// protocol/* packages underneath it can be used on their own, but
// supporting that isn't a design goal here.
package ntntip

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cardano-relay/ntn-tip/cbor"
	"github.com/cardano-relay/ntn-tip/muxer"
	"github.com/cardano-relay/ntn-tip/protocol"
	"github.com/cardano-relay/ntn-tip/protocol/chainsync"
	"github.com/cardano-relay/ntn-tip/protocol/common"
	"github.com/cardano-relay/ntn-tip/protocol/handshake"
	"github.com/cardano-relay/ntn-tip/protocol/peersharing"
)

// Peer is one address reported by PeerSharing.
type Peer struct {
	IP   string `json:"ip"`
	Port uint16 `json:"port"`
}

// TipResult is the record a successful Fetch call returns.
type TipResult struct {
	Peer              string   `json:"peer"`
	NegotiatedVersion uint16   `json:"negotiatedVersion"`
	// NegotiatedFeatures lists protocol capabilities the negotiated
	// version implies are available, even though this client doesn't
	// activate them. Currently only "keepAlive" (NtN versions 14/15 both
	// enable the keep-alive mini-protocol); never started here, per the
	// no-long-lived-mini-protocol-state non-goal.
	NegotiatedFeatures []string `json:"negotiatedFeatures"`
	Tip                Tip      `json:"tip"`
	PeersDiscovered    []Peer   `json:"peersDiscovered"`
}

// Tip is the chain tip reported by ChainSync, decoded into its slot,
// block-hash-hex, and block-number fields. If the peer's reply didn't
// match that flat shape, Opaque is true and the JSON output carries the
// raw CBOR-decoded structure instead of slot/hashHex/blockNo.
type Tip struct {
	Slot    uint64
	HashHex string
	BlockNo uint64
	Opaque  bool
	Raw     cbor.Value
}

func (t Tip) MarshalJSON() ([]byte, error) {
	if t.Opaque {
		return json.Marshal(valueToJSON(t.Raw))
	}
	return json.Marshal(struct {
		Slot    uint64 `json:"slot"`
		HashHex string `json:"hashHex"`
		BlockNo uint64 `json:"blockNo"`
	}{t.Slot, t.HashHex, t.BlockNo})
}

// valueToJSON converts a dynamically-typed decoded CBOR value into a
// json.Marshal-able Go value, used only for the tip-shapes this client
// doesn't otherwise model.
func valueToJSON(v cbor.Value) any {
	switch v.Kind() {
	case cbor.KindInteger:
		n, _ := v.Int()
		return n
	case cbor.KindBool:
		b, _ := v.Bool()
		return b
	case cbor.KindBytes:
		b, _ := v.Bytes()
		return hex.EncodeToString(b)
	case cbor.KindText:
		s, _ := v.Text()
		return s
	case cbor.KindArray:
		items, _ := v.Array()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = valueToJSON(item)
		}
		return out
	case cbor.KindMap:
		pairs, _ := v.Map()
		out := make(map[string]any, len(pairs))
		for _, p := range pairs {
			out[p.Key.String()] = valueToJSON(p.Value)
		}
		return out
	default:
		return nil
	}
}

// Client fetches a single TipResult from one relay; it is not meant to be
// reused across successful calls. Close aborts an in-flight Fetch and
// marks the client unusable for any further one.
type Client struct {
	opts      Options
	closeOnce sync.Once
	doneChan  chan struct{}
}

// New builds a Client from the given options, applied over the package
// defaults.
func New(opts ...Option) *Client {
	return &Client{opts: NewOptions(opts...), doneChan: make(chan struct{})}
}

// Close aborts any Fetch call currently running on this Client and causes
// every later Fetch call to fail immediately. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.doneChan)
	})
}

// Fetch dials the configured peer, completes the handshake, and then runs
// ChainSync and (if negotiated) PeerSharing concurrently, returning once
// ChainSync has a tip or an error occurs. The whole call is bounded by the
// configured session timeout regardless of ctx's own deadline.
func (c *Client) Fetch(ctx context.Context) (*TipResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.sessionTimeout)
	defer cancel()
	go func() {
		select {
		case <-c.doneChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	m := muxer.New(conn)
	muxErrChan := m.ErrorChan
	defer m.Stop()

	hsSession, err := c.runHandshake(ctx, m)
	if err != nil {
		return nil, err
	}

	// ChainSync and PeerSharing must register with the muxer before Start
	// releases the demuxer to read beyond the handshake reply; registering
	// after Start would race the read loop's own map lookups.
	csClient := chainsync.NewClient(m, c.opts.logger)
	var psClient *peersharing.Client
	if c.opts.wantPeerSharing && hsSession.VersionData.PeerSharing() {
		psClient = peersharing.NewClient(m, c.opts.logger)
	}
	m.Start()

	tip, peers, err := c.runMiniProtocols(ctx, csClient, psClient, muxErrChan)
	if err != nil {
		return nil, err
	}

	return &TipResult{
		Peer:               c.opts.peerAddress,
		NegotiatedVersion:  hsSession.Version,
		NegotiatedFeatures: negotiatedFeatures(hsSession.Version),
		Tip:                tip,
		PeersDiscovered:    peers,
	}, nil
}

// negotiatedFeatures lists the capabilities a negotiated NtN version
// implies are available, even though Client never activates them. Both
// versions this client proposes enable keep-alive on the responder side.
func negotiatedFeatures(version uint16) []string {
	if version >= 14 {
		return []string{"keepAlive"}
	}
	return nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dial := c.opts.dialFunc
	if dial == nil {
		dial = func(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
			dialer := net.Dialer{Timeout: timeout}
			return dialer.DialContext(ctx, "tcp", addr)
		}
	}
	c.opts.logger.Debug("ntntip: connecting", "peer", c.opts.peerAddress)
	conn, err := dial(ctx, c.opts.peerAddress, c.opts.connectTimeout)
	if err != nil {
		if ctx.Err() != nil {
			c.opts.logger.Warn("ntntip: connect timed out", "peer", c.opts.peerAddress)
			return nil, &Timeout{Scope: TimeoutScopeConnect}
		}
		c.opts.logger.Warn("ntntip: connect failed", "peer", c.opts.peerAddress, "error", err)
		return nil, &ConnectError{Peer: c.opts.peerAddress, Err: err}
	}
	c.opts.logger.Debug("ntntip: connected", "peer", c.opts.peerAddress)
	return conn, nil
}

// runHandshake negotiates a version before the muxer has been started, so
// no other mini-protocol can race bytes onto the wire ahead of it.
func (c *Client) runHandshake(ctx context.Context, m *muxer.Muxer) (*handshake.Session, error) {
	versionTable := protocol.BuildVersionTable(c.opts.networkMagic, false, c.opts.wantPeerSharing)
	hsClient := handshake.NewClient(m, c.opts.logger)
	session, err := hsClient.Run(ctx, versionTable)
	if err != nil {
		var refused *handshake.RefusedError
		var unexpected *handshake.UnexpectedError
		var cborErr *protocol.CborDecodeError
		switch {
		case errors.As(err, &refused):
			c.opts.logger.Warn("ntntip: handshake refused", "reason", refused.Reason.String())
			return nil, &HandshakeRefused{Reason: refused.Reason}
		case errors.As(err, &unexpected):
			c.opts.logger.Warn("ntntip: handshake unexpected reply", "msgType", unexpected.MessageType)
			return nil, &HandshakeUnexpected{MessageType: unexpected.MessageType}
		case errors.As(err, &cborErr):
			return nil, &CborError{Detail: cborErr.Detail, Err: cborErr.Err}
		case ctx.Err() != nil:
			return nil, &Timeout{Scope: TimeoutScopeSession}
		default:
			return nil, fmt.Errorf("handshake: %w", err)
		}
	}
	c.opts.logger.Debug("ntntip: handshake complete", "version", session.Version)
	return session, nil
}

// runMiniProtocols runs ChainSync (required) and, if the negotiated
// version data advertises it, PeerSharing (best effort) concurrently.
// ChainSync's result (or error) decides the overall outcome; PeerSharing
// is given up to the protocol timeout and its failure is swallowed into
// an empty peer list.
func (c *Client) runMiniProtocols(
	ctx context.Context,
	csClient *chainsync.Client,
	psClient *peersharing.Client,
	muxErrChan chan error,
) (Tip, []Peer, error) {
	type chainsyncResult struct {
		tip common.Tip
		err error
	}
	csResultChan := make(chan chainsyncResult, 1)
	go func() {
		csCtx, cancel := context.WithTimeout(ctx, c.opts.protocolTimeout)
		defer cancel()
		c.opts.logger.Debug("ntntip: chainsync exchange starting", "timeout", c.opts.protocolTimeout)
		tip, err := csClient.GetTip(csCtx)
		csResultChan <- chainsyncResult{tip: tip, err: err}
	}()

	var peersResultChan chan []peersharing.PeerAddress
	if psClient != nil {
		peersResultChan = make(chan []peersharing.PeerAddress, 1)
		go func() {
			psCtx, cancel := context.WithTimeout(ctx, c.opts.protocolTimeout)
			defer cancel()
			addrs, err := psClient.RequestPeers(psCtx, c.opts.peerSharingCount)
			if err != nil {
				c.opts.logger.Warn("ntntip: peer sharing failed, continuing without peers", "error", err)
				addrs = nil
			}
			peersResultChan <- addrs
		}()
	}

	var csOutcome chainsyncResult
	select {
	case csOutcome = <-csResultChan:
	case muxErr := <-muxErrChan:
		var framingErr *muxer.FramingError
		if errors.As(muxErr, &framingErr) {
			return Tip{}, nil, &FramingError{Detail: framingErr.Detail, Err: framingErr.Err}
		}
		return Tip{}, nil, &IoError{Err: muxErr}
	case <-ctx.Done():
		return Tip{}, nil, &Timeout{Scope: TimeoutScopeSession}
	}
	if csOutcome.err != nil {
		var cborErr *protocol.CborDecodeError
		switch {
		case errors.As(csOutcome.err, &cborErr):
			return Tip{}, nil, &CborError{Detail: cborErr.Detail, Err: cborErr.Err}
		case ctx.Err() != nil:
			return Tip{}, nil, &Timeout{Scope: TimeoutScopeSession}
		case errors.Is(csOutcome.err, context.DeadlineExceeded):
			c.opts.logger.Warn("ntntip: chainsync protocol timeout exceeded", "timeout", c.opts.protocolTimeout)
			return Tip{}, nil, &Timeout{Scope: TimeoutScopeProtocol}
		default:
			return Tip{}, nil, &ProtocolError{MiniProtocolId: chainsync.ProtocolId, Detail: csOutcome.err.Error()}
		}
	}

	var peers []Peer
	if peersResultChan != nil {
		select {
		case addrs := <-peersResultChan:
			peers = toPeers(addrs)
		case <-time.After(c.opts.protocolTimeout):
			c.opts.logger.Warn("ntntip: peer sharing timed out, continuing without peers")
		}
	}

	return toTip(csOutcome.tip), peers, nil
}

func toTip(t common.Tip) Tip {
	if t.Opaque {
		return Tip{Opaque: true, Raw: t.Raw}
	}
	return Tip{
		Slot:    t.Point.Slot,
		HashHex: t.Point.HashHex(),
		BlockNo: t.BlockNumber,
	}
}

func toPeers(addrs []peersharing.PeerAddress) []Peer {
	if len(addrs) == 0 {
		return nil
	}
	peers := make([]Peer, len(addrs))
	for i, a := range addrs {
		peers[i] = Peer{IP: a.IP, Port: a.Port}
	}
	return peers
}
