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

package ntntip

import (
	"context"
	"log/slog"
	"net"
	"time"
)

const (
	// DefaultSessionTimeout bounds the whole tip fetch: connect, handshake,
	// and both mini-protocol exchanges.
	DefaultSessionTimeout = 15 * time.Second
	// DefaultProtocolTimeout bounds a single mini-protocol's request/reply
	// exchange once the handshake has completed.
	DefaultProtocolTimeout = 12 * time.Second
	// DefaultPeerSharingAmount is the peer count requested via
	// MsgShareRequest.
	DefaultPeerSharingAmount uint8 = 8
)

// Options configures a Client. The zero value is not valid; build one with
// NewOptions and the With* functions below.
type Options struct {
	peerAddress      string
	networkMagic     uint32
	wantPeerSharing  bool
	peerSharingCount uint8
	sessionTimeout   time.Duration
	connectTimeout   time.Duration
	protocolTimeout  time.Duration
	logger           *slog.Logger
	// dialFunc overrides how Client.Fetch obtains its net.Conn. There's no
	// exported With* for this; it exists so this package's own tests can
	// substitute a mock.Connection for a real TCP dial.
	dialFunc func(context.Context, string, time.Duration) (net.Conn, error)
}

// Option mutates an Options value being built up by NewOptions.
type Option func(*Options)

// NewOptions builds an Options value from the package defaults plus any
// overrides, in order.
func NewOptions(opts ...Option) Options {
	o := Options{
		peerAddress:      DefaultRelayAddress,
		networkMagic:     NetworkMagicMainnet,
		wantPeerSharing:  true,
		peerSharingCount: DefaultPeerSharingAmount,
		sessionTimeout:   DefaultSessionTimeout,
		connectTimeout:   DefaultProtocolTimeout,
		protocolTimeout:  DefaultProtocolTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// WithPeerAddress sets the "host:port" of the relay to dial.
func WithPeerAddress(addr string) Option {
	return func(o *Options) { o.peerAddress = addr }
}

// WithNetworkMagic sets the network magic sent in the handshake version
// data. Use one of the NetworkMagic* constants, or a private network's own.
func WithNetworkMagic(magic uint32) Option {
	return func(o *Options) { o.networkMagic = magic }
}

// WithPeerSharing toggles whether the client proposes peer-sharing support
// in the handshake and, if accepted, queries for peer addresses.
// PeerSharing failures never fail the overall call; they just produce an
// empty peersDiscovered list.
func WithPeerSharing(want bool) Option {
	return func(o *Options) { o.wantPeerSharing = want }
}

// WithPeerSharingCount sets the peer count requested from PeerSharing.
func WithPeerSharingCount(n uint8) Option {
	return func(o *Options) { o.peerSharingCount = n }
}

// WithSessionTimeout overrides the whole-call deadline.
func WithSessionTimeout(d time.Duration) Option {
	return func(o *Options) { o.sessionTimeout = d }
}

// WithConnectTimeout overrides the TCP dial deadline.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) { o.connectTimeout = d }
}

// WithProtocolTimeout overrides the per-mini-protocol exchange deadline.
func WithProtocolTimeout(d time.Duration) Option {
	return func(o *Options) { o.protocolTimeout = d }
}

// WithLogger sets the structured logger Fetch reports connect, handshake,
// timeout, and peer-sharing events to. Defaults to slog.Default() when nil
// or unset.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.logger = logger }
}
