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

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cardano-relay/ntn-tip"
)

func main() {
	flagset := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	address := flagset.String(
		"address",
		ntntip.DefaultRelayAddress,
		"relay address in host:port format",
	)
	network := flagset.String(
		"network",
		"mainnet",
		"well-known network name (mainnet, preprod, preview); overridden by -network-magic",
	)
	networkMagic := flagset.Uint(
		"network-magic",
		0,
		"network magic; overrides -network when non-zero",
	)
	peerSharing := flagset.Bool(
		"peer-sharing",
		true,
		"request peer addresses via the PeerSharing mini-protocol",
	)
	sessionTimeout := flagset.Duration(
		"session-timeout",
		ntntip.DefaultSessionTimeout,
		"overall deadline for the connect+handshake+fetch sequence",
	)
	connectTimeout := flagset.Duration(
		"connect-timeout",
		ntntip.DefaultProtocolTimeout,
		"TCP dial deadline",
	)
	protocolTimeout := flagset.Duration(
		"protocol-timeout",
		ntntip.DefaultProtocolTimeout,
		"per-mini-protocol exchange deadline",
	)
	debug := flagset.Bool(
		"debug",
		false,
		"log connect/handshake/timeout events at debug level to stderr",
	)
	if err := flagset.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse command args: %s\n", err)
		os.Exit(1)
	}

	logLevel := slog.LevelWarn
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	magic := uint32(*networkMagic)
	if magic == 0 {
		resolved, ok := ntntip.NetworkMagicByName(*network)
		if !ok {
			fmt.Fprintf(os.Stderr, "invalid network: %s\n", *network)
			os.Exit(1)
		}
		magic = resolved
	}

	client := ntntip.New(
		ntntip.WithPeerAddress(*address),
		ntntip.WithNetworkMagic(magic),
		ntntip.WithPeerSharing(*peerSharing),
		ntntip.WithSessionTimeout(*sessionTimeout),
		ntntip.WithConnectTimeout(*connectTimeout),
		ntntip.WithProtocolTimeout(*protocolTimeout),
		ntntip.WithLogger(logger),
	)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *sessionTimeout+time.Second)
	defer cancel()
	result, err := client.Fetch(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: encoding result: %s\n", err)
		os.Exit(1)
	}
}
