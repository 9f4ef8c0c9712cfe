// Copyright 2023 Blink Labs, LLC.
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

package protocol

import "github.com/cardano-relay/ntn-tip/cbor"

// Peer sharing values carried in the version data's third field, not to be
// confused with the PeerSharing mini-protocol's own message tags.
const (
	PeerSharingModeDisabled = 0
	PeerSharingModeEnabled  = 1
)

// VersionData is the node-to-node handshake version data shape used by
// protocol versions 14 and 15, the only versions this client proposes.
// It's always a 4-element CBOR array: network magic, diffusion mode,
// peer-sharing willingness, and a query flag reserved for local clients.
type VersionData struct {
	cbor.StructAsArray
	CborNetworkMagic                       uint32
	CborInitiatorAndResponderDiffusionMode bool
	CborPeerSharing                        uint
	CborQuery                              bool
}

func NewVersionData(networkMagic uint32, diffusionMode bool, peerSharing bool) VersionData {
	mode := uint(PeerSharingModeDisabled)
	if peerSharing {
		mode = PeerSharingModeEnabled
	}
	return VersionData{
		CborNetworkMagic:                       networkMagic,
		CborInitiatorAndResponderDiffusionMode: diffusionMode,
		CborPeerSharing:                        mode,
	}
}

func NewVersionDataFromCbor(cborData []byte) (VersionData, error) {
	var v VersionData
	_, err := cbor.Decode(cborData, &v)
	return v, err
}

func (v VersionData) NetworkMagic() uint32 {
	return v.CborNetworkMagic
}

func (v VersionData) DiffusionMode() bool {
	return v.CborInitiatorAndResponderDiffusionMode
}

func (v VersionData) PeerSharing() bool {
	return v.CborPeerSharing >= PeerSharingModeEnabled
}
