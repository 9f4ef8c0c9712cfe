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

package protocol

// ProtocolVersions lists every node-to-node version this client will
// propose in a handshake, highest-preference first. The responder is
// authoritative about which one is actually negotiated.
var ProtocolVersions = []uint16{15, 14}

// ProtocolVersionMap maps a proposed version number to the version data the
// client offers for it.
type ProtocolVersionMap map[uint16]VersionData

// BuildVersionTable proposes every version in ProtocolVersions with the
// given network magic, diffusion mode, and peer-sharing willingness.
func BuildVersionTable(networkMagic uint32, diffusionMode bool, peerSharing bool) ProtocolVersionMap {
	table := make(ProtocolVersionMap, len(ProtocolVersions))
	for _, version := range ProtocolVersions {
		table[version] = NewVersionData(networkMagic, diffusionMode, peerSharing)
	}
	return table
}
