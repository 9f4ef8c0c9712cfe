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

// NetworkMagic values for the well-known public Cardano networks. Any
// other uint32 is accepted as a private/custom network's magic.
const (
	NetworkMagicMainnet uint32 = 764824073
	NetworkMagicPreprod uint32 = 1
	NetworkMagicPreview uint32 = 2
)

// DefaultRelayAddress is a public mainnet relay used when the caller
// hasn't supplied its own peer-registry lookup.
const DefaultRelayAddress = "backbone.cardano.iog.io:3001"

// NetworkMagicByName maps the well-known network names accepted on the
// tip-client command line to their magic. The zero value, ok=false,
// signals an unrecognized name.
func NetworkMagicByName(name string) (uint32, bool) {
	switch name {
	case "mainnet":
		return NetworkMagicMainnet, true
	case "preprod":
		return NetworkMagicPreprod, true
	case "preview":
		return NetworkMagicPreview, true
	default:
		return 0, false
	}
}
