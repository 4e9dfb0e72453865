// Copyright 2025 The OpenBACnet Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package blayers

import (
	"github.com/gopacket/gopacket"
)

var (
	LayerTypeBACnetNPDU = gopacket.RegisterLayerType(
		1000,
		gopacket.LayerTypeMetadata{
			Name:    "BACnetNPDU",
			Decoder: gopacket.DecodeFunc(decodeBACnetNPDU),
		},
	)
	LayerClassBACnetNPDU gopacket.LayerClass = LayerTypeBACnetNPDU

	LayerTypeWhoIsRouterToNetwork = gopacket.RegisterLayerType(
		1001,
		gopacket.LayerTypeMetadata{
			Name:    "BACnetWhoIsRouterToNetwork",
			Decoder: gopacket.DecodeFunc(decodeWhoIsRouterToNetwork),
		},
	)
	LayerTypeIAmRouterToNetwork = gopacket.RegisterLayerType(
		1002,
		gopacket.LayerTypeMetadata{
			Name:    "BACnetIAmRouterToNetwork",
			Decoder: gopacket.DecodeFunc(decodeIAmRouterToNetwork),
		},
	)
	LayerTypeRejectMessageToNetwork = gopacket.RegisterLayerType(
		1003,
		gopacket.LayerTypeMetadata{
			Name:    "BACnetRejectMessageToNetwork",
			Decoder: gopacket.DecodeFunc(decodeRejectMessageToNetwork),
		},
	)
	LayerTypeInitRtTable = gopacket.RegisterLayerType(
		1004,
		gopacket.LayerTypeMetadata{
			Name:    "BACnetInitializeRoutingTable",
			Decoder: gopacket.DecodeFunc(decodeInitRtTable),
		},
	)
	LayerTypeInitRtTableAck = gopacket.RegisterLayerType(
		1005,
		gopacket.LayerTypeMetadata{
			Name:    "BACnetInitializeRoutingTableAck",
			Decoder: gopacket.DecodeFunc(decodeInitRtTableAck),
		},
	)
)
