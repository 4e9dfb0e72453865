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

// Package bacnet contains the BACnet network-layer address model and the
// constants shared between the wire codecs and the routing engine.
package bacnet

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

const (
	// ProtocolVersion is the only NPDU protocol version this stack speaks.
	ProtocolVersion = 1

	// MaxMACLen is the longest datalink address we can carry: a B/IP MAC is
	// 6 bytes (IPv4 + UDP port), an MS/TP MAC is 1 byte. The extra byte
	// matches the fixed-size address fields of ASHRAE 135.
	MaxMACLen = 7

	// LocalNetwork is the network number that addresses the directly
	// attached network, i.e. no routing information at all.
	LocalNetwork uint16 = 0

	// BroadcastNetwork is the DNET sentinel for a global broadcast.
	BroadcastNetwork uint16 = 0xFFFF
)

// Address is a BACnet address. MAC is the station's address on the directly
// attached link. Net and ADR carry the remote network number and address when
// the message crosses a router; Net 0 means the address is purely local.
//
// Addresses are treated as values: they are copied, never aliased, when they
// cross a packet-processing boundary.
type Address struct {
	MAC []byte
	Net uint16
	ADR []byte
}

// Broadcast returns the address designating a local broadcast on whatever
// datalink it is handed to: a zero-length MAC and the broadcast DNET.
func Broadcast() Address {
	return Address{Net: BroadcastNetwork}
}

// IsBroadcast reports whether the address designates a global broadcast.
func (a Address) IsBroadcast() bool {
	return a.Net == BroadcastNetwork
}

// IsRemote reports whether the address carries routing information, i.e. it
// names a station on a network behind at least one router.
func (a Address) IsRemote() bool {
	return a.Net != LocalNetwork && a.Net != BroadcastNetwork
}

// Copy returns a deep copy. The receiver's byte slices are not shared.
func (a Address) Copy() Address {
	c := Address{Net: a.Net}
	if len(a.MAC) > 0 {
		c.MAC = append([]byte(nil), a.MAC...)
	}
	if len(a.ADR) > 0 {
		c.ADR = append([]byte(nil), a.ADR...)
	}
	return c
}

// Equal reports whether two addresses are byte-for-byte identical.
func (a Address) Equal(o Address) bool {
	return a.Net == o.Net && bytes.Equal(a.MAC, o.MAC) && bytes.Equal(a.ADR, o.ADR)
}

func (a Address) String() string {
	switch {
	case a.Net == BroadcastNetwork:
		return "bcast"
	case a.Net != LocalNetwork:
		return fmt.Sprintf("%d:%s", a.Net, hex.EncodeToString(a.ADR))
	default:
		return hex.EncodeToString(a.MAC)
	}
}

// Priority is the network priority encoded in the two low bits of the NPCI
// control octet.
type Priority uint8

const (
	PriorityNormal Priority = iota
	PriorityUrgent
	PriorityCriticalEquipment
	PriorityLifeSafety
)

func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "normal"
	case PriorityUrgent:
		return "urgent"
	case PriorityCriticalEquipment:
		return "critical_equipment"
	case PriorityLifeSafety:
		return "life_safety"
	}
	return fmt.Sprintf("priority(%d)", uint8(p))
}
