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

// Package blayers provides gopacket layers for the BACnet network layer: the
// NPDU header (NPCI) and the network-layer message bodies, bit-exact per
// ASHRAE 135 clause 6.2.
package blayers

import (
	"encoding/binary"
	"fmt"

	"github.com/gopacket/gopacket"

	"github.com/openbacnet/openbacnet/pkg/bacnet"
	"github.com/openbacnet/openbacnet/pkg/private/serrors"
)

// NPCI control octet bits.
const (
	ctrlNetworkMessage = 0x80
	ctrlDestPresent    = 0x20
	ctrlSrcPresent     = 0x08
	ctrlExpectingReply = 0x04
	ctrlPriorityMask   = 0x03
)

// DefaultHopCount is the initial hop count for messages we originate.
const DefaultHopCount = 255

// MessageType identifies a network-layer message.
type MessageType uint8

const (
	MsgWhoIsRouterToNetwork          MessageType = 0x00
	MsgIAmRouterToNetwork            MessageType = 0x01
	MsgICouldBeRouterToNetwork       MessageType = 0x02
	MsgRejectMessageToNetwork        MessageType = 0x03
	MsgRouterBusyToNetwork           MessageType = 0x04
	MsgRouterAvailableToNetwork      MessageType = 0x05
	MsgInitRtTable                   MessageType = 0x06
	MsgInitRtTableAck                MessageType = 0x07
	MsgEstablishConnectionToNetwork  MessageType = 0x08
	MsgDisconnectConnectionToNetwork MessageType = 0x09
)

// IsVendorSpecific reports whether the message type is in the vendor range,
// in which case a 2-byte vendor ID follows the type on the wire.
func (t MessageType) IsVendorSpecific() bool {
	return t >= 0x80
}

func (t MessageType) String() string {
	switch t {
	case MsgWhoIsRouterToNetwork:
		return "Who-Is-Router-To-Network"
	case MsgIAmRouterToNetwork:
		return "I-Am-Router-To-Network"
	case MsgICouldBeRouterToNetwork:
		return "I-Could-Be-Router-To-Network"
	case MsgRejectMessageToNetwork:
		return "Reject-Message-To-Network"
	case MsgRouterBusyToNetwork:
		return "Router-Busy-To-Network"
	case MsgRouterAvailableToNetwork:
		return "Router-Available-To-Network"
	case MsgInitRtTable:
		return "Initialize-Routing-Table"
	case MsgInitRtTableAck:
		return "Initialize-Routing-Table-Ack"
	case MsgEstablishConnectionToNetwork:
		return "Establish-Connection-To-Network"
	case MsgDisconnectConnectionToNetwork:
		return "Disconnect-Connection-To-Network"
	}
	return fmt.Sprintf("Unknown(0x%02x)", uint8(t))
}

// NPDU is the BACnet network-layer header. The payload is either a
// network-layer message body (NetworkMessage true) or an APDU.
type NPDU struct {
	BaseLayer
	Version        uint8
	NetworkMessage bool
	ExpectingReply bool
	Priority       bacnet.Priority

	// Destination network and address, valid if HasDestination. A DADR of
	// length zero with HasDestination set is a broadcast on DNET.
	HasDestination bool
	DNET           uint16
	DADR           []byte
	// HopCount is on the wire only when a destination is present.
	HopCount uint8

	// Source network and address, valid if HasSource.
	HasSource bool
	SNET      uint16
	SADR      []byte

	// MessageType is valid if NetworkMessage. Vendor-specific types carry a
	// vendor ID.
	MessageType MessageType
	VendorID    uint16
}

func (n *NPDU) LayerType() gopacket.LayerType {
	return LayerTypeBACnetNPDU
}

func (n *NPDU) CanDecode() gopacket.LayerClass {
	return LayerClassBACnetNPDU
}

func (n *NPDU) NextLayerType() gopacket.LayerType {
	if !n.NetworkMessage {
		return gopacket.LayerTypePayload
	}
	switch n.MessageType {
	case MsgWhoIsRouterToNetwork:
		return LayerTypeWhoIsRouterToNetwork
	case MsgIAmRouterToNetwork:
		return LayerTypeIAmRouterToNetwork
	case MsgRejectMessageToNetwork:
		return LayerTypeRejectMessageToNetwork
	case MsgInitRtTable:
		return LayerTypeInitRtTable
	case MsgInitRtTableAck:
		return LayerTypeInitRtTableAck
	}
	return gopacket.LayerTypePayload
}

// SetDestination fills the destination fields from a. A local address
// (Net 0) clears the destination: the message is delivered by the datalink
// alone and carries no DNET/DADR/hop count.
func (n *NPDU) SetDestination(a bacnet.Address) {
	if a.Net == bacnet.LocalNetwork {
		n.HasDestination = false
		n.DNET = 0
		n.DADR = nil
		return
	}
	n.HasDestination = true
	n.DNET = a.Net
	n.DADR = append([]byte(nil), a.ADR...)
}

// SetSource fills the source fields from a. A local address clears them.
func (n *NPDU) SetSource(a bacnet.Address) {
	if a.Net == bacnet.LocalNetwork {
		n.HasSource = false
		n.SNET = 0
		n.SADR = nil
		return
	}
	n.HasSource = true
	n.SNET = a.Net
	n.SADR = append([]byte(nil), a.ADR...)
}

// Destination returns the destination as an address value. Without a
// destination in the header the zero (local) address is returned.
func (n *NPDU) Destination() bacnet.Address {
	if !n.HasDestination {
		return bacnet.Address{}
	}
	return bacnet.Address{Net: n.DNET, ADR: append([]byte(nil), n.DADR...)}
}

// Source returns the source as an address value, or the zero address if the
// header carries no source.
func (n *NPDU) Source() bacnet.Address {
	if !n.HasSource {
		return bacnet.Address{}
	}
	return bacnet.Address{Net: n.SNET, ADR: append([]byte(nil), n.SADR...)}
}

// DecodeFromBytes implements the gopacket.DecodingLayer interface. Every
// field read is preceded by a remaining-length check; truncated input yields
// an error, never a panic.
func (n *NPDU) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < 2 {
		df.SetTruncated()
		return serrors.New("NPDU too short", "len", len(data))
	}
	n.Version = data[0]
	if n.Version != bacnet.ProtocolVersion {
		return serrors.New("unsupported protocol version", "version", n.Version)
	}
	ctrl := data[1]
	n.NetworkMessage = ctrl&ctrlNetworkMessage != 0
	n.ExpectingReply = ctrl&ctrlExpectingReply != 0
	n.Priority = bacnet.Priority(ctrl & ctrlPriorityMask)
	n.HasDestination = ctrl&ctrlDestPresent != 0
	n.HasSource = ctrl&ctrlSrcPresent != 0
	n.DNET, n.DADR, n.SNET, n.SADR = 0, nil, 0, nil
	n.HopCount = 0

	offset := 2
	if n.HasDestination {
		var err error
		if n.DNET, n.DADR, offset, err = decodeAddressField(data, offset, df); err != nil {
			return serrors.Wrap("decoding destination", err)
		}
	}
	if n.HasSource {
		var err error
		if n.SNET, n.SADR, offset, err = decodeAddressField(data, offset, df); err != nil {
			return serrors.Wrap("decoding source", err)
		}
		if n.SNET == bacnet.BroadcastNetwork {
			return serrors.New("broadcast SNET is invalid")
		}
	}
	if n.HasDestination {
		if len(data) < offset+1 {
			df.SetTruncated()
			return serrors.New("NPDU truncated before hop count")
		}
		n.HopCount = data[offset]
		offset++
	}
	if n.NetworkMessage {
		if len(data) < offset+1 {
			df.SetTruncated()
			return serrors.New("NPDU truncated before message type")
		}
		n.MessageType = MessageType(data[offset])
		offset++
		if n.MessageType.IsVendorSpecific() {
			if len(data) < offset+2 {
				df.SetTruncated()
				return serrors.New("NPDU truncated before vendor ID")
			}
			n.VendorID = binary.BigEndian.Uint16(data[offset:])
			offset += 2
		}
	}
	n.BaseLayer = BaseLayer{Contents: data[:offset], Payload: data[offset:]}
	return nil
}

func decodeAddressField(
	data []byte,
	offset int,
	df gopacket.DecodeFeedback,
) (uint16, []byte, int, error) {

	if len(data) < offset+3 {
		df.SetTruncated()
		return 0, nil, 0, serrors.New("truncated network/length field")
	}
	net := binary.BigEndian.Uint16(data[offset:])
	alen := int(data[offset+2])
	offset += 3
	if alen > bacnet.MaxMACLen {
		return 0, nil, 0, serrors.New("invalid address length", "len", alen)
	}
	if len(data) < offset+alen {
		df.SetTruncated()
		return 0, nil, 0, serrors.New("truncated address", "len", alen)
	}
	// A zero-length address (a broadcast DADR) stays nil so decoded and
	// constructed headers compare equal.
	var adr []byte
	if alen > 0 {
		adr = data[offset : offset+alen]
	}
	return net, adr, offset + alen, nil
}

// SerializeTo implements the gopacket.SerializableLayer interface.
func (n *NPDU) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	if len(n.DADR) > bacnet.MaxMACLen {
		return serrors.New("DADR too long", "len", len(n.DADR))
	}
	if len(n.SADR) > bacnet.MaxMACLen {
		return serrors.New("SADR too long", "len", len(n.SADR))
	}
	bytes, err := b.PrependBytes(n.headerLength())
	if err != nil {
		return err
	}
	bytes[0] = n.Version
	var ctrl uint8
	if n.NetworkMessage {
		ctrl |= ctrlNetworkMessage
	}
	if n.HasDestination {
		ctrl |= ctrlDestPresent
	}
	if n.HasSource {
		ctrl |= ctrlSrcPresent
	}
	if n.ExpectingReply {
		ctrl |= ctrlExpectingReply
	}
	ctrl |= uint8(n.Priority) & ctrlPriorityMask
	bytes[1] = ctrl

	offset := 2
	if n.HasDestination {
		binary.BigEndian.PutUint16(bytes[offset:], n.DNET)
		bytes[offset+2] = uint8(len(n.DADR))
		offset += 3
		offset += copy(bytes[offset:], n.DADR)
	}
	if n.HasSource {
		binary.BigEndian.PutUint16(bytes[offset:], n.SNET)
		bytes[offset+2] = uint8(len(n.SADR))
		offset += 3
		offset += copy(bytes[offset:], n.SADR)
	}
	if n.HasDestination {
		bytes[offset] = n.HopCount
		offset++
	}
	if n.NetworkMessage {
		bytes[offset] = uint8(n.MessageType)
		offset++
		if n.MessageType.IsVendorSpecific() {
			binary.BigEndian.PutUint16(bytes[offset:], n.VendorID)
		}
	}
	return nil
}

func (n *NPDU) headerLength() int {
	l := 2
	if n.HasDestination {
		l += 3 + len(n.DADR) + 1 // DNET, DLEN, DADR, hop count
	}
	if n.HasSource {
		l += 3 + len(n.SADR)
	}
	if n.NetworkMessage {
		l++
		if n.MessageType.IsVendorSpecific() {
			l += 2
		}
	}
	return l
}

func (n *NPDU) String() string {
	if n.NetworkMessage {
		return fmt.Sprintf("NPDU %s dnet=%d hop=%d", n.MessageType, n.DNET, n.HopCount)
	}
	return fmt.Sprintf("NPDU APDU dnet=%d snet=%d hop=%d", n.DNET, n.SNET, n.HopCount)
}

func decodeBACnetNPDU(data []byte, pb gopacket.PacketBuilder) error {
	n := &NPDU{}
	err := n.DecodeFromBytes(data, pb)
	pb.AddLayer(n)
	pb.SetNetworkLayer(n)
	if err != nil {
		return err
	}
	return pb.NextDecoder(n.NextLayerType())
}

// NetworkFlow is required by gopacket.NetworkLayer; BACnet addressing does
// not map onto endpoint flows, so an empty flow is returned.
func (n *NPDU) NetworkFlow() gopacket.Flow {
	return gopacket.Flow{}
}
