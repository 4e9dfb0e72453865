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
	"encoding/binary"
	"fmt"

	"github.com/gopacket/gopacket"

	"github.com/openbacnet/openbacnet/pkg/private/serrors"
)

// RejectReason is the reason octet of a Reject-Message-To-Network.
type RejectReason uint8

const (
	RejectOtherError RejectReason = iota
	RejectNetworkUnreachable
	RejectNetworkBusy
	RejectUnknownMessageType
	RejectMessageTooLong
	RejectSecurityError
	RejectAddressLengthError
)

func (r RejectReason) String() string {
	switch r {
	case RejectOtherError:
		return "other error"
	case RejectNetworkUnreachable:
		return "network unreachable"
	case RejectNetworkBusy:
		return "network is busy"
	case RejectUnknownMessageType:
		return "unknown network message type"
	case RejectMessageTooLong:
		return "message too long"
	case RejectSecurityError:
		return "security error"
	case RejectAddressLengthError:
		return "invalid address length"
	}
	return fmt.Sprintf("reason(%d)", uint8(r))
}

// WhoIsRouterToNetwork is the Who-Is-Router-To-Network body: one optional
// 16-bit network number. A body shorter than two bytes is the "no network
// specified" variant asking for every reachable network.
type WhoIsRouterToNetwork struct {
	BaseLayer
	HasNetwork bool
	Network    uint16
}

func (*WhoIsRouterToNetwork) LayerType() gopacket.LayerType {
	return LayerTypeWhoIsRouterToNetwork
}

func (*WhoIsRouterToNetwork) CanDecode() gopacket.LayerClass {
	return LayerTypeWhoIsRouterToNetwork
}

func (*WhoIsRouterToNetwork) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypePayload
}

func (w *WhoIsRouterToNetwork) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < 2 {
		// No network specified: ask for everything we can reach.
		w.HasNetwork = false
		w.Network = 0
		w.BaseLayer = BaseLayer{Contents: data}
		return nil
	}
	w.HasNetwork = true
	w.Network = binary.BigEndian.Uint16(data)
	w.BaseLayer = BaseLayer{Contents: data[:2], Payload: data[2:]}
	return nil
}

func (w *WhoIsRouterToNetwork) SerializeTo(
	b gopacket.SerializeBuffer,
	opts gopacket.SerializeOptions,
) error {

	if !w.HasNetwork {
		return nil
	}
	bytes, err := b.PrependBytes(2)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(bytes, w.Network)
	return nil
}

func decodeWhoIsRouterToNetwork(data []byte, pb gopacket.PacketBuilder) error {
	w := &WhoIsRouterToNetwork{}
	if err := w.DecodeFromBytes(data, pb); err != nil {
		return err
	}
	pb.AddLayer(w)
	return nil
}

// IAmRouterToNetwork is the I-Am-Router-To-Network body: zero or more 16-bit
// network numbers reachable through the sender.
type IAmRouterToNetwork struct {
	BaseLayer
	Networks []uint16
}

func (*IAmRouterToNetwork) LayerType() gopacket.LayerType {
	return LayerTypeIAmRouterToNetwork
}

func (*IAmRouterToNetwork) CanDecode() gopacket.LayerClass {
	return LayerTypeIAmRouterToNetwork
}

func (*IAmRouterToNetwork) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypePayload
}

func (i *IAmRouterToNetwork) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	n := len(data) / 2
	i.Networks = make([]uint16, 0, n)
	for k := 0; k < n; k++ {
		i.Networks = append(i.Networks, binary.BigEndian.Uint16(data[2*k:]))
	}
	// A trailing odd byte is ignored, matching the lenient reference decoder.
	i.BaseLayer = BaseLayer{Contents: data[:2*n], Payload: data[2*n:]}
	return nil
}

func (i *IAmRouterToNetwork) SerializeTo(
	b gopacket.SerializeBuffer,
	opts gopacket.SerializeOptions,
) error {

	bytes, err := b.PrependBytes(2 * len(i.Networks))
	if err != nil {
		return err
	}
	for k, net := range i.Networks {
		binary.BigEndian.PutUint16(bytes[2*k:], net)
	}
	return nil
}

func decodeIAmRouterToNetwork(data []byte, pb gopacket.PacketBuilder) error {
	i := &IAmRouterToNetwork{}
	if err := i.DecodeFromBytes(data, pb); err != nil {
		return err
	}
	pb.AddLayer(i)
	return nil
}

// RejectMessageToNetwork is the Reject-Message-To-Network body: one reason
// octet followed by the 16-bit network the rejection refers to.
type RejectMessageToNetwork struct {
	BaseLayer
	Reason  RejectReason
	Network uint16
}

func (*RejectMessageToNetwork) LayerType() gopacket.LayerType {
	return LayerTypeRejectMessageToNetwork
}

func (*RejectMessageToNetwork) CanDecode() gopacket.LayerClass {
	return LayerTypeRejectMessageToNetwork
}

func (*RejectMessageToNetwork) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypePayload
}

func (r *RejectMessageToNetwork) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < 1 {
		df.SetTruncated()
		return serrors.New("Reject-Message-To-Network without reason octet")
	}
	r.Reason = RejectReason(data[0])
	r.Network = 0
	if len(data) >= 3 {
		r.Network = binary.BigEndian.Uint16(data[1:])
		r.BaseLayer = BaseLayer{Contents: data[:3], Payload: data[3:]}
		return nil
	}
	r.BaseLayer = BaseLayer{Contents: data[:1], Payload: data[1:]}
	return nil
}

func (r *RejectMessageToNetwork) SerializeTo(
	b gopacket.SerializeBuffer,
	opts gopacket.SerializeOptions,
) error {

	bytes, err := b.PrependBytes(3)
	if err != nil {
		return err
	}
	bytes[0] = uint8(r.Reason)
	binary.BigEndian.PutUint16(bytes[1:], r.Network)
	return nil
}

func decodeRejectMessageToNetwork(data []byte, pb gopacket.PacketBuilder) error {
	r := &RejectMessageToNetwork{}
	if err := r.DecodeFromBytes(data, pb); err != nil {
		return err
	}
	pb.AddLayer(r)
	return nil
}

// RtEntry is one routing-table entry of an Initialize-Routing-Table message:
// a network number, a port ID and opaque port info.
type RtEntry struct {
	Network  uint16
	PortID   uint8
	PortInfo []byte
}

// InitRtTable is the Initialize-Routing-Table body: a count octet followed by
// count entries. A count of zero requests the receiver's table.
type InitRtTable struct {
	BaseLayer
	Entries []RtEntry
}

func (*InitRtTable) LayerType() gopacket.LayerType {
	return LayerTypeInitRtTable
}

func (*InitRtTable) CanDecode() gopacket.LayerClass {
	return LayerTypeInitRtTable
}

func (*InitRtTable) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypePayload
}

func (i *InitRtTable) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	entries, contents, err := decodeRtEntries(data, df)
	if err != nil {
		return err
	}
	i.Entries = entries
	i.BaseLayer = BaseLayer{Contents: data[:contents], Payload: data[contents:]}
	return nil
}

func (i *InitRtTable) SerializeTo(
	b gopacket.SerializeBuffer,
	opts gopacket.SerializeOptions,
) error {

	return serializeRtEntries(b, i.Entries)
}

func decodeInitRtTable(data []byte, pb gopacket.PacketBuilder) error {
	i := &InitRtTable{}
	if err := i.DecodeFromBytes(data, pb); err != nil {
		return err
	}
	pb.AddLayer(i)
	return nil
}

// InitRtTableAck is the Initialize-Routing-Table-Ack body. Same wire shape as
// InitRtTable.
type InitRtTableAck struct {
	BaseLayer
	Entries []RtEntry
}

func (*InitRtTableAck) LayerType() gopacket.LayerType {
	return LayerTypeInitRtTableAck
}

func (*InitRtTableAck) CanDecode() gopacket.LayerClass {
	return LayerTypeInitRtTableAck
}

func (*InitRtTableAck) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypePayload
}

func (i *InitRtTableAck) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	entries, contents, err := decodeRtEntries(data, df)
	if err != nil {
		return err
	}
	i.Entries = entries
	i.BaseLayer = BaseLayer{Contents: data[:contents], Payload: data[contents:]}
	return nil
}

func (i *InitRtTableAck) SerializeTo(
	b gopacket.SerializeBuffer,
	opts gopacket.SerializeOptions,
) error {

	return serializeRtEntries(b, i.Entries)
}

func decodeInitRtTableAck(data []byte, pb gopacket.PacketBuilder) error {
	i := &InitRtTableAck{}
	if err := i.DecodeFromBytes(data, pb); err != nil {
		return err
	}
	pb.AddLayer(i)
	return nil
}

func decodeRtEntries(data []byte, df gopacket.DecodeFeedback) ([]RtEntry, int, error) {
	if len(data) < 1 {
		df.SetTruncated()
		return nil, 0, serrors.New("routing table message without count octet")
	}
	count := int(data[0])
	entries := make([]RtEntry, 0, count)
	offset := 1
	for k := 0; k < count; k++ {
		if len(data) < offset+4 {
			df.SetTruncated()
			return nil, 0, serrors.New("truncated routing table entry", "entry", k)
		}
		e := RtEntry{
			Network: binary.BigEndian.Uint16(data[offset:]),
			PortID:  data[offset+2],
		}
		infoLen := int(data[offset+3])
		offset += 4
		if len(data) < offset+infoLen {
			df.SetTruncated()
			return nil, 0, serrors.New("truncated port info", "entry", k, "len", infoLen)
		}
		if infoLen > 0 {
			e.PortInfo = data[offset : offset+infoLen]
		}
		offset += infoLen
		entries = append(entries, e)
	}
	return entries, offset, nil
}

func serializeRtEntries(b gopacket.SerializeBuffer, entries []RtEntry) error {
	if len(entries) > 255 {
		return serrors.New("too many routing table entries", "count", len(entries))
	}
	size := 1
	for _, e := range entries {
		if len(e.PortInfo) > 255 {
			return serrors.New("port info too long", "len", len(e.PortInfo))
		}
		size += 4 + len(e.PortInfo)
	}
	bytes, err := b.PrependBytes(size)
	if err != nil {
		return err
	}
	bytes[0] = uint8(len(entries))
	offset := 1
	for _, e := range entries {
		binary.BigEndian.PutUint16(bytes[offset:], e.Network)
		bytes[offset+2] = e.PortID
		bytes[offset+3] = uint8(len(e.PortInfo))
		offset += 4
		offset += copy(bytes[offset:], e.PortInfo)
	}
	return nil
}
