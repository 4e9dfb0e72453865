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

package router

import (
	"github.com/gopacket/gopacket"

	"github.com/openbacnet/openbacnet/pkg/bacnet"
	"github.com/openbacnet/openbacnet/pkg/blayers"
	"github.com/openbacnet/openbacnet/pkg/log"
)

// routedAPDUHandler relays an APDU per clause 6.5: global broadcasts are
// re-broadcast on every other port, traffic for a directly attached network
// is delivered with the routing information stripped, traffic for a learned
// network is relayed to the next router, and traffic for an unknown network
// is broadcast with the destination retained while the next router is
// searched for.
func (d *dataPlane) routedAPDUHandler(
	ingress *routerPort,
	src bacnet.Address,
	npdu *blayers.NPDU,
	apdu []byte,
) disposition {

	if npdu.DNET == bacnet.BroadcastNetwork {
		if npdu.HopCount == 0 {
			return errorDiscard("error", "hop count exhausted", "dnet", npdu.DNET)
		}
		npdu.HopCount--
		if npdu.HopCount == 0 {
			return errorDiscard("error", "hop count exhausted", "dnet", npdu.DNET)
		}
		out := d.forwardedNPDU(ingress, src, npdu, npdu.Destination())
		pdu, err := serializeForward(out, apdu)
		if err != nil {
			return errorDiscard("error", err)
		}
		for _, p := range d.table.snapshot() {
			if p.net != ingress.net {
				d.send(p, bacnet.Broadcast(), pdu)
			}
		}
		return pForward
	}

	egress, nextHop, found := d.table.lookup(npdu.DNET)
	if !found {
		return d.forwardUnknownRoute(ingress, src, npdu, apdu)
	}
	npdu.HopCount--
	if egress.net == npdu.DNET {
		// Directly attached: DNET, DADR and hop count come off the NPCI and
		// the station is addressed by its MAC. An empty DADR is a broadcast
		// on the destination network.
		out := d.forwardedNPDU(ingress, src, npdu, bacnet.Address{})
		pdu, err := serializeForward(out, apdu)
		if err != nil {
			return errorDiscard("error", err)
		}
		d.send(egress, bacnet.Address{MAC: npdu.DADR}, pdu)
		return pForward
	}
	// Relay to the next router, routing information intact.
	out := d.forwardedNPDU(ingress, src, npdu, npdu.Destination())
	pdu, err := serializeForward(out, apdu)
	if err != nil {
		return errorDiscard("error", err)
	}
	d.send(egress, bacnet.Address{MAC: nextHop}, pdu)
	return pForward
}

// forwardUnknownRoute handles a destination network we have no route for.
// The message is broadcast out every other port with DADR cleared, so that a
// router that does know the network picks it up, and a Who-Is is sent to
// find the next router for subsequent traffic.
func (d *dataPlane) forwardUnknownRoute(
	ingress *routerPort,
	src bacnet.Address,
	npdu *blayers.NPDU,
	apdu []byte,
) disposition {

	log.Debug("Forwarding to unknown network", "dnet", npdu.DNET, "ingress", ingress.net)
	npdu.HopCount--
	dest := bacnet.Address{Net: npdu.DNET}
	out := d.forwardedNPDU(ingress, src, npdu, dest)
	pdu, err := serializeForward(out, apdu)
	if err != nil {
		return errorDiscard("error", err)
	}
	for _, p := range d.table.snapshot() {
		if p.net != ingress.net {
			d.send(p, bacnet.Broadcast(), pdu)
			d.sendWhoIsRouterToNetwork(p, npdu.DNET)
		}
	}
	return pForward
}

// forwardedNPDU builds the header of the outgoing copy: the incoming header
// with the destination replaced and the source set to the routed source.
func (d *dataPlane) forwardedNPDU(
	ingress *routerPort,
	src bacnet.Address,
	npdu *blayers.NPDU,
	dest bacnet.Address,
) *blayers.NPDU {

	out := &blayers.NPDU{
		Version:        bacnet.ProtocolVersion,
		ExpectingReply: npdu.ExpectingReply,
		Priority:       npdu.Priority,
		HopCount:       npdu.HopCount,
	}
	out.SetDestination(dest)
	out.SetSource(d.routedSrcAddress(ingress, src, npdu))
	return out
}

// routedSrcAddress determines the SNET/SADR of the outgoing copy. A message
// that already traveled through a router keeps its source, and that source's
// router is learned as a route. A message from a station on the ingress
// network gets the ingress network and the station's MAC.
func (d *dataPlane) routedSrcAddress(
	ingress *routerPort,
	src bacnet.Address,
	npdu *blayers.NPDU,
) bacnet.Address {

	if npdu.HasSource {
		d.learnRoute(ingress.net, npdu.SNET, src.MAC)
		return bacnet.Address{Net: npdu.SNET, ADR: append([]byte(nil), npdu.SADR...)}
	}
	return bacnet.Address{Net: ingress.net, ADR: append([]byte(nil), src.MAC...)}
}

func serializeForward(npdu *blayers.NPDU, apdu []byte) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(
		buf, gopacket.SerializeOptions{FixLengths: true}, npdu, gopacket.Payload(apdu))
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
