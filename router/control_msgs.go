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
	"strconv"

	"github.com/gopacket/gopacket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/openbacnet/openbacnet/pkg/bacnet"
	"github.com/openbacnet/openbacnet/pkg/blayers"
	"github.com/openbacnet/openbacnet/pkg/log"
)

// handleNetworkMessage implements the receiving side of clause 6.6. The
// message was addressed to the local network or globally broadcast; the
// caller already dropped anything bound for a remote DNET.
func (d *dataPlane) handleNetworkMessage(
	ingress *routerPort,
	src bacnet.Address,
	npdu *blayers.NPDU,
) disposition {

	disp := d.networkMessage(ingress, src, npdu)
	if disp == pControl {
		d.Metrics.ControlMessagesTotal.With(prometheus.Labels{
			"net":  strconv.Itoa(int(ingress.net)),
			"type": npdu.MessageType.String(),
		}).Inc()
	}
	return disp
}

func (d *dataPlane) networkMessage(
	ingress *routerPort,
	src bacnet.Address,
	npdu *blayers.NPDU,
) disposition {

	body := npdu.LayerPayload()
	switch npdu.MessageType {
	case blayers.MsgWhoIsRouterToNetwork:
		return d.handleWhoIsRouterToNetwork(ingress, body)
	case blayers.MsgIAmRouterToNetwork:
		return d.handleIAmRouterToNetwork(ingress, src, body)
	case blayers.MsgICouldBeRouterToNetwork:
		// Same treatment as I-Am would get from a non-half-router: none.
		return pControl
	case blayers.MsgRejectMessageToNetwork:
		var reject blayers.RejectMessageToNetwork
		if err := reject.DecodeFromBytes(body, gopacket.NilDecodeFeedback); err != nil {
			return errorDiscard("error", err)
		}
		log.Info("Message rejected by peer router",
			"net", reject.Network, "reason", reject.Reason, "ingress", ingress.net)
		return pControl
	case blayers.MsgRouterBusyToNetwork, blayers.MsgRouterAvailableToNetwork:
		// Upstream congestion control is not supported.
		return pControl
	case blayers.MsgInitRtTable:
		return d.handleInitRtTable(ingress, src, body)
	case blayers.MsgInitRtTableAck:
		return pControl
	case blayers.MsgEstablishConnectionToNetwork,
		blayers.MsgDisconnectConnectionToNetwork:
		// PTP half-router control is not supported.
		return pControl
	}
	// An unrecognized message is bad; tell the sender.
	d.sendRejectMessageToNetwork(
		ingress, bacnet.Address{MAC: src.MAC}, blayers.RejectUnknownMessageType, 0)
	return errorDiscard("error", "unknown network message type", "type", npdu.MessageType)
}

// handleWhoIsRouterToNetwork implements clause 6.6.3.2. A request for a
// network we reach through another port is answered with an I-Am on the
// ingress network. A request for an unknown network is propagated out every
// other port. A request without a network number is answered with the full
// list of networks reachable other than via the ingress port.
func (d *dataPlane) handleWhoIsRouterToNetwork(
	ingress *routerPort,
	body []byte,
) disposition {

	var whoIs blayers.WhoIsRouterToNetwork
	if err := whoIs.DecodeFromBytes(body, gopacket.NilDecodeFeedback); err != nil {
		return errorDiscard("error", err)
	}
	if !whoIs.HasNetwork {
		d.sendIAmRouterToNetwork(ingress, nil)
		return pControl
	}
	port, _, found := d.table.lookup(whoIs.Network)
	if found {
		if port.net != ingress.net {
			d.sendIAmRouterToNetwork(ingress, []uint16{whoIs.Network})
		}
		return pControl
	}
	// Discover the next router on the path to the network.
	for _, p := range d.table.snapshot() {
		if p.net != ingress.net {
			d.sendWhoIsRouterToNetwork(p, whoIs.Network)
		}
	}
	return pControl
}

// handleIAmRouterToNetwork records each advertised network as reachable via
// the advertising router, per clause 6.6.3.3.
func (d *dataPlane) handleIAmRouterToNetwork(
	ingress *routerPort,
	src bacnet.Address,
	body []byte,
) disposition {

	var iAm blayers.IAmRouterToNetwork
	if err := iAm.DecodeFromBytes(body, gopacket.NilDecodeFeedback); err != nil {
		return errorDiscard("error", err)
	}
	for _, net := range iAm.Networks {
		d.learnRoute(ingress.net, net, src.MAC)
	}
	log.Debug("Learned networks", "ingress", ingress.net,
		"router", src, "nets", iAm.Networks)
	return pControl
}

// handleInitRtTable implements clause 6.6.3.8. An empty request asks for our
// table; a non-empty one teaches us the sender's networks. Both get an ack.
func (d *dataPlane) handleInitRtTable(
	ingress *routerPort,
	src bacnet.Address,
	body []byte,
) disposition {

	var initRt blayers.InitRtTable
	if err := initRt.DecodeFromBytes(body, gopacket.NilDecodeFeedback); err != nil {
		return errorDiscard("error", err)
	}
	for _, e := range initRt.Entries {
		d.learnRoute(ingress.net, e.Network, src.MAC)
	}
	d.sendInitRtTableAck(ingress, bacnet.Broadcast())
	return pControl
}

// sendIAmRouterToNetwork broadcasts an I-Am-Router-To-Network on the egress
// port. A nil nets means the full advertisement: every network reachable
// other than via the egress port itself.
func (d *dataPlane) sendIAmRouterToNetwork(egress *routerPort, nets []uint16) {
	if nets == nil {
		for _, p := range d.table.snapshot() {
			if p.net != egress.net {
				nets = append(nets, d.table.reachableVia(p)...)
			}
		}
	}
	if len(nets) == 0 {
		return
	}
	d.sendControl(egress, bacnet.Broadcast(), blayers.MsgIAmRouterToNetwork,
		&blayers.IAmRouterToNetwork{Networks: nets})
}

func (d *dataPlane) sendWhoIsRouterToNetwork(egress *routerPort, net uint16) {
	if m, ok := d.portMetrics[egress.net]; ok {
		m.DiscoverySentTotal.Inc()
	}
	d.sendControl(egress, bacnet.Broadcast(), blayers.MsgWhoIsRouterToNetwork,
		&blayers.WhoIsRouterToNetwork{HasNetwork: net != 0, Network: net})
}

func (d *dataPlane) sendRejectMessageToNetwork(
	egress *routerPort,
	dst bacnet.Address,
	reason blayers.RejectReason,
	net uint16,
) {
	d.sendControl(egress, dst, blayers.MsgRejectMessageToNetwork,
		&blayers.RejectMessageToNetwork{Reason: reason, Network: net})
}

// sendInitRtTableAck reports our ports, one entry per directly attached
// network with no port info.
func (d *dataPlane) sendInitRtTableAck(egress *routerPort, dst bacnet.Address) {
	ports := d.table.snapshot()
	entries := make([]blayers.RtEntry, 0, len(ports))
	for _, p := range ports {
		entries = append(entries, blayers.RtEntry{Network: p.net, PortID: p.id})
	}
	d.sendControl(egress, dst, blayers.MsgInitRtTableAck,
		&blayers.InitRtTableAck{Entries: entries})
}

// sendControl serializes and sends a network message we originate. Broadcast
// destinations carry the global DNET and a fresh hop count, matching what our
// peers put on the wire; unicast replies carry no routing information.
func (d *dataPlane) sendControl(
	egress *routerPort,
	dst bacnet.Address,
	msgType blayers.MessageType,
	body gopacket.SerializableLayer,
) {
	npdu := &blayers.NPDU{
		Version:        bacnet.ProtocolVersion,
		NetworkMessage: true,
		MessageType:    msgType,
	}
	if dst.IsBroadcast() {
		npdu.HasDestination = true
		npdu.DNET = bacnet.BroadcastNetwork
		npdu.HopCount = blayers.DefaultHopCount
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, npdu, body); err != nil {
		log.Error("Serializing network message", "type", msgType, "err", err)
		return
	}
	d.send(egress, bacnet.Address{MAC: dst.MAC}, buf.Bytes())
}

// send hands a serialized PDU to the egress datalink and accounts for it.
func (d *dataPlane) send(egress *routerPort, dst bacnet.Address, pdu []byte) {
	if err := egress.datalink.Send(dst, pdu); err != nil {
		log.Error("Sending PDU", "net", egress.net, "err", err)
		return
	}
	if m, ok := d.portMetrics[egress.net]; ok {
		m.OutputPacketsTotal.Inc()
		m.OutputBytesTotal.Add(float64(len(pdu)))
	}
}
