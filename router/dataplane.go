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

// Package router implements the BACnet network layer: a routing table over a
// set of datalink ports, the network-layer control message behaviors of
// ASHRAE 135 clause 6.6, and the relaying rules of clause 6.5.
package router

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gopacket/gopacket"
	"golang.org/x/sync/errgroup"

	"github.com/openbacnet/openbacnet/pkg/bacnet"
	"github.com/openbacnet/openbacnet/pkg/blayers"
	"github.com/openbacnet/openbacnet/pkg/log"
	"github.com/openbacnet/openbacnet/pkg/private/serrors"
)

// Datalink is one port of the router: a connection to a directly attached
// BACnet network. Send delivers a serialized NPDU to the station with the
// given MAC; a destination with an empty MAC is a broadcast on the link.
// Implementations deliver received PDUs to the PacketHandler they were
// constructed with.
type Datalink interface {
	Run(ctx context.Context) error
	Send(dst bacnet.Address, pdu []byte) error
	Close() error
}

// PacketHandler consumes PDUs received by a datalink. snet is the network
// number of the port the PDU arrived on, src the link-level source address.
type PacketHandler interface {
	OnPacket(snet uint16, src bacnet.Address, raw []byte)
}

// ApplicationHandler receives the APDUs that are addressed to this router
// itself, i.e. local traffic and broadcasts.
type ApplicationHandler interface {
	HandleAPDU(src bacnet.Address, apdu []byte)
}

type disposition int

const (
	pDiscard disposition = iota // Zero value, default.
	pForward
	pLocal
	pControl
)

var (
	alreadySet     = errors.New("already set")
	emptyValue     = errors.New("empty value")
	modifyExisting = errors.New("modifying a running dataplane is not allowed")
	invalidNetwork = errors.New("invalid network number")
	unknownNetwork = errors.New("network not directly attached")

	theMetrics = NewMetrics() // There can be only one.
)

// dataPlane is the forwarding engine. It receives NPDUs from its ports,
// answers and consumes network-layer control messages, and relays application
// PDUs between ports according to its routing table.
type dataPlane struct {
	table       routingTable
	app         ApplicationHandler
	mtx         sync.Mutex
	running     atomic.Bool
	Metrics     *Metrics
	portMetrics map[uint16]PortMetrics
}

// NewDataPlane returns an empty data plane, ready for ports to be added.
func NewDataPlane() *dataPlane {
	return &dataPlane{
		Metrics:     theMetrics,
		portMetrics: make(map[uint16]PortMetrics),
	}
}

func (d *dataPlane) setRunning() {
	d.running.Store(true)
}

func (d *dataPlane) setStopping() {
	d.running.Store(false)
}

func (d *dataPlane) isRunning() bool {
	return d.running.Load()
}

// AddPort attaches a datalink as a directly connected network. The port ID is
// the identifier reported in Initialize-Routing-Table-Ack messages. Ports
// cannot be added once the data plane is running.
func (d *dataPlane) AddPort(id uint8, net uint16, dl Datalink) error {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if d.isRunning() {
		return modifyExisting
	}
	if dl == nil {
		return emptyValue
	}
	if net == bacnet.LocalNetwork || net == bacnet.BroadcastNetwork {
		return serrors.JoinNoStack(invalidNetwork, nil, "net", net)
	}
	if err := d.table.addPort(id, net, dl); err != nil {
		return err
	}
	d.portMetrics[net] = newPortMetrics(d.Metrics, net)
	d.Metrics.RoutingTableSize.Set(float64(d.table.size()))
	return nil
}

// SetApplicationHandler registers the consumer of locally delivered APDUs.
// Without a handler, local traffic is counted and dropped.
func (d *dataPlane) SetApplicationHandler(h ApplicationHandler) error {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if d.isRunning() {
		return modifyExisting
	}
	if h == nil {
		return emptyValue
	}
	if d.app != nil {
		return alreadySet
	}
	d.app = h
	return nil
}

// AddStaticRoute seeds the routing table with a network reachable through the
// router with the given MAC on the directly attached network via. Learned
// routes never displace it: the table keeps the first entry per network.
func (d *dataPlane) AddStaticRoute(net, via uint16, nextHop []byte) error {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if d.isRunning() {
		return modifyExisting
	}
	if net == bacnet.LocalNetwork || net == bacnet.BroadcastNetwork {
		return serrors.JoinNoStack(invalidNetwork, nil, "net", net)
	}
	if len(nextHop) == 0 || len(nextHop) > bacnet.MaxMACLen {
		return serrors.JoinNoStack(emptyValue, nil, "nextHop", nextHop)
	}
	if !d.learnRoute(via, net, nextHop) {
		return serrors.JoinNoStack(unknownNetwork, nil, "via", via)
	}
	return nil
}

// learnRoute records a route in the table and keeps the size gauge current.
func (d *dataPlane) learnRoute(via, net uint16, nextHop []byte) bool {
	ok := d.table.learn(via, net, nextHop)
	d.Metrics.RoutingTableSize.Set(float64(d.table.size()))
	return ok
}

// Run starts the receive loop of every port and blocks until the context is
// canceled or a datalink fails. All ports are closed on the way out.
func (d *dataPlane) Run(ctx context.Context) error {
	d.mtx.Lock()
	if len(d.table.snapshot()) == 0 {
		d.mtx.Unlock()
		return emptyValue
	}
	d.setRunning()
	d.mtx.Unlock()

	defer d.setStopping()
	g, errCtx := errgroup.WithContext(ctx)
	for _, p := range d.table.snapshot() {
		p := p
		g.Go(func() error {
			defer log.HandlePanic()
			return p.datalink.Run(errCtx)
		})
	}
	g.Go(func() error {
		defer log.HandlePanic()
		<-errCtx.Done()
		for _, p := range d.table.snapshot() {
			if err := p.datalink.Close(); err != nil {
				log.Error("Closing datalink", "net", p.net, "err", err)
			}
		}
		return nil
	})
	err := g.Wait()
	d.table.teardown()
	d.Metrics.RoutingTableSize.Set(0)
	return err
}

// OnPacket is the entry point for every PDU a datalink receives. It never
// blocks on the application handler and never panics on malformed input.
func (d *dataPlane) OnPacket(snet uint16, src bacnet.Address, raw []byte) {
	metrics, ok := d.portMetrics[snet]
	if !ok {
		// A datalink we never attached. Nothing sane to account this to.
		return
	}
	metrics.InputPacketsTotal.Inc()
	metrics.InputBytesTotal.Add(float64(len(raw)))
	switch d.process(snet, src, raw) {
	case pDiscard:
		metrics.DroppedPacketsTotal.Inc()
	case pForward:
		metrics.ForwardedPacketsTotal.Inc()
	case pLocal:
		metrics.DeliveredPacketsTotal.Inc()
	case pControl:
		// Accounted per message type by the network message handler.
	default: // Newly added dispositions need to be handled.
		panic("unsupported disposition")
	}
}

func (d *dataPlane) process(snet uint16, src bacnet.Address, raw []byte) disposition {
	ingress := d.table.findPort(snet)
	if ingress == nil {
		return errorDiscard("error", unknownNetwork, "net", snet)
	}
	var npdu blayers.NPDU
	if err := npdu.DecodeFromBytes(raw, gopacket.NilDecodeFeedback); err != nil {
		return errorDiscard("error", err)
	}
	if npdu.NetworkMessage {
		// Network messages addressed to a specific remote network would be
		// for a downstream router, which clause 6.6.3.5 lets us ignore.
		if npdu.HasDestination && npdu.DNET != bacnet.BroadcastNetwork {
			return errorDiscard("error", "network message for remote DNET", "dnet", npdu.DNET)
		}
		return d.handleNetworkMessage(ingress, src, &npdu)
	}
	return d.handleAPDU(ingress, src, &npdu)
}

func (d *dataPlane) handleAPDU(
	ingress *routerPort,
	src bacnet.Address,
	npdu *blayers.NPDU,
) disposition {

	apdu := npdu.LayerPayload()
	if len(apdu) == 0 {
		return errorDiscard("error", "empty APDU")
	}
	// An explicit DNET of 0 addresses the local network: deliver, never relay.
	local := !npdu.HasDestination ||
		npdu.DNET == bacnet.BroadcastNetwork ||
		npdu.DNET == bacnet.LocalNetwork
	relay := npdu.HasDestination && npdu.DNET != bacnet.LocalNetwork
	if !local && npdu.HopCount <= 1 {
		return errorDiscard("error", "hop count exhausted", "dnet", npdu.DNET)
	}
	if npdu.HasDestination && npdu.DNET == bacnet.BroadcastNetwork &&
		apdu[0]&0xF0 == apduTypeConfirmedRequest {
		// 5.4.5.1 ConfirmedBroadcastReceived: stay IDLE, ignore the PDU.
		return errorDiscard("error", "confirmed request to broadcast address")
	}

	disp := pDiscard
	if relay {
		disp = d.routedAPDUHandler(ingress, src, npdu, apdu)
	}
	if local {
		disp = d.deliverLocal(ingress, src, npdu, apdu)
	}
	return disp
}

func (d *dataPlane) deliverLocal(
	ingress *routerPort,
	src bacnet.Address,
	npdu *blayers.NPDU,
	apdu []byte,
) disposition {

	if d.app == nil {
		return errorDiscard("error", "no application handler")
	}
	from := src.Copy()
	if npdu.HasSource {
		from.Net = npdu.SNET
		from.ADR = append([]byte(nil), npdu.SADR...)
	}
	d.app.HandleAPDU(from, apdu)
	return pLocal
}

func errorDiscard(ctx ...any) disposition {
	log.Debug("Discarding packet", ctx...)
	return pDiscard
}

// apduTypeConfirmedRequest is the PDU type nibble of a BACnet-Confirmed-
// Request-PDU.
const apduTypeConfirmedRequest = 0x00
