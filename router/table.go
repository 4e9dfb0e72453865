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
	"sort"
	"sync"

	"github.com/openbacnet/openbacnet/pkg/log"
	"github.com/openbacnet/openbacnet/pkg/private/serrors"
)

// routerPort is one directly attached network together with the downstream
// networks learned to be reachable through it.
type routerPort struct {
	id       uint8
	net      uint16
	datalink Datalink
	routes   []downstreamRoute
}

// downstreamRoute is a network reachable via another router. nextHop is the
// MAC of that router on the network of the port owning this route.
type downstreamRoute struct {
	net     uint16
	nextHop []byte
}

// routingTable maps network numbers to ports. Ports are fixed after startup;
// routes mutate concurrently with the data path as advertisements arrive, so
// reads take the read lock.
type routingTable struct {
	mu    sync.RWMutex
	ports []*routerPort
}

func (t *routingTable) addPort(id uint8, net uint16, dl Datalink) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.ports {
		if p.net == net {
			return serrors.JoinNoStack(alreadySet, nil, "net", net)
		}
		if p.id == id {
			return serrors.JoinNoStack(alreadySet, nil, "port", id)
		}
	}
	t.ports = append(t.ports, &routerPort{id: id, net: net, datalink: dl})
	sort.Slice(t.ports, func(i, j int) bool { return t.ports[i].id < t.ports[j].id })
	return nil
}

// findPort returns the port directly attached to net, or nil.
func (t *routingTable) findPort(net uint16) *routerPort {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.findPortLocked(net)
}

func (t *routingTable) findPortLocked(net uint16) *routerPort {
	for _, p := range t.ports {
		if p.net == net {
			return p
		}
	}
	return nil
}

// lookup resolves a destination network. For a directly attached network the
// next hop is nil: the destination station is on the port's own link. For a
// learned route the next hop is the MAC of the router to relay to.
func (t *routingTable) lookup(net uint16) (*routerPort, []byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, p := range t.ports {
		if p.net == net {
			return p, nil, true
		}
	}
	for _, p := range t.ports {
		for _, r := range p.routes {
			if r.net == net {
				return p, append([]byte(nil), r.nextHop...), true
			}
		}
	}
	return nil, nil, false
}

// learn records that net is reachable through the router at nextHop on the
// directly attached network via. Networks already known, whether directly
// attached or previously learned, are left untouched. Returns false only when
// via is not one of our ports.
func (t *routingTable) learn(via, net uint16, nextHop []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	port := t.findPortLocked(via)
	if port == nil {
		return false
	}
	for _, p := range t.ports {
		if p.net == net {
			return true
		}
		for _, r := range p.routes {
			if r.net == net {
				return true
			}
		}
	}
	port.routes = append(port.routes, downstreamRoute{
		net:     net,
		nextHop: append([]byte(nil), nextHop...),
	})
	return true
}

// snapshot returns the ports in port-ID order. The slice is shared; callers
// must not mutate it.
func (t *routingTable) snapshot() []*routerPort {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ports
}

// reachableVia lists the networks reachable through port p: its own network
// plus its learned routes.
func (t *routingTable) reachableVia(p *routerPort) []uint16 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	nets := make([]uint16, 0, 1+len(p.routes))
	nets = append(nets, p.net)
	for _, r := range p.routes {
		nets = append(nets, r.net)
	}
	return nets
}

// size counts the networks known to the table, directly attached and learned.
func (t *routingTable) size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := len(t.ports)
	for _, p := range t.ports {
		n += len(p.routes)
	}
	return n
}

// teardown releases the table at shutdown. A data plane whose table has been
// torn down cannot be run again.
func (t *routingTable) teardown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.ports {
		for _, r := range p.routes {
			log.Debug("Releasing route", "net", r.net, "via", p.net)
		}
		p.routes = nil
	}
	t.ports = nil
}

// RouteInfo is one row of the routing table as reported on the status pages.
type RouteInfo struct {
	Network uint16 `json:"network"`
	PortID  uint8  `json:"port_id"`
	Via     uint16 `json:"via"`
	NextHop []byte `json:"next_hop,omitempty"`
	Direct  bool   `json:"direct"`
}

// Routes reports the full routing table, directly attached networks first,
// in deterministic order.
func (d *dataPlane) Routes() []RouteInfo {
	d.table.mu.RLock()
	defer d.table.mu.RUnlock()
	var routes []RouteInfo
	for _, p := range d.table.ports {
		routes = append(routes, RouteInfo{
			Network: p.net,
			PortID:  p.id,
			Via:     p.net,
			Direct:  true,
		})
	}
	for _, p := range d.table.ports {
		for _, r := range p.routes {
			routes = append(routes, RouteInfo{
				Network: r.net,
				PortID:  p.id,
				Via:     p.net,
				NextHop: append([]byte(nil), r.nextHop...),
			})
		}
	}
	return routes
}
