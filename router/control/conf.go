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

// Package control configures the data plane from the router configuration.
package control

import (
	"github.com/openbacnet/openbacnet/pkg/private/serrors"
	"github.com/openbacnet/openbacnet/private/underlay/bip"
	"github.com/openbacnet/openbacnet/private/underlay/mstp"
	"github.com/openbacnet/openbacnet/router"
	"github.com/openbacnet/openbacnet/router/config"
)

// Port IDs reported in Initialize-Routing-Table-Ack messages.
const (
	PortIDBIP  uint8 = 1
	PortIDMSTP uint8 = 2
)

// Dataplane is the interface the configuration is pushed into.
type Dataplane interface {
	router.PacketHandler
	AddPort(id uint8, net uint16, dl router.Datalink) error
	AddStaticRoute(net, via uint16, nextHop []byte) error
}

// ConfigDataplane attaches the configured datalinks and seeds the static
// routes, in configuration order. The data plane must not be running yet.
func ConfigDataplane(dp Dataplane, cfg *config.Config) error {
	if !cfg.BIP.Disabled {
		dl, err := bip.New(bip.Config{
			Network:   cfg.BIP.Network,
			Listen:    cfg.BIP.Listen,
			Broadcast: cfg.BIP.Broadcast,
			Handler:   dp,
		})
		if err != nil {
			return serrors.Wrap("creating B/IP datalink", err)
		}
		if err := dp.AddPort(PortIDBIP, cfg.BIP.Network, dl); err != nil {
			return serrors.Wrap("adding B/IP port", err, "net", cfg.BIP.Network)
		}
	}
	if cfg.MSTP.Enabled() {
		dl, err := mstp.New(mstp.Config{
			Network:       cfg.MSTP.Network,
			Device:        cfg.MSTP.Device,
			BaudRate:      cfg.MSTP.BaudRate,
			MAC:           cfg.MSTP.MAC,
			MaxMaster:     cfg.MSTP.MaxMaster,
			MaxInfoFrames: cfg.MSTP.MaxInfoFrames,
			Handler:       dp,
		})
		if err != nil {
			return serrors.Wrap("creating MS/TP datalink", err)
		}
		if err := dp.AddPort(PortIDMSTP, cfg.MSTP.Network, dl); err != nil {
			return serrors.Wrap("adding MS/TP port", err, "net", cfg.MSTP.Network)
		}
	}
	for _, r := range cfg.Routes {
		nextHop, err := r.NextHopMAC()
		if err != nil {
			return err
		}
		if err := dp.AddStaticRoute(r.Network, r.Via, nextHop); err != nil {
			return serrors.Wrap("adding static route", err,
				"net", r.Network, "via", r.Via)
		}
	}
	return nil
}
