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

package control_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbacnet/openbacnet/pkg/bacnet"
	"github.com/openbacnet/openbacnet/router"
	"github.com/openbacnet/openbacnet/router/config"
	"github.com/openbacnet/openbacnet/router/control"
)

type port struct {
	id  uint8
	net uint16
}

type route struct {
	net, via uint16
	nextHop  []byte
}

type fakeDataplane struct {
	ports  []port
	routes []route
}

func (d *fakeDataplane) OnPacket(uint16, bacnet.Address, []byte) {}

func (d *fakeDataplane) AddPort(id uint8, net uint16, dl router.Datalink) error {
	d.ports = append(d.ports, port{id: id, net: net})
	return dl.Close()
}

func (d *fakeDataplane) AddStaticRoute(net, via uint16, nextHop []byte) error {
	d.routes = append(d.routes, route{net: net, via: via, nextHop: nextHop})
	return nil
}

func TestConfigDataplane(t *testing.T) {
	cfg := &config.Config{
		BIP: config.BIP{Listen: "127.0.0.1:0"},
		Routes: []config.StaticRoute{
			{Network: 5, Via: 1, NextHop: "c0a80105bac0"},
		},
	}
	cfg.InitDefaults()

	dp := &fakeDataplane{}
	require.NoError(t, control.ConfigDataplane(dp, cfg))

	assert.Equal(t, []port{{id: control.PortIDBIP, net: config.DefaultBIPNetwork}}, dp.ports)
	assert.Equal(t, []route{
		{net: 5, via: 1, nextHop: []byte{0xc0, 0xa8, 0x01, 0x05, 0xba, 0xc0}},
	}, dp.routes)
}

func TestConfigDataplaneNoBIP(t *testing.T) {
	cfg := &config.Config{BIP: config.BIP{Disabled: true}}
	cfg.InitDefaults()

	dp := &fakeDataplane{}
	require.NoError(t, control.ConfigDataplane(dp, cfg))
	assert.Empty(t, dp.ports)
}

func TestConfigDataplaneBadDevice(t *testing.T) {
	cfg := &config.Config{
		BIP:  config.BIP{Disabled: true},
		MSTP: config.MSTP{Device: "/dev/does-not-exist"},
	}
	cfg.InitDefaults()

	dp := &fakeDataplane{}
	assert.Error(t, control.ConfigDataplane(dp, cfg))
}

func TestConfigDataplaneBadRoute(t *testing.T) {
	cfg := &config.Config{
		BIP: config.BIP{Disabled: true},
		Routes: []config.StaticRoute{
			{Network: 5, Via: 1, NextHop: "not-hex"},
		},
	}
	cfg.InitDefaults()

	dp := &fakeDataplane{}
	assert.Error(t, control.ConfigDataplane(dp, cfg))
}
