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

// Package config describes the configuration of the BACnet router.
package config

import (
	"encoding/hex"
	"io"

	"github.com/openbacnet/openbacnet/pkg/bacnet"
	"github.com/openbacnet/openbacnet/pkg/log"
	"github.com/openbacnet/openbacnet/pkg/private/serrors"
	"github.com/openbacnet/openbacnet/private/config"
	"github.com/openbacnet/openbacnet/private/env"
)

const (
	// DefaultBIPNetwork is the network number of the B/IP port.
	DefaultBIPNetwork uint16 = 1
	// DefaultMSTPNetwork is the network number of the MS/TP port.
	DefaultMSTPNetwork uint16 = 2
	// DefaultBIPListen is the standard BACnet/IP UDP endpoint (port 0xBAC0).
	DefaultBIPListen = ":47808"
	// DefaultMSTPBaudRate is the most common MS/TP line speed.
	DefaultMSTPBaudRate = 38400
	// DefaultMSTPMAC is our station address on the MS/TP segment.
	DefaultMSTPMAC uint8 = 127
	// DefaultMSTPMaxMaster is the highest master MAC polled for.
	DefaultMSTPMaxMaster uint8 = 127
	// DefaultMSTPMaxInfoFrames bounds the frames sent per token.
	DefaultMSTPMaxInfoFrames = 128
)

var _ config.Config = (*Config)(nil)

// Config is the configuration of the router instance.
type Config struct {
	General env.General   `toml:"general,omitempty"`
	Logging log.Config    `toml:"log,omitempty"`
	Metrics env.Metrics   `toml:"metrics,omitempty"`
	Tracing env.Tracing   `toml:"tracing,omitempty"`
	API     API           `toml:"api,omitempty"`
	BIP     BIP           `toml:"bip,omitempty"`
	MSTP    MSTP          `toml:"mstp,omitempty"`
	Routes  []StaticRoute `toml:"route,omitempty"`
}

func (cfg *Config) InitDefaults() {
	config.InitAll(
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Tracing,
		&cfg.API,
		&cfg.BIP,
		&cfg.MSTP,
	)
}

func (cfg *Config) Validate() error {
	if err := config.ValidateAll(
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Tracing,
		&cfg.API,
		&cfg.BIP,
		&cfg.MSTP,
	); err != nil {
		return err
	}
	if cfg.BIP.Disabled && !cfg.MSTP.Enabled() {
		return serrors.New("no datalink enabled")
	}
	if !cfg.BIP.Disabled && cfg.MSTP.Enabled() && cfg.BIP.Network == cfg.MSTP.Network {
		return serrors.New("bip and mstp networks collide", "net", cfg.BIP.Network)
	}
	for _, r := range cfg.Routes {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (cfg *Config) Sample(dst io.Writer, path config.Path, _ config.CtxMap) {
	config.WriteSample(dst, path, config.CtxMap{config.ID: "router"},
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Tracing,
		&cfg.API,
		&cfg.BIP,
		&cfg.MSTP,
	)
	config.WriteString(dst, routeSample)
}

var _ config.Config = (*API)(nil)

// API is the configuration for the service management API.
type API struct {
	config.NoDefaulter
	config.NoValidator
	// Addr is the address the API server listens on. If not set, the API
	// is not enabled.
	Addr string `toml:"addr,omitempty"`
}

func (cfg *API) Sample(dst io.Writer, path config.Path, _ config.CtxMap) {
	config.WriteString(dst, apiSample)
}

func (cfg *API) ConfigName() string {
	return "api"
}

var _ config.Config = (*BIP)(nil)

// BIP configures the BACnet/IP port.
type BIP struct {
	// Disabled turns the B/IP port off.
	Disabled bool `toml:"disabled,omitempty"`
	// Network is the BACnet network number of the attached IP network.
	Network uint16 `toml:"network,omitempty"`
	// Listen is the UDP endpoint to bind.
	Listen string `toml:"listen,omitempty"`
	// Broadcast is the address used for link broadcasts. If not set, the
	// limited broadcast address with the listen port is used.
	Broadcast string `toml:"broadcast,omitempty"`
}

func (cfg *BIP) InitDefaults() {
	if cfg.Network == 0 {
		cfg.Network = DefaultBIPNetwork
	}
	if cfg.Listen == "" {
		cfg.Listen = DefaultBIPListen
	}
}

func (cfg *BIP) Validate() error {
	if cfg.Disabled {
		return nil
	}
	if cfg.Network == bacnet.BroadcastNetwork {
		return serrors.New("invalid bip network number", "net", cfg.Network)
	}
	return nil
}

func (cfg *BIP) Sample(dst io.Writer, path config.Path, _ config.CtxMap) {
	config.WriteString(dst, bipSample)
}

func (cfg *BIP) ConfigName() string {
	return "bip"
}

var _ config.Config = (*MSTP)(nil)

// MSTP configures the MS/TP port. The port is enabled by pointing Device at
// a serial device.
type MSTP struct {
	// Network is the BACnet network number of the attached MS/TP segment.
	Network uint16 `toml:"network,omitempty"`
	// Device is the serial device of the RS-485 transceiver.
	Device string `toml:"device,omitempty"`
	// BaudRate of the segment.
	BaudRate int `toml:"baud_rate,omitempty"`
	// MAC is our station address on the segment.
	MAC uint8 `toml:"mac,omitempty"`
	// MaxMaster is the highest master address polled for on the segment.
	MaxMaster uint8 `toml:"max_master,omitempty"`
	// MaxInfoFrames bounds the frames sent per token hold.
	MaxInfoFrames int `toml:"max_info_frames,omitempty"`
}

// Enabled reports whether the MS/TP port is configured.
func (cfg *MSTP) Enabled() bool {
	return cfg.Device != ""
}

func (cfg *MSTP) InitDefaults() {
	if cfg.Network == 0 {
		cfg.Network = DefaultMSTPNetwork
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultMSTPBaudRate
	}
	if cfg.MAC == 0 {
		cfg.MAC = DefaultMSTPMAC
	}
	if cfg.MaxMaster == 0 {
		cfg.MaxMaster = DefaultMSTPMaxMaster
	}
	if cfg.MaxInfoFrames == 0 {
		cfg.MaxInfoFrames = DefaultMSTPMaxInfoFrames
	}
}

func (cfg *MSTP) Validate() error {
	if !cfg.Enabled() {
		return nil
	}
	if cfg.Network == bacnet.BroadcastNetwork {
		return serrors.New("invalid mstp network number", "net", cfg.Network)
	}
	if cfg.MaxMaster > 127 {
		return serrors.New("max_master out of range", "max_master", cfg.MaxMaster)
	}
	if cfg.MAC > cfg.MaxMaster {
		return serrors.New("mac above max_master", "mac", cfg.MAC)
	}
	return nil
}

func (cfg *MSTP) Sample(dst io.Writer, path config.Path, _ config.CtxMap) {
	config.WriteString(dst, mstpSample)
}

func (cfg *MSTP) ConfigName() string {
	return "mstp"
}

// StaticRoute seeds the routing table at startup.
type StaticRoute struct {
	// Network is the destination network number.
	Network uint16 `toml:"network"`
	// Via is the network number of the port the next router is on.
	Via uint16 `toml:"via"`
	// NextHop is the hex encoded MAC of the next router on Via.
	NextHop string `toml:"next_hop"`
}

func (r *StaticRoute) Validate() error {
	if r.Network == bacnet.LocalNetwork || r.Network == bacnet.BroadcastNetwork {
		return serrors.New("invalid route network", "net", r.Network)
	}
	if _, err := r.NextHopMAC(); err != nil {
		return err
	}
	return nil
}

// NextHopMAC decodes the next hop address.
func (r *StaticRoute) NextHopMAC() ([]byte, error) {
	mac, err := hex.DecodeString(r.NextHop)
	if err != nil {
		return nil, serrors.Wrap("decoding next_hop", err, "next_hop", r.NextHop)
	}
	if len(mac) == 0 || len(mac) > bacnet.MaxMACLen {
		return nil, serrors.New("invalid next_hop length", "next_hop", r.NextHop)
	}
	return mac, nil
}
