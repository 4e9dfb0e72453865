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

// Package bip implements the BACnet/IP datalink of ASHRAE 135 Annex J. PDUs
// are carried in BVLL frames over UDP, and a station's MAC is its IPv4
// address followed by its UDP port.
package bip

import (
	"context"
	"encoding/binary"
	"errors"
	"net"

	"github.com/openbacnet/openbacnet/pkg/bacnet"
	"github.com/openbacnet/openbacnet/pkg/log"
	"github.com/openbacnet/openbacnet/pkg/private/serrors"
	"github.com/openbacnet/openbacnet/router"
)

const (
	// bvlcType identifies BACnet/IP in the BVLC type octet.
	bvlcType = 0x81

	bvlcForwardedNPDU         = 0x04
	bvlcOriginalUnicastNPDU   = 0x0A
	bvlcOriginalBroadcastNPDU = 0x0B

	bvllHeaderLen = 4
	// MACLen is IPv4 address plus UDP port.
	MACLen = 6

	maxPDULen = 1500
)

// Config describes one B/IP port.
type Config struct {
	// Network is the BACnet network number of the attached IP network.
	Network uint16
	// Listen is the UDP endpoint to bind.
	Listen string
	// Broadcast is the destination of link broadcasts. Empty means the
	// limited broadcast address with the listen port.
	Broadcast string
	// Handler consumes received NPDUs.
	Handler router.PacketHandler
}

// Datalink is a B/IP port. It implements router.Datalink.
type Datalink struct {
	network   uint16
	conn      *net.UDPConn
	broadcast *net.UDPAddr
	handler   router.PacketHandler
}

// New binds the UDP socket. The receive loop does not start until Run.
func New(cfg Config) (*Datalink, error) {
	if cfg.Handler == nil {
		return nil, serrors.New("nil handler")
	}
	listen, err := net.ResolveUDPAddr("udp4", cfg.Listen)
	if err != nil {
		return nil, serrors.Wrap("resolving listen address", err, "listen", cfg.Listen)
	}
	conn, err := net.ListenUDP("udp4", listen)
	if err != nil {
		return nil, serrors.Wrap("binding", err, "listen", cfg.Listen)
	}
	broadcast := &net.UDPAddr{
		IP:   net.IPv4bcast,
		Port: conn.LocalAddr().(*net.UDPAddr).Port,
	}
	if cfg.Broadcast != "" {
		broadcast, err = net.ResolveUDPAddr("udp4", cfg.Broadcast)
		if err != nil {
			conn.Close()
			return nil, serrors.Wrap("resolving broadcast address", err,
				"broadcast", cfg.Broadcast)
		}
	}
	return &Datalink{
		network:   cfg.Network,
		conn:      conn,
		broadcast: broadcast,
		handler:   cfg.Handler,
	}, nil
}

// Run receives BVLL frames until the socket is closed or the context is
// canceled.
func (d *Datalink) Run(ctx context.Context) error {
	log.Info("B/IP datalink running", "net", d.network, "local", d.conn.LocalAddr())
	buf := make([]byte, maxPDULen)
	for {
		n, raddr, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return serrors.Wrap("reading", err, "net", d.network)
		}
		src, npdu, ok := d.decapsulate(raddr, buf[:n])
		if !ok {
			continue
		}
		d.handler.OnPacket(d.network, src, npdu)
	}
}

// decapsulate strips the BVLL header. The returned NPDU aliases frame.
func (d *Datalink) decapsulate(
	raddr *net.UDPAddr,
	frame []byte,
) (bacnet.Address, []byte, bool) {

	if len(frame) < bvllHeaderLen || frame[0] != bvlcType {
		log.Debug("Dropping non-BVLL frame", "net", d.network, "from", raddr)
		return bacnet.Address{}, nil, false
	}
	if int(binary.BigEndian.Uint16(frame[2:4])) != len(frame) {
		log.Debug("Dropping BVLL frame with bad length", "net", d.network, "from", raddr)
		return bacnet.Address{}, nil, false
	}
	switch frame[1] {
	case bvlcOriginalUnicastNPDU, bvlcOriginalBroadcastNPDU:
		return bacnet.Address{MAC: macOf(raddr)}, frame[bvllHeaderLen:], true
	case bvlcForwardedNPDU:
		// A BBMD relays the original station's B/IP address ahead of the NPDU.
		if len(frame) < bvllHeaderLen+MACLen {
			log.Debug("Dropping truncated Forwarded-NPDU", "net", d.network, "from", raddr)
			return bacnet.Address{}, nil, false
		}
		mac := append([]byte(nil), frame[bvllHeaderLen:bvllHeaderLen+MACLen]...)
		return bacnet.Address{MAC: mac}, frame[bvllHeaderLen+MACLen:], true
	default:
		// BBMD management functions are not implemented.
		log.Debug("Ignoring BVLC function", "net", d.network,
			"function", frame[1], "from", raddr)
		return bacnet.Address{}, nil, false
	}
}

// Send transmits an NPDU to the station with the given MAC. An empty MAC is a
// link broadcast.
func (d *Datalink) Send(dst bacnet.Address, pdu []byte) error {
	fn := byte(bvlcOriginalUnicastNPDU)
	raddr := d.broadcast
	if len(dst.MAC) == 0 {
		fn = bvlcOriginalBroadcastNPDU
	} else {
		var err error
		if raddr, err = udpAddrOf(dst.MAC); err != nil {
			return err
		}
	}
	frame := make([]byte, bvllHeaderLen+len(pdu))
	frame[0] = bvlcType
	frame[1] = fn
	binary.BigEndian.PutUint16(frame[2:4], uint16(len(frame)))
	copy(frame[bvllHeaderLen:], pdu)
	if _, err := d.conn.WriteToUDP(frame, raddr); err != nil {
		return serrors.Wrap("writing", err, "net", d.network, "dst", raddr)
	}
	return nil
}

// LocalAddr returns the bound UDP endpoint.
func (d *Datalink) LocalAddr() net.Addr {
	return d.conn.LocalAddr()
}

// Close unblocks Run.
func (d *Datalink) Close() error {
	return d.conn.Close()
}

func macOf(a *net.UDPAddr) []byte {
	mac := make([]byte, MACLen)
	copy(mac, a.IP.To4())
	binary.BigEndian.PutUint16(mac[4:], uint16(a.Port))
	return mac
}

func udpAddrOf(mac []byte) (*net.UDPAddr, error) {
	if len(mac) != MACLen {
		return nil, serrors.New("invalid B/IP MAC", "mac", mac)
	}
	return &net.UDPAddr{
		IP:   net.IPv4(mac[0], mac[1], mac[2], mac[3]),
		Port: int(binary.BigEndian.Uint16(mac[4:])),
	}, nil
}
