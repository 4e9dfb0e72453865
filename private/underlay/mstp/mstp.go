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

// Package mstp implements the MS/TP datalink framing of ASHRAE 135 clause 9
// on top of a serial port. It sends and receives BACnet data frames; the
// token-passing medium access is left to the bus.
package mstp

import (
	"bufio"
	"context"
	"errors"
	"io"

	"go.bug.st/serial"

	"github.com/openbacnet/openbacnet/pkg/bacnet"
	"github.com/openbacnet/openbacnet/pkg/log"
	"github.com/openbacnet/openbacnet/pkg/private/serrors"
	"github.com/openbacnet/openbacnet/router"
)

const (
	preamble1 = 0x55
	preamble2 = 0xFF

	frameToken                 uint8 = 0x00
	framePollForMaster         uint8 = 0x01
	frameReplyToPollForMaster  uint8 = 0x02
	frameDataExpectingReply    uint8 = 0x05
	frameDataNotExpectingReply uint8 = 0x06

	// broadcastMAC is the this-station broadcast address.
	broadcastMAC = 0xFF

	// maxDataLen bounds the data field per clause 9.
	maxDataLen = 501

	// headerCheck and dataCheck are the residues a running CRC leaves when
	// fed the protected octets followed by the transmitted check octets.
	headerCheck = 0x55
	dataCheck   = 0xF0B8
)

// npciExpectingReply is the control bit that selects the data frame type.
const npciExpectingReply = 0x04

// Config describes one MS/TP port.
type Config struct {
	// Network is the BACnet network number of the attached segment.
	Network uint16
	// Device is the serial device of the RS-485 transceiver.
	Device string
	// BaudRate of the segment.
	BaudRate int
	// MAC is our station address.
	MAC uint8
	// MaxMaster is the highest master address on the segment.
	MaxMaster uint8
	// MaxInfoFrames bounds the frames sent per token hold.
	MaxInfoFrames int
	// Handler consumes received NPDUs.
	Handler router.PacketHandler
}

// Datalink is an MS/TP port. It implements router.Datalink.
type Datalink struct {
	network       uint16
	mac           uint8
	maxMaster     uint8
	maxInfoFrames int
	port          io.ReadWriteCloser
	handler       router.PacketHandler
}

// New opens the serial device in 8N1 mode.
func New(cfg Config) (*Datalink, error) {
	if cfg.Handler == nil {
		return nil, serrors.New("nil handler")
	}
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Device, mode)
	if err != nil {
		return nil, serrors.Wrap("opening serial device", err, "device", cfg.Device)
	}
	return newDatalink(cfg, port), nil
}

func newDatalink(cfg Config, port io.ReadWriteCloser) *Datalink {
	return &Datalink{
		network:       cfg.Network,
		mac:           cfg.MAC,
		maxMaster:     cfg.MaxMaster,
		maxInfoFrames: cfg.MaxInfoFrames,
		port:          port,
		handler:       cfg.Handler,
	}
}

// Run reads frames until the port is closed or the context is canceled.
// Octets that do not parse as a frame are skipped until the next preamble.
func (d *Datalink) Run(ctx context.Context) error {
	log.Info("MS/TP datalink running", "net", d.network, "mac", d.mac,
		"max_master", d.maxMaster, "max_info_frames", d.maxInfoFrames)
	r := bufio.NewReader(d.port)
	for {
		frameType, src, dst, data, err := readFrame(r)
		if err != nil {
			if isClosed(err) || ctx.Err() != nil {
				return nil
			}
			return serrors.Wrap("reading", err, "net", d.network)
		}
		if frameType != frameDataExpectingReply && frameType != frameDataNotExpectingReply {
			// Token traffic and test frames are not ours to handle.
			continue
		}
		if dst != d.mac && dst != broadcastMAC {
			continue
		}
		d.handler.OnPacket(d.network, bacnet.Address{MAC: []byte{src}}, data)
	}
}

// readFrame scans to the next preamble and decodes one frame. A frame with a
// bad CRC is reported as a nil data slice with frame type 0xFF so the caller
// keeps its position in the octet stream.
func readFrame(r *bufio.Reader) (frameType, src, dst uint8, data []byte, err error) {
	if err = syncPreamble(r); err != nil {
		return 0, 0, 0, nil, err
	}
	var hdr [6]byte
	if _, err = io.ReadFull(r, hdr[:]); err != nil {
		return 0, 0, 0, nil, err
	}
	if crc := headerCRC(0xFF, hdr[:]); crc != headerCheck {
		log.Debug("MS/TP header CRC mismatch", "crc", crc)
		return 0xFF, 0, 0, nil, nil
	}
	frameType, dst, src = hdr[0], hdr[1], hdr[2]
	n := int(hdr[3])<<8 | int(hdr[4])
	if n == 0 {
		return frameType, src, dst, nil, nil
	}
	if n > maxDataLen {
		log.Debug("MS/TP data length out of range", "len", n)
		return 0xFF, 0, 0, nil, nil
	}
	buf := make([]byte, n+2)
	if _, err = io.ReadFull(r, buf); err != nil {
		return 0, 0, 0, nil, err
	}
	if crc := dataCRC(0xFFFF, buf); crc != dataCheck {
		log.Debug("MS/TP data CRC mismatch", "crc", crc)
		return 0xFF, 0, 0, nil, nil
	}
	return frameType, src, dst, buf[:n], nil
}

func syncPreamble(r *bufio.Reader) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b != preamble1 {
			continue
		}
		if b, err = r.ReadByte(); err != nil {
			return err
		}
		if b == preamble2 {
			return nil
		}
	}
}

// Send transmits an NPDU. The destination MAC must be one octet; an empty MAC
// is a broadcast. The frame type follows the expecting-reply NPCI bit.
func (d *Datalink) Send(dst bacnet.Address, pdu []byte) error {
	mac := uint8(broadcastMAC)
	switch len(dst.MAC) {
	case 0:
	case 1:
		mac = dst.MAC[0]
	default:
		return serrors.New("invalid MS/TP MAC", "mac", dst.MAC)
	}
	if len(pdu) > maxDataLen {
		return serrors.New("PDU too long for MS/TP", "len", len(pdu))
	}
	frameType := frameDataNotExpectingReply
	if len(pdu) >= 2 && pdu[1]&npciExpectingReply != 0 && mac != broadcastMAC {
		frameType = frameDataExpectingReply
	}
	if _, err := d.port.Write(encodeFrame(frameType, mac, d.mac, pdu)); err != nil {
		return serrors.Wrap("writing", err, "net", d.network)
	}
	return nil
}

// Close unblocks Run.
func (d *Datalink) Close() error {
	return d.port.Close()
}

func encodeFrame(frameType, dst, src uint8, data []byte) []byte {
	n := 8 + len(data)
	if len(data) > 0 {
		n += 2
	}
	f := make([]byte, 0, n)
	f = append(f, preamble1, preamble2,
		frameType, dst, src, byte(len(data)>>8), byte(len(data)))
	f = append(f, ^headerCRC(0xFF, f[2:7]))
	if len(data) > 0 {
		f = append(f, data...)
		crc := ^dataCRC(0xFFFF, data)
		f = append(f, byte(crc), byte(crc>>8))
	}
	return f
}

// headerCRC runs the clause 9.8 CRC-8 (x^8+x^7+1) over data.
func headerCRC(init uint8, data []byte) uint8 {
	crc := uint16(init)
	for _, b := range data {
		crc ^= uint16(b)
		crc = crc ^ (crc << 1) ^ (crc << 2) ^ (crc << 3) ^
			(crc << 4) ^ (crc << 5) ^ (crc << 6) ^ (crc << 7)
		crc = (crc & 0xfe) ^ ((crc >> 8) & 1)
	}
	return uint8(crc)
}

// dataCRC runs the clause 9.10 CRC-16 (x^16+x^15+x^2+1) over data.
func dataCRC(init uint16, data []byte) uint16 {
	crc := init
	for _, b := range data {
		low := (crc & 0xff) ^ uint16(b)
		crc = (crc >> 8) ^ (low << 8) ^ (low << 3) ^ (low << 12) ^
			(low >> 4) ^ (low & 0x0f) ^ ((low & 0x0f) << 7)
	}
	return crc
}

func isClosed(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var portErr *serial.PortError
	return errors.As(err, &portErr) && portErr.Code() == serial.PortClosed
}
