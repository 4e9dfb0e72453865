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

package router_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/gopacket/gopacket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/openbacnet/openbacnet/pkg/bacnet"
	"github.com/openbacnet/openbacnet/pkg/blayers"
	"github.com/openbacnet/openbacnet/router"
	"github.com/openbacnet/openbacnet/router/mock_router"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDataPlaneAddPort(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("no datalink", func(t *testing.T) {
		d := router.NewDataPlane()
		assert.Error(t, d.AddPort(1, 1, nil))
	})
	t.Run("invalid network", func(t *testing.T) {
		d := router.NewDataPlane()
		assert.Error(t, d.AddPort(1, 0, mock_router.NewMockDatalink(ctrl)))
		assert.Error(t, d.AddPort(1, 0xffff, mock_router.NewMockDatalink(ctrl)))
	})
	t.Run("duplicate network", func(t *testing.T) {
		d := router.NewDataPlane()
		assert.NoError(t, d.AddPort(1, 1, mock_router.NewMockDatalink(ctrl)))
		assert.Error(t, d.AddPort(2, 1, mock_router.NewMockDatalink(ctrl)))
	})
	t.Run("duplicate port id", func(t *testing.T) {
		d := router.NewDataPlane()
		assert.NoError(t, d.AddPort(1, 1, mock_router.NewMockDatalink(ctrl)))
		assert.Error(t, d.AddPort(1, 2, mock_router.NewMockDatalink(ctrl)))
	})
	t.Run("running", func(t *testing.T) {
		d := router.NewDataPlane()
		d.FakeStart()
		assert.Error(t, d.AddPort(1, 1, mock_router.NewMockDatalink(ctrl)))
	})
}

func TestDataPlaneSetApplicationHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("nil handler", func(t *testing.T) {
		d := router.NewDataPlane()
		assert.Error(t, d.SetApplicationHandler(nil))
	})
	t.Run("set twice", func(t *testing.T) {
		d := router.NewDataPlane()
		assert.NoError(t, d.SetApplicationHandler(mock_router.NewMockApplicationHandler(ctrl)))
		assert.Error(t, d.SetApplicationHandler(mock_router.NewMockApplicationHandler(ctrl)))
	})
	t.Run("running", func(t *testing.T) {
		d := router.NewDataPlane()
		d.FakeStart()
		assert.Error(t, d.SetApplicationHandler(mock_router.NewMockApplicationHandler(ctrl)))
	})
}

func TestDataPlaneAddStaticRoute(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	d := router.NewDataPlane()
	require.NoError(t, d.AddPort(1, 1, mock_router.NewMockDatalink(ctrl)))

	assert.Error(t, d.AddStaticRoute(7, 1, nil))
	assert.Error(t, d.AddStaticRoute(0, 1, []byte{0x42}))
	assert.Error(t, d.AddStaticRoute(7, 3, []byte{0x42}), "via must be attached")

	require.NoError(t, d.AddStaticRoute(7, 1, []byte{0x42}))
	via, nextHop, ok := d.Lookup(7)
	require.True(t, ok)
	assert.Equal(t, uint16(1), via)
	assert.Equal(t, []byte{0x42}, nextHop)
}

func TestRoutes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	d, _, _ := twoPortPlane(t, ctrl)
	require.NoError(t, d.AddStaticRoute(7, 2, []byte{0x42}))
	require.NoError(t, d.AddStaticRoute(5, 1, []byte{0xaa, 0xbb}))

	want := []router.RouteInfo{
		{Network: 1, PortID: 1, Via: 1, Direct: true},
		{Network: 2, PortID: 2, Via: 2, Direct: true},
		{Network: 5, PortID: 1, Via: 1, NextHop: []byte{0xaa, 0xbb}},
		{Network: 7, PortID: 2, Via: 2, NextHop: []byte{0x42}},
	}
	assert.Empty(t, cmp.Diff(want, d.Routes()))
}

// twoPortPlane is the standard test fixture: network 1 on port 1 and
// network 2 on port 2.
func twoPortPlane(
	t *testing.T,
	ctrl *gomock.Controller,
) (*router.DataPlane, *mock_router.MockDatalink, *mock_router.MockDatalink) {

	t.Helper()
	d := router.NewDataPlane()
	dl1 := mock_router.NewMockDatalink(ctrl)
	dl2 := mock_router.NewMockDatalink(ctrl)
	require.NoError(t, d.AddPort(1, 1, dl1))
	require.NoError(t, d.AddPort(2, 2, dl2))
	return d, dl1, dl2
}

func serializePkt(t *testing.T, layers ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, layers...))
	return buf.Bytes()
}

func decodePkt(t *testing.T, raw []byte) gopacket.Packet {
	t.Helper()
	pkt := gopacket.NewPacket(raw, blayers.LayerTypeBACnetNPDU, gopacket.Default)
	require.Nil(t, pkt.ErrorLayer())
	return pkt
}

func npduOf(t *testing.T, pkt gopacket.Packet) *blayers.NPDU {
	t.Helper()
	l := pkt.Layer(blayers.LayerTypeBACnetNPDU)
	require.NotNil(t, l)
	return l.(*blayers.NPDU)
}

func TestProcessPktEntryGates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	station := bacnet.Address{MAC: []byte{0x0a}}
	testCases := map[string]struct {
		raw  []byte
		want router.Disposition
	}{
		"wrong protocol version": {
			raw:  []byte{0x02, 0x00, 0x10},
			want: router.PDiscard,
		},
		"truncated header": {
			raw:  []byte{0x01},
			want: router.PDiscard,
		},
		"network message for remote dnet": {
			raw: serializePkt(t, &blayers.NPDU{
				Version:        1,
				NetworkMessage: true,
				HasDestination: true,
				DNET:           7,
				HopCount:       255,
				MessageType:    blayers.MsgWhoIsRouterToNetwork,
			}),
			want: router.PDiscard,
		},
		"empty apdu": {
			raw:  []byte{0x01, 0x00},
			want: router.PDiscard,
		},
		"remote dest with exhausted hop count": {
			raw: serializePkt(t, &blayers.NPDU{
				Version:        1,
				HasDestination: true,
				DNET:           2,
				DADR:           []byte{0x63},
				HopCount:       1,
			}, gopacket.Payload{0x10}),
			want: router.PDiscard,
		},
		"confirmed request to global broadcast": {
			raw: serializePkt(t, &blayers.NPDU{
				Version:        1,
				HasDestination: true,
				DNET:           bacnet.BroadcastNetwork,
				HopCount:       255,
			}, gopacket.Payload{0x00, 0x01}),
			want: router.PDiscard,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			d, _, _ := twoPortPlane(t, ctrl)
			assert.Equal(t, tc.want, d.ProcessPkt(1, station, tc.raw))
		})
	}
}

func TestProcessPktUnknownIngress(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	d, _, _ := twoPortPlane(t, ctrl)
	raw := serializePkt(t, &blayers.NPDU{Version: 1}, gopacket.Payload{0x10})
	assert.Equal(t, router.PDiscard, d.ProcessPkt(99, bacnet.Address{MAC: []byte{1}}, raw))
}

func TestWhoIsRouterToNetwork(t *testing.T) {
	station := bacnet.Address{MAC: []byte{0x0a}}
	whoIs := func(t *testing.T, net uint16) []byte {
		npdu := &blayers.NPDU{
			Version:        1,
			NetworkMessage: true,
			HasDestination: true,
			DNET:           bacnet.BroadcastNetwork,
			HopCount:       255,
			MessageType:    blayers.MsgWhoIsRouterToNetwork,
		}
		if net == 0 {
			return serializePkt(t, npdu)
		}
		return serializePkt(t, npdu, &blayers.WhoIsRouterToNetwork{HasNetwork: true, Network: net})
	}

	t.Run("known via other port answers on ingress", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		d, dl1, _ := twoPortPlane(t, ctrl)

		dl1.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
			func(dst bacnet.Address, pdu []byte) error {
				assert.Empty(t, dst.MAC, "I-Am must be broadcast")
				pkt := decodePkt(t, pdu)
				iAm := pkt.Layer(blayers.LayerTypeIAmRouterToNetwork)
				require.NotNil(t, iAm)
				assert.Equal(t, []uint16{2}, iAm.(*blayers.IAmRouterToNetwork).Networks)
				return nil
			})
		assert.Equal(t, router.PControl, d.ProcessPkt(1, station, whoIs(t, 2)))
	})
	t.Run("known via ingress port is not answered", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		d, _, _ := twoPortPlane(t, ctrl)
		assert.Equal(t, router.PControl, d.ProcessPkt(1, station, whoIs(t, 1)))
	})
	t.Run("unknown propagates out other ports", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		d, _, dl2 := twoPortPlane(t, ctrl)

		dl2.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
			func(dst bacnet.Address, pdu []byte) error {
				pkt := decodePkt(t, pdu)
				w := pkt.Layer(blayers.LayerTypeWhoIsRouterToNetwork)
				require.NotNil(t, w)
				assert.Equal(t, uint16(9), w.(*blayers.WhoIsRouterToNetwork).Network)
				return nil
			})
		assert.Equal(t, router.PControl, d.ProcessPkt(1, station, whoIs(t, 9)))
	})
	t.Run("no network answers with everything reachable", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		d, dl1, _ := twoPortPlane(t, ctrl)
		require.NoError(t, d.AddStaticRoute(7, 2, []byte{0x42}))

		dl1.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
			func(dst bacnet.Address, pdu []byte) error {
				pkt := decodePkt(t, pdu)
				iAm := pkt.Layer(blayers.LayerTypeIAmRouterToNetwork)
				require.NotNil(t, iAm)
				assert.Equal(t, []uint16{2, 7}, iAm.(*blayers.IAmRouterToNetwork).Networks)
				return nil
			})
		assert.Equal(t, router.PControl, d.ProcessPkt(1, station, whoIs(t, 0)))
	})
}

func TestIAmRouterToNetwork(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	d, _, _ := twoPortPlane(t, ctrl)
	peer := bacnet.Address{MAC: []byte{0x44}}
	raw := serializePkt(t, &blayers.NPDU{
		Version:        1,
		NetworkMessage: true,
		HasDestination: true,
		DNET:           bacnet.BroadcastNetwork,
		HopCount:       255,
		MessageType:    blayers.MsgIAmRouterToNetwork,
	}, &blayers.IAmRouterToNetwork{Networks: []uint16{7, 8, 2}})

	assert.Equal(t, router.PControl, d.ProcessPkt(1, peer, raw))

	via, nextHop, ok := d.Lookup(7)
	require.True(t, ok)
	assert.Equal(t, uint16(1), via)
	assert.Equal(t, []byte{0x44}, nextHop)

	// Network 2 is directly attached; the advertisement must not displace it.
	via, nextHop, ok = d.Lookup(2)
	require.True(t, ok)
	assert.Equal(t, uint16(2), via)
	assert.Nil(t, nextHop)
}

func TestInitRtTable(t *testing.T) {
	station := bacnet.Address{MAC: []byte{0x0a}}
	initRt := func(t *testing.T, entries []blayers.RtEntry) []byte {
		return serializePkt(t, &blayers.NPDU{
			Version:        1,
			NetworkMessage: true,
			MessageType:    blayers.MsgInitRtTable,
		}, &blayers.InitRtTable{Entries: entries})
	}
	expectAck := func(t *testing.T, dl *mock_router.MockDatalink) {
		dl.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
			func(dst bacnet.Address, pdu []byte) error {
				assert.Empty(t, dst.MAC)
				pkt := decodePkt(t, pdu)
				ack := pkt.Layer(blayers.LayerTypeInitRtTableAck)
				require.NotNil(t, ack)
				assert.Equal(t, []blayers.RtEntry{
					{Network: 1, PortID: 1},
					{Network: 2, PortID: 2},
				}, ack.(*blayers.InitRtTableAck).Entries)
				return nil
			})
	}

	t.Run("empty request reports our table", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		d, dl1, _ := twoPortPlane(t, ctrl)
		expectAck(t, dl1)
		assert.Equal(t, router.PControl, d.ProcessPkt(1, station, initRt(t, nil)))
	})
	t.Run("entries are learned and acked", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		d, dl1, _ := twoPortPlane(t, ctrl)
		expectAck(t, dl1)
		entries := []blayers.RtEntry{{Network: 7, PortID: 3}}
		assert.Equal(t, router.PControl, d.ProcessPkt(1, station, initRt(t, entries)))

		via, nextHop, ok := d.Lookup(7)
		require.True(t, ok)
		assert.Equal(t, uint16(1), via)
		assert.Equal(t, station.MAC, nextHop)
	})
}

func TestUnknownNetworkMessageIsRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	d, dl1, _ := twoPortPlane(t, ctrl)
	station := bacnet.Address{MAC: []byte{0x0a}}
	raw := serializePkt(t, &blayers.NPDU{
		Version:        1,
		NetworkMessage: true,
		MessageType:    0x0a, // reserved, unknown to us
	})

	dl1.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(dst bacnet.Address, pdu []byte) error {
			assert.Equal(t, station.MAC, dst.MAC, "reject goes back to the sender")
			pkt := decodePkt(t, pdu)
			reject := pkt.Layer(blayers.LayerTypeRejectMessageToNetwork)
			require.NotNil(t, reject)
			r := reject.(*blayers.RejectMessageToNetwork)
			assert.Equal(t, blayers.RejectUnknownMessageType, r.Reason)
			assert.Equal(t, uint16(0), r.Network)
			return nil
		})
	assert.Equal(t, router.PDiscard, d.ProcessPkt(1, station, raw))
}

func TestRoutedAPDUGlobalBroadcast(t *testing.T) {
	station := bacnet.Address{MAC: []byte{0x0a}}
	apdu := []byte{0x10, 0x08}
	broadcast := func(t *testing.T, hopCount uint8) []byte {
		return serializePkt(t, &blayers.NPDU{
			Version:        1,
			HasDestination: true,
			DNET:           bacnet.BroadcastNetwork,
			HopCount:       hopCount,
		}, gopacket.Payload(apdu))
	}

	t.Run("forwarded and delivered", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		d, _, dl2 := twoPortPlane(t, ctrl)

		app := mock_router.NewMockApplicationHandler(ctrl)
		require.NoError(t, d.SetApplicationHandler(app))
		app.EXPECT().HandleAPDU(station, apdu)

		dl2.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
			func(dst bacnet.Address, pdu []byte) error {
				assert.Empty(t, dst.MAC)
				pkt := decodePkt(t, pdu)
				npdu := npduOf(t, pkt)
				assert.Equal(t, bacnet.BroadcastNetwork, npdu.DNET)
				assert.Equal(t, uint8(254), npdu.HopCount)
				assert.Equal(t, uint16(1), npdu.SNET)
				assert.Equal(t, station.MAC, npdu.SADR)
				assert.Equal(t, apdu, []byte(npdu.LayerPayload()))
				return nil
			})
		assert.Equal(t, router.PLocal, d.ProcessPkt(1, station, broadcast(t, 255)))
	})
	t.Run("hop count exhausted still delivers locally", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		d, _, _ := twoPortPlane(t, ctrl)

		app := mock_router.NewMockApplicationHandler(ctrl)
		require.NoError(t, d.SetApplicationHandler(app))
		app.EXPECT().HandleAPDU(station, apdu).Times(2)

		// No Send expected on either port.
		assert.Equal(t, router.PLocal, d.ProcessPkt(1, station, broadcast(t, 1)))
		assert.Equal(t, router.PLocal, d.ProcessPkt(1, station, broadcast(t, 0)))
	})
}

func TestRoutedAPDUExplicitLocalNetwork(t *testing.T) {
	station := bacnet.Address{MAC: []byte{0x0a}}
	apdu := []byte{0x10, 0x08}
	localDest := func(t *testing.T, hopCount uint8) []byte {
		return serializePkt(t, &blayers.NPDU{
			Version:        1,
			HasDestination: true,
			DNET:           bacnet.LocalNetwork,
			HopCount:       hopCount,
		}, gopacket.Payload(apdu))
	}

	// A destination block naming network 0 addresses the local network:
	// the APDU is delivered, nothing goes out any port, regardless of
	// the hop count it carries.
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d, _, _ := twoPortPlane(t, ctrl)

	app := mock_router.NewMockApplicationHandler(ctrl)
	require.NoError(t, d.SetApplicationHandler(app))
	app.EXPECT().HandleAPDU(station, apdu).Times(2)

	// No Send expected on either port.
	assert.Equal(t, router.PLocal, d.ProcessPkt(1, station, localDest(t, 5)))
	assert.Equal(t, router.PLocal, d.ProcessPkt(1, station, localDest(t, 1)))
}

func TestRoutedAPDUDirectlyAttached(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d, _, dl2 := twoPortPlane(t, ctrl)

	station := bacnet.Address{MAC: []byte{0x0a}}
	apdu := []byte{0x10, 0x08}
	raw := serializePkt(t, &blayers.NPDU{
		Version:        1,
		HasDestination: true,
		DNET:           2,
		DADR:           []byte{0x63},
		HopCount:       5,
	}, gopacket.Payload(apdu))

	dl2.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(dst bacnet.Address, pdu []byte) error {
			assert.Equal(t, []byte{0x63}, dst.MAC, "delivered to DADR")
			pkt := decodePkt(t, pdu)
			npdu := npduOf(t, pkt)
			assert.False(t, npdu.HasDestination, "routing information stripped")
			assert.Equal(t, uint16(1), npdu.SNET)
			assert.Equal(t, station.MAC, npdu.SADR)
			assert.Equal(t, apdu, []byte(npdu.LayerPayload()))
			return nil
		})
	assert.Equal(t, router.PForward, d.ProcessPkt(1, station, raw))
}

func TestRoutedAPDURemoteBroadcastOnAttached(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d, _, dl2 := twoPortPlane(t, ctrl)

	// Empty DADR: broadcast on network 2.
	raw := serializePkt(t, &blayers.NPDU{
		Version:        1,
		HasDestination: true,
		DNET:           2,
		HopCount:       5,
	}, gopacket.Payload{0x10})

	dl2.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(dst bacnet.Address, pdu []byte) error {
			assert.Empty(t, dst.MAC, "broadcast on the destination link")
			return nil
		})
	assert.Equal(t, router.PForward,
		d.ProcessPkt(1, bacnet.Address{MAC: []byte{0x0a}}, raw))
}

func TestRoutedAPDURelay(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d, _, dl2 := twoPortPlane(t, ctrl)
	require.NoError(t, d.AddStaticRoute(7, 2, []byte{0x44}))

	station := bacnet.Address{MAC: []byte{0x0a}}
	raw := serializePkt(t, &blayers.NPDU{
		Version:        1,
		HasDestination: true,
		DNET:           7,
		DADR:           []byte{0x63},
		HopCount:       9,
	}, gopacket.Payload{0x10})

	dl2.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(dst bacnet.Address, pdu []byte) error {
			assert.Equal(t, []byte{0x44}, dst.MAC, "relayed to the next router")
			pkt := decodePkt(t, pdu)
			npdu := npduOf(t, pkt)
			assert.Equal(t, uint16(7), npdu.DNET, "routing information intact")
			assert.Equal(t, []byte{0x63}, npdu.DADR)
			assert.Equal(t, uint8(8), npdu.HopCount)
			return nil
		})
	assert.Equal(t, router.PForward, d.ProcessPkt(1, station, raw))
}

func TestRoutedAPDUUnknownRoute(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d, _, dl2 := twoPortPlane(t, ctrl)

	raw := serializePkt(t, &blayers.NPDU{
		Version:        1,
		HasDestination: true,
		DNET:           9,
		DADR:           []byte{0x63},
		HopCount:       9,
	}, gopacket.Payload{0x10})

	var sawForward, sawWhoIs bool
	dl2.EXPECT().Send(gomock.Any(), gomock.Any()).Times(2).DoAndReturn(
		func(dst bacnet.Address, pdu []byte) error {
			assert.Empty(t, dst.MAC)
			pkt := decodePkt(t, pdu)
			npdu := npduOf(t, pkt)
			if npdu.NetworkMessage {
				w := pkt.Layer(blayers.LayerTypeWhoIsRouterToNetwork)
				require.NotNil(t, w)
				assert.Equal(t, uint16(9), w.(*blayers.WhoIsRouterToNetwork).Network)
				sawWhoIs = true
				return nil
			}
			assert.Equal(t, uint16(9), npdu.DNET)
			assert.Empty(t, npdu.DADR, "DADR cleared for the search broadcast")
			assert.Equal(t, uint8(8), npdu.HopCount)
			sawForward = true
			return nil
		})
	assert.Equal(t, router.PForward,
		d.ProcessPkt(1, bacnet.Address{MAC: []byte{0x0a}}, raw))
	assert.True(t, sawForward)
	assert.True(t, sawWhoIs)
}

func TestRoutedSrcAddressLearning(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d, _, dl2 := twoPortPlane(t, ctrl)

	// APDU from network 5, relayed to us by the router at 0xaa on network 1.
	routerMAC := bacnet.Address{MAC: []byte{0xaa}}
	raw := serializePkt(t, &blayers.NPDU{
		Version:        1,
		HasDestination: true,
		DNET:           2,
		DADR:           []byte{0x63},
		HopCount:       5,
		HasSource:      true,
		SNET:           5,
		SADR:           []byte{0x09},
	}, gopacket.Payload{0x10})

	dl2.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(dst bacnet.Address, pdu []byte) error {
			npdu := npduOf(t, decodePkt(t, pdu))
			assert.Equal(t, uint16(5), npdu.SNET, "original source kept")
			assert.Equal(t, []byte{0x09}, npdu.SADR)
			return nil
		})
	assert.Equal(t, router.PForward, d.ProcessPkt(1, routerMAC, raw))

	// The relaying router was learned as the route to network 5.
	via, nextHop, ok := d.Lookup(5)
	require.True(t, ok)
	assert.Equal(t, uint16(1), via)
	assert.Equal(t, routerMAC.MAC, nextHop)
}

func TestLocalDelivery(t *testing.T) {
	station := bacnet.Address{MAC: []byte{0x0a}}
	apdu := []byte{0x10, 0x08}

	t.Run("no destination", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		d, _, _ := twoPortPlane(t, ctrl)
		app := mock_router.NewMockApplicationHandler(ctrl)
		require.NoError(t, d.SetApplicationHandler(app))
		app.EXPECT().HandleAPDU(station, apdu)

		raw := serializePkt(t, &blayers.NPDU{Version: 1}, gopacket.Payload(apdu))
		assert.Equal(t, router.PLocal, d.ProcessPkt(1, station, raw))
	})
	t.Run("routed source is surfaced", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		d, _, _ := twoPortPlane(t, ctrl)
		app := mock_router.NewMockApplicationHandler(ctrl)
		require.NoError(t, d.SetApplicationHandler(app))
		app.EXPECT().HandleAPDU(
			bacnet.Address{MAC: []byte{0x0a}, Net: 5, ADR: []byte{0x09}}, apdu)

		raw := serializePkt(t, &blayers.NPDU{
			Version:   1,
			HasSource: true,
			SNET:      5,
			SADR:      []byte{0x09},
		}, gopacket.Payload(apdu))
		assert.Equal(t, router.PLocal, d.ProcessPkt(1, station, raw))
	})
	t.Run("no handler drops", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		d, _, _ := twoPortPlane(t, ctrl)
		raw := serializePkt(t, &blayers.NPDU{Version: 1}, gopacket.Payload(apdu))
		assert.Equal(t, router.PDiscard, d.ProcessPkt(1, station, raw))
	})
}

func TestDataPlaneRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	d := router.NewDataPlane()
	for i, net := range []uint16{1, 2} {
		dl := mock_router.NewMockDatalink(ctrl)
		dl.EXPECT().Run(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		})
		dl.EXPECT().Close().Return(nil)
		require.NoError(t, d.AddPort(uint8(i+1), net, dl))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx)
	}()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("dataplane did not shut down")
	}
}

func TestRunWithoutPorts(t *testing.T) {
	d := router.NewDataPlane()
	assert.Error(t, d.Run(context.Background()))
}
