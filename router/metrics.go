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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics defines the data-plane metrics for the router.
type Metrics struct {
	InputBytesTotal       *prometheus.CounterVec
	OutputBytesTotal      *prometheus.CounterVec
	InputPacketsTotal     *prometheus.CounterVec
	OutputPacketsTotal    *prometheus.CounterVec
	ForwardedPacketsTotal *prometheus.CounterVec
	DeliveredPacketsTotal *prometheus.CounterVec
	ControlMessagesTotal  *prometheus.CounterVec
	DiscoverySentTotal    *prometheus.CounterVec
	DroppedPacketsTotal   *prometheus.CounterVec
	RoutingTableSize      prometheus.Gauge
}

// NewMetrics initializes the metrics for the router and registers them with
// the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		InputBytesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_input_bytes_total",
				Help: "Total number of bytes received",
			},
			[]string{"net"},
		),
		OutputBytesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_output_bytes_total",
				Help: "Total number of bytes sent.",
			},
			[]string{"net"},
		),
		InputPacketsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_input_pkts_total",
				Help: "Total number of packets received",
			},
			[]string{"net"},
		),
		OutputPacketsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_output_pkts_total",
				Help: "Total number of packets sent.",
			},
			[]string{"net"},
		),
		ForwardedPacketsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_forwarded_pkts_total",
				Help: "Total number of APDUs relayed between networks.",
			},
			[]string{"net"},
		),
		DeliveredPacketsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_delivered_pkts_total",
				Help: "Total number of APDUs delivered to the local application.",
			},
			[]string{"net"},
		),
		ControlMessagesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_control_msgs_total",
				Help: "Total number of network layer messages consumed.",
			},
			[]string{"net", "type"},
		),
		DiscoverySentTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_discovery_sent_total",
				Help: "Total number of Who-Is-Router-To-Network queries originated.",
			},
			[]string{"net"},
		),
		DroppedPacketsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_dropped_pkts_total",
				Help: "Total number of packets dropped by the router.",
			},
			[]string{"net"},
		),
		RoutingTableSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "router_routing_table_size",
				Help: "Number of networks in the routing table, direct and learned.",
			},
		),
	}
}

// PortMetrics are the per-port views of the router metrics, resolved once at
// port creation so the data path never touches a label lookup.
type PortMetrics struct {
	InputBytesTotal       prometheus.Counter
	OutputBytesTotal      prometheus.Counter
	InputPacketsTotal     prometheus.Counter
	OutputPacketsTotal    prometheus.Counter
	ForwardedPacketsTotal prometheus.Counter
	DeliveredPacketsTotal prometheus.Counter
	DiscoverySentTotal    prometheus.Counter
	DroppedPacketsTotal   prometheus.Counter
}

func newPortMetrics(m *Metrics, net uint16) PortMetrics {
	labels := prometheus.Labels{"net": strconv.Itoa(int(net))}
	return PortMetrics{
		InputBytesTotal:       m.InputBytesTotal.With(labels),
		OutputBytesTotal:      m.OutputBytesTotal.With(labels),
		InputPacketsTotal:     m.InputPacketsTotal.With(labels),
		OutputPacketsTotal:    m.OutputPacketsTotal.With(labels),
		ForwardedPacketsTotal: m.ForwardedPacketsTotal.With(labels),
		DeliveredPacketsTotal: m.DeliveredPacketsTotal.With(labels),
		DiscoverySentTotal:    m.DiscoverySentTotal.With(labels),
		DroppedPacketsTotal:   m.DroppedPacketsTotal.With(labels),
	}
}
