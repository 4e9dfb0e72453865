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

package config

const apiSample = `
# Address the management API listens on. The API is disabled if not set.
# (e.g. 127.0.0.1:30452)
addr = ""
`

const bipSample = `
# Whether the BACnet/IP port is disabled.
disabled = false

# BACnet network number of the attached IP network.
network = 1

# UDP endpoint to bind. (default ":47808")
listen = ":47808"

# Address used for link broadcasts. If not set, the limited broadcast
# address with the listen port is used. (e.g. 192.0.2.255:47808)
broadcast = ""
`

const mstpSample = `
# Serial device of the RS-485 transceiver. The MS/TP port is enabled by
# setting this. (e.g. /dev/ttyUSB0)
device = ""

# BACnet network number of the attached MS/TP segment.
network = 2

# Line speed of the segment. (default 38400)
baud_rate = 38400

# Our station address on the segment. (default 127)
mac = 127

# Highest master address polled for on the segment. (default 127)
max_master = 127

# Maximum number of frames sent per token hold. (default 128)
max_info_frames = 128
`

const routeSample = `
# Static routes seed the routing table at startup. Routes learned from
# peer routers do not displace them.
#
# [[route]]
#     # Destination network number.
#     network = 5
#     # Network number of the port the next router is on.
#     via = 1
#     # Hex encoded MAC of the next router.
#     next_hop = "c0a80105bac0"
`
