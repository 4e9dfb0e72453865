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
	"github.com/openbacnet/openbacnet/pkg/bacnet"
)

type DataPlane = dataPlane

var (
	ErrAlreadySet     = alreadySet
	ErrEmptyValue     = emptyValue
	ErrModifyExisting = modifyExisting
	ErrInvalidNetwork = invalidNetwork
	ErrUnknownNetwork = unknownNetwork
)

func GetMetrics() *Metrics {
	return theMetrics
}

type Disposition disposition

const (
	PDiscard = Disposition(pDiscard)
	PForward = Disposition(pForward)
	PLocal   = Disposition(pLocal)
	PControl = Disposition(pControl)
)

func (d *dataPlane) FakeStart() {
	d.setRunning()
}

func (d *dataPlane) ProcessPkt(snet uint16, src bacnet.Address, raw []byte) Disposition {
	return Disposition(d.process(snet, src, raw))
}

func (d *dataPlane) Lookup(net uint16) (uint16, []byte, bool) {
	p, nextHop, ok := d.table.lookup(net)
	if !ok {
		return 0, nil, false
	}
	return p.net, nextHop, true
}
