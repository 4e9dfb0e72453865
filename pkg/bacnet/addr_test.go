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

package bacnet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openbacnet/openbacnet/pkg/bacnet"
)

func TestAddressClassification(t *testing.T) {
	local := bacnet.Address{MAC: []byte{0x19}}
	assert.False(t, local.IsRemote())
	assert.False(t, local.IsBroadcast())

	remote := bacnet.Address{Net: 5, ADR: []byte{0x63}}
	assert.True(t, remote.IsRemote())
	assert.False(t, remote.IsBroadcast())

	bcast := bacnet.Broadcast()
	assert.True(t, bcast.IsBroadcast())
	assert.False(t, bcast.IsRemote())
}

func TestAddressCopy(t *testing.T) {
	a := bacnet.Address{MAC: []byte{1, 2}, Net: 7, ADR: []byte{3}}
	c := a.Copy()
	assert.True(t, a.Equal(c))

	c.MAC[0] = 0xff
	c.ADR[0] = 0xff
	assert.Equal(t, []byte{1, 2}, a.MAC)
	assert.Equal(t, []byte{3}, a.ADR)
}

func TestAddressEqual(t *testing.T) {
	a := bacnet.Address{MAC: []byte{1}, Net: 2, ADR: []byte{3}}
	assert.True(t, a.Equal(bacnet.Address{MAC: []byte{1}, Net: 2, ADR: []byte{3}}))
	assert.False(t, a.Equal(bacnet.Address{MAC: []byte{1}, Net: 3, ADR: []byte{3}}))
	assert.False(t, a.Equal(bacnet.Address{MAC: []byte{1}, Net: 2}))
}

func TestAddressString(t *testing.T) {
	assert.Equal(t, "bcast", bacnet.Broadcast().String())
	assert.Equal(t, "5:63", bacnet.Address{Net: 5, ADR: []byte{0x63}}.String())
	assert.Equal(t, "0a00", bacnet.Address{MAC: []byte{0x0a, 0x00}}.String())
}
