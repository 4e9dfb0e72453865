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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutingTableLearn(t *testing.T) {
	var table routingTable
	require.NoError(t, table.addPort(1, 1, nil))
	require.NoError(t, table.addPort(2, 2, nil))

	assert.False(t, table.learn(9, 7, []byte{0x44}), "via must be a port")

	require.True(t, table.learn(1, 7, []byte{0x44}))
	_, nextHop, ok := table.lookup(7)
	require.True(t, ok)
	assert.Equal(t, []byte{0x44}, nextHop)

	// The first learned entry wins.
	require.True(t, table.learn(2, 7, []byte{0x55}))
	p, nextHop, ok := table.lookup(7)
	require.True(t, ok)
	assert.Equal(t, uint16(1), p.net)
	assert.Equal(t, []byte{0x44}, nextHop)

	// Directly attached networks are never shadowed.
	require.True(t, table.learn(1, 2, []byte{0x66}))
	p, nextHop, ok = table.lookup(2)
	require.True(t, ok)
	assert.Equal(t, uint16(2), p.net)
	assert.Nil(t, nextHop)
}

func TestRoutingTableSnapshotOrder(t *testing.T) {
	var table routingTable
	require.NoError(t, table.addPort(3, 30, nil))
	require.NoError(t, table.addPort(1, 10, nil))
	require.NoError(t, table.addPort(2, 20, nil))

	var ids []uint8
	for _, p := range table.snapshot() {
		ids = append(ids, p.id)
	}
	assert.Equal(t, []uint8{1, 2, 3}, ids)
}

func TestRoutingTableReachableVia(t *testing.T) {
	var table routingTable
	require.NoError(t, table.addPort(1, 1, nil))
	require.True(t, table.learn(1, 7, []byte{0x44}))
	require.True(t, table.learn(1, 8, []byte{0x44}))

	p := table.findPort(1)
	require.NotNil(t, p)
	assert.Equal(t, []uint16{1, 7, 8}, table.reachableVia(p))
}
