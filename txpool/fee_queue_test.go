// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package txpool

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/gw"
)

var testOrder uint64

func newTestObject(sender, nonce uint32, fee, cycles uint64) *txObject {
	testOrder++
	return &txObject{
		hash:        gw.Bytes32{byte(sender), byte(nonce), byte(testOrder)},
		sender:      sender,
		nonce:       nonce,
		feeRate:     feeRate(uint256.NewInt(fee), cycles),
		cyclesLimit: cycles,
		order:       testOrder,
	}
}

func zeroNonces(uint32) (uint32, error) { return 0, nil }

func TestFeeQueueOrder(t *testing.T) {
	q := newFeeQueue(100, 10)
	var (
		low      = newTestObject(1, 0, 1000, 1000)
		high     = newTestObject(2, 0, 5000, 1000)
		cheap    = newTestObject(3, 0, 500, 500)
		sameRate = newTestObject(4, 0, 1000, 1000)
	)
	for _, obj := range []*txObject{low, high, cheap, sameRate} {
		assert.Empty(t, q.Add(obj))
	}
	fetched, dropped, err := q.Fetch(zeroNonces, 10)
	require.NoError(t, err)
	assert.Empty(t, dropped)
	// rate desc, then lower cycles, then arrival
	assert.Equal(t, []*txObject{high, cheap, low, sameRate}, fetched)
	assert.Zero(t, q.Len())
}

func TestFeeQueueNonce(t *testing.T) {
	q := newFeeQueue(100, 10)
	var (
		a1     = newTestObject(1, 1, 1000, 1000)
		a0     = newTestObject(1, 0, 100, 1000)
		a2     = newTestObject(1, 2, 9000, 1000)
		stale  = newTestObject(2, 0, 1000, 1000)
		future = newTestObject(3, 5, 1000, 1000)
	)
	for _, obj := range []*txObject{a1, a0, a2, stale, future} {
		q.Add(obj)
	}
	nonces := map[uint32]uint32{1: 0, 2: 3, 3: 0}
	fetched, dropped, err := q.Fetch(func(sender uint32) (uint32, error) { return nonces[sender], nil }, 10)
	require.NoError(t, err)
	// a2 and a1 come before a0 by fee rate, they are pushed back and fetched next time
	assert.Equal(t, []*txObject{a0}, fetched)
	assert.ElementsMatch(t, []*txObject{stale, future}, dropped)
	assert.Equal(t, 2, q.Len())

	nonces[1] = 1
	fetched, _, err = q.Fetch(func(sender uint32) (uint32, error) { return nonces[sender], nil }, 10)
	require.NoError(t, err)
	assert.Equal(t, []*txObject{a1}, fetched)

	nonces[1] = 2
	fetched, _, err = q.Fetch(func(sender uint32) (uint32, error) { return nonces[sender], nil }, 1)
	require.NoError(t, err)
	assert.Equal(t, []*txObject{a2}, fetched)
}

func TestFeeQueueLimit(t *testing.T) {
	q := newFeeQueue(20, 5)
	var objs []*txObject
	for i := range 20 {
		obj := newTestObject(uint32(i), 0, uint64(1000*(i+1)), 1000)
		objs = append(objs, obj)
		assert.Empty(t, q.Add(obj))
	}
	dropped := q.Add(newTestObject(100, 0, 100_000, 1000))
	require.Len(t, dropped, 5)
	assert.ElementsMatch(t, objs[:5], dropped)
	assert.Equal(t, 16, q.Len())

	assert.True(t, q.Remove(objs[10]))
	assert.False(t, q.Remove(objs[10]))
	assert.Equal(t, 15, q.Len())
}
