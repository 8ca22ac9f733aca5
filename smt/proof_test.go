// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package smt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/gw"
)

func buildTree(t *testing.T, m map[gw.Bytes32]gw.Bytes32) *Tree {
	db, _ := newTestDatabase(t)
	tree := db.NewTree(gw.Bytes32{})
	for k, v := range m {
		require.NoError(t, tree.Update(k, v))
	}
	return tree
}

func TestProofRoundTrip(t *testing.T) {
	m := randomPairs(100)
	tree := buildTree(t, m)

	var keys, values []gw.Bytes32
	for k, v := range m {
		keys = append(keys, k)
		values = append(values, v)
		if len(keys) == 5 {
			break
		}
	}
	// an absent key is proven with a zero value
	absent := gw.Blake2b([]byte("absent"))
	keys = append(keys, absent)
	values = append(values, gw.Bytes32{})

	proof, err := tree.MerkleProof(keys)
	require.NoError(t, err)
	assert.True(t, Verify(tree.Root(), keys, values, proof))

	// order of the pairs does not matter
	rk := append([]gw.Bytes32{keys[len(keys)-1]}, keys[:len(keys)-1]...)
	rv := append([]gw.Bytes32{values[len(values)-1]}, values[:len(values)-1]...)
	assert.True(t, Verify(tree.Root(), rk, rv, proof))

	assert.False(t, Verify(tree.Root(), keys[:len(keys)-1], values[:len(values)-1], proof))
}

func TestProofSingleBitCorruption(t *testing.T) {
	m := randomPairs(30)
	tree := buildTree(t, m)

	var keys, values []gw.Bytes32
	for k, v := range m {
		keys = append(keys, k)
		values = append(values, v)
		if len(keys) == 3 {
			break
		}
	}
	proof, err := tree.MerkleProof(keys)
	require.NoError(t, err)
	root := tree.Root()
	require.True(t, Verify(root, keys, values, proof))

	for i := range len(proof) * 8 {
		corrupted := append(Proof(nil), proof...)
		corrupted[i/8] ^= 1 << uint(i%8)
		assert.False(t, Verify(root, keys, values, corrupted), "proof bit %d", i)
	}
	for j := range values {
		for i := range 256 {
			vs := append([]gw.Bytes32(nil), values...)
			vs[j][i/8] ^= 1 << uint(i%8)
			assert.False(t, Verify(root, keys, vs, proof), "value %d bit %d", j, i)
		}
	}
	for i := range 256 {
		r := root
		r[i/8] ^= 1 << uint(i%8)
		assert.False(t, Verify(r, keys, values, proof), "root bit %d", i)
	}
}

func TestComputeRootAfterUpdate(t *testing.T) {
	m := randomPairs(50)
	tree := buildTree(t, m)

	var keys []gw.Bytes32
	for k := range m {
		keys = append(keys, k)
		if len(keys) == 4 {
			break
		}
	}
	fresh := gw.Blake2b([]byte("fresh"))
	keys = append(keys, fresh)

	proof, err := tree.MerkleProof(keys)
	require.NoError(t, err)

	newValues := make([]gw.Bytes32, len(keys))
	for i, k := range keys {
		newValues[i] = gw.Blake2b(k[:], []byte("new"))
		require.NoError(t, tree.Update(k, newValues[i]))
	}
	newValues[0] = gw.Bytes32{}
	require.NoError(t, tree.Update(keys[0], gw.Bytes32{}))

	root, err := ComputeRoot(keys, newValues, proof)
	require.NoError(t, err)
	assert.Equal(t, tree.Root(), root)
}

func TestPartialTree(t *testing.T) {
	m := randomPairs(40)
	tree := buildTree(t, m)

	var keys, values []gw.Bytes32
	for k, v := range m {
		keys = append(keys, k)
		values = append(values, v)
		if len(keys) == 3 {
			break
		}
	}
	proof, err := tree.MerkleProof(keys)
	require.NoError(t, err)

	partial, err := NewPartialTree(tree.Root(), keys, values, proof)
	require.NoError(t, err)
	assert.Equal(t, tree.Root(), partial.Root())

	v, err := partial.Get(keys[1])
	require.NoError(t, err)
	assert.Equal(t, values[1], v)

	require.NoError(t, partial.Update(keys[1], gw.Uint32ToBytes32(9)))
	require.NoError(t, tree.Update(keys[1], gw.Uint32ToBytes32(9)))
	assert.Equal(t, tree.Root(), partial.Root())

	_, err = partial.Get(gw.Blake2b([]byte("other")))
	assert.ErrorIs(t, err, ErrKeyNotProven)
	assert.ErrorIs(t, partial.Update(gw.Blake2b([]byte("other")), gw.Bytes32{}), ErrKeyNotProven)

	_, err = NewPartialTree(gw.Blake2b([]byte("wrong root")), keys, values, proof)
	assert.Error(t, err)
}

func TestProofInputErrors(t *testing.T) {
	tree := buildTree(t, randomPairs(4))
	_, err := tree.MerkleProof(nil)
	assert.Error(t, err)

	k := gw.Blake2b([]byte("k"))
	_, err = tree.MerkleProof([]gw.Bytes32{k, k})
	assert.Error(t, err)

	_, err = ComputeRoot([]gw.Bytes32{k}, nil, Proof{0})
	assert.Error(t, err)
}
