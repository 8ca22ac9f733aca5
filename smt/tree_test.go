// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package smt

import (
	"bytes"
	"sort"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/kv"
	"github.com/godwokenrises/godwoken-sub004/lvldb"
)

func newTestDatabase(t *testing.T) (*Database, kv.Store) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := kv.Bucket("n").NewStore(db)
	return NewDatabase(store, 1024), store
}

// naiveRoot hashes every level of the full tree.
func naiveRoot(m map[gw.Bytes32]gw.Bytes32) gw.Bytes32 {
	var pairs []pair
	for k, v := range m {
		if !v.IsZero() {
			pairs = append(pairs, pair{k, v})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return bytes.Compare(pairs[i].key[:], pairs[j].key[:]) < 0 })

	var hash func(d int, pairs []pair) gw.Bytes32
	hash = func(d int, pairs []pair) gw.Bytes32 {
		if len(pairs) == 0 {
			return gw.Bytes32{}
		}
		if d == Depth {
			return leafHash(&pairs[0].key, &pairs[0].value)
		}
		i := sort.Search(len(pairs), func(i int) bool { return bit(&pairs[i].key, d) == 1 })
		l, r := hash(d+1, pairs[:i]), hash(d+1, pairs[i:])
		return merge(&l, &r)
	}
	return hash(0, pairs)
}

func randomPairs(n int) map[gw.Bytes32]gw.Bytes32 {
	f := fuzz.New().NilChance(0)
	m := make(map[gw.Bytes32]gw.Bytes32, n)
	for len(m) < n {
		var k, v gw.Bytes32
		f.Fuzz(&k)
		f.Fuzz(&v)
		if !v.IsZero() {
			m[k] = v
		}
	}
	return m
}

func TestEmptyTree(t *testing.T) {
	db, _ := newTestDatabase(t)
	tree := db.NewTree(gw.Bytes32{})
	assert.True(t, tree.Root().IsZero())

	v, err := tree.Get(gw.Blake2b([]byte("k")))
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	// deleting an absent key keeps the tree empty
	require.NoError(t, tree.Update(gw.Blake2b([]byte("k")), gw.Bytes32{}))
	assert.True(t, tree.Root().IsZero())
}

func TestSingleLeafRoot(t *testing.T) {
	db, _ := newTestDatabase(t)
	tree := db.NewTree(gw.Bytes32{})
	k, v := gw.Blake2b([]byte("k")), gw.Blake2b([]byte("v"))
	require.NoError(t, tree.Update(k, v))
	assert.Equal(t, shortcutHash(&k, &v, 0), tree.Root())
	assert.Equal(t, naiveRoot(map[gw.Bytes32]gw.Bytes32{k: v}), tree.Root())
}

func TestTreeMatchesFullTree(t *testing.T) {
	db, store := newTestDatabase(t)
	tree := db.NewTree(gw.Bytes32{})

	m := randomPairs(200)
	// keys sharing long prefixes
	for i := range 8 {
		k := gw.Uint32ToBytes32(uint32(i))
		m[k] = gw.Blake2b(k[:])
	}
	for k, v := range m {
		require.NoError(t, tree.Update(k, v))
	}
	assert.Equal(t, naiveRoot(m), tree.Root())

	// delete half, overwrite the rest
	i := 0
	for k := range m {
		if i%2 == 0 {
			m[k] = gw.Bytes32{}
		} else {
			m[k] = gw.Blake2b(k[:], []byte("again"))
		}
		require.NoError(t, tree.Update(k, m[k]))
		i++
	}
	assert.Equal(t, naiveRoot(m), tree.Root())

	bulk := store.Bulk()
	require.NoError(t, tree.Commit(bulk))
	require.NoError(t, bulk.Write())

	// reopen from a fresh database, without cache
	reopened := NewDatabase(store, 1).NewTree(tree.Root())
	for k, v := range m {
		got, err := reopened.Get(k)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestInsertOrderIndependence(t *testing.T) {
	db, _ := newTestDatabase(t)
	m := randomPairs(64)

	keys := make([]gw.Bytes32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	a, b := db.NewTree(gw.Bytes32{}), db.NewTree(gw.Bytes32{})
	for i := range keys {
		require.NoError(t, a.Update(keys[i], m[keys[i]]))
		j := len(keys) - 1 - i
		require.NoError(t, b.Update(keys[j], m[keys[j]]))
	}
	assert.Equal(t, a.Root(), b.Root())

	// removing everything returns to the empty root
	for _, k := range keys {
		require.NoError(t, a.Update(k, gw.Bytes32{}))
	}
	assert.True(t, a.Root().IsZero())
}

func TestHistoricalRoots(t *testing.T) {
	db, store := newTestDatabase(t)
	tree := db.NewTree(gw.Bytes32{})
	k := gw.Blake2b([]byte("balance"))

	var roots []gw.Bytes32
	for i := range 5 {
		require.NoError(t, tree.Update(k, gw.Uint64ToBytes32(uint64(i+1))))
		require.NoError(t, tree.Update(gw.Blake2b(k[:], []byte{byte(i)}), gw.Uint64ToBytes32(1)))
		require.NoError(t, tree.Commit(store))
		roots = append(roots, tree.Root())
	}
	for i, root := range roots {
		v, err := db.NewTree(root).Get(k)
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), v.Uint64())
	}
}

func TestCopy(t *testing.T) {
	db, _ := newTestDatabase(t)
	tree := db.NewTree(gw.Bytes32{})
	k1, k2 := gw.Blake2b([]byte("1")), gw.Blake2b([]byte("2"))
	require.NoError(t, tree.Update(k1, k1))

	cpy := tree.Copy()
	require.NoError(t, cpy.Update(k2, k2))
	assert.NotEqual(t, tree.Root(), cpy.Root())

	v, err := tree.Get(k2)
	require.NoError(t, err)
	assert.True(t, v.IsZero())
}
