// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/kv"
	"github.com/godwokenrises/godwoken-sub004/lvldb"
)

func newStore(t *testing.T) kv.Store {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func keys(t *testing.T, it kv.Iterator) (out []string) {
	defer it.Release()
	for it.Next() {
		out = append(out, string(it.Key()))
	}
	require.NoError(t, it.Error())
	return
}

func TestBucketGetPut(t *testing.T) {
	db := newStore(t)
	a := kv.Bucket("a").NewStore(db)
	b := kv.Bucket("b").NewStore(db)

	require.NoError(t, a.Put([]byte("k"), []byte("va")))
	require.NoError(t, b.Put([]byte("k"), []byte("vb")))

	val, err := a.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("va"), val)

	val, err = db.Get([]byte("bk"))
	require.NoError(t, err)
	assert.Equal(t, []byte("vb"), val, "keys are prefixed by the bucket name")

	has, err := a.Has([]byte("x"))
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, a.Delete([]byte("k")))
	_, err = a.Get([]byte("k"))
	assert.True(t, a.IsNotFound(err))

	has, err = b.Has([]byte("k"))
	require.NoError(t, err)
	assert.True(t, has)
}

func TestBucketIterate(t *testing.T) {
	db := newStore(t)
	require.NoError(t, db.Put([]byte("a0"), nil))
	require.NoError(t, db.Put([]byte("b0"), nil))
	require.NoError(t, db.Put([]byte("b1"), nil))
	require.NoError(t, db.Put([]byte("b2"), nil))
	require.NoError(t, db.Put([]byte("c0"), nil))

	b := kv.Bucket("b").NewStore(db)
	assert.Equal(t, []string{"0", "1", "2"}, keys(t, b.Iterate(kv.Range{})))
	assert.Equal(t, []string{"1"}, keys(t, b.Iterate(kv.Range{Start: []byte("1"), Limit: []byte("2")})))
	assert.Equal(t, []string{"1", "2"}, keys(t, b.Iterate(kv.Range{Start: []byte("1")})))
}

func TestBucketSnapshotBulk(t *testing.T) {
	db := newStore(t)
	b := kv.Bucket("b").NewStore(db)

	bulk := b.Bulk()
	require.NoError(t, bulk.Put([]byte("1"), []byte("one")))
	require.NoError(t, bulk.Put([]byte("2"), []byte("two")))
	assert.Equal(t, 2, bulk.Len())

	has, err := b.Has([]byte("1"))
	require.NoError(t, err)
	assert.False(t, has, "bulk not written yet")
	require.NoError(t, bulk.Write())

	snap := b.Snapshot()
	defer snap.Release()
	require.NoError(t, b.Delete([]byte("1")))

	val, err := snap.Get([]byte("1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), val, "snapshot keeps the old view")

	_, err = b.Get([]byte("1"))
	assert.True(t, b.IsNotFound(err))
}

func TestPrefixRange(t *testing.T) {
	r := kv.PrefixRange([]byte{1, 0xff})
	assert.Equal(t, []byte{1, 0xff}, r.Start)
	assert.Equal(t, []byte{2}, r.Limit)

	assert.Nil(t, kv.PrefixRange([]byte{0xff, 0xff}).Limit)
}
