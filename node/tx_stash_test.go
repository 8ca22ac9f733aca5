// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"math/rand/v2"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/genesis"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/kv"
	"github.com/godwokenrises/godwoken-sub004/lvldb"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

func newStashStore(t *testing.T) (*lvldb.LevelDB, kv.Store) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, kv.Bucket("stash").NewStore(db)
}

func newTx() *tx.Transaction {
	cfg := gw.DefaultConfig()
	trx := tx.NewBuilder(cfg.ChainID).
		From(3).
		To(gw.CKBSUDTAccountID).
		Nonce(rand.Uint32()). //#nosec
		Build()
	return tx.MustSign(trx, cfg.RollupScriptHash, genesis.DevAccounts()[0].PrivateKey)
}

func newWithdrawal() *tx.Withdrawal {
	cfg := gw.DefaultConfig()
	acc := genesis.DevAccounts()[0]
	w, err := tx.SignWithdrawal(tx.NewWithdrawal(tx.RawWithdrawal{
		Nonce:             rand.Uint32(), //#nosec
		ChainID:           cfg.ChainID,
		Capacity:          100_0000_0000,
		Amount:            new(uint256.Int),
		AccountScriptHash: gw.NewEOAScript(cfg.EOACodeHash, cfg.RollupScriptHash, acc.Address).Hash(),
		RegistryID:        gw.ETHRegistryID,
		OwnerLockHash:     gw.Blake2b([]byte("owner")),
		Fee:               new(uint256.Int),
	}), cfg.RollupScriptHash, acc.PrivateKey)
	if err != nil {
		panic(err)
	}
	return w
}

func TestTxStash(t *testing.T) {
	_, store := newStashStore(t)
	stash := newTxStash(store, 10)

	var saved tx.Transactions
	for range 11 {
		trx := newTx()
		saved = append(saved, trx)
		assert.NoError(t, stash.Save(trx))
	}
	w := newWithdrawal()
	assert.NoError(t, stash.SaveWithdrawal(w))

	txs, withdrawals := newTxStash(store, 10).LoadAll()
	// the two oldest are evicted
	assert.Len(t, txs, 9)
	require.Len(t, withdrawals, 1)
	assert.Equal(t, w.Hash(), withdrawals[0].Hash())

	loaded := make(map[gw.Bytes32]bool)
	for _, trx := range txs {
		loaded[trx.Hash()] = true
	}
	assert.False(t, loaded[saved[0].Hash()])
	assert.False(t, loaded[saved[1].Hash()])
	for _, trx := range saved[2:] {
		assert.True(t, loaded[trx.Hash()])
	}
}

func TestTxStashSaveTwice(t *testing.T) {
	_, store := newStashStore(t)
	stash := newTxStash(store, 10)

	trx := newTx()
	assert.NoError(t, stash.Save(trx))
	assert.NoError(t, stash.Save(trx))
	assert.Equal(t, 1, stash.fifo.Len())

	txs, _ := newTxStash(store, 10).LoadAll()
	assert.Len(t, txs, 1)
}

func TestTxStashDrop(t *testing.T) {
	_, store := newStashStore(t)
	stash := newTxStash(store, 10)

	packed, pending := newTx(), newTx()
	w := newWithdrawal()
	require.NoError(t, stash.Save(packed))
	require.NoError(t, stash.Save(pending))
	require.NoError(t, stash.SaveWithdrawal(w))

	blk := new(block.Builder).Transaction(packed).Withdrawal(w).Build()
	require.NoError(t, stash.Drop(blk))
	assert.Equal(t, 1, stash.fifo.Len())
	assert.Len(t, stash.elems, 1)

	txs, withdrawals := newTxStash(store, 10).LoadAll()
	require.Len(t, txs, 1)
	assert.Equal(t, pending.Hash(), txs[0].Hash())
	assert.Empty(t, withdrawals)

	// nothing packed
	assert.NoError(t, stash.Drop(new(block.Builder).Build()))
}

func TestTxStashCorrupted(t *testing.T) {
	_, store := newStashStore(t)
	stash := newTxStash(store, 10)

	trx := newTx()
	require.NoError(t, stash.Save(trx))
	badKey := stashKey(stashTx, gw.Blake2b([]byte("bad")))
	require.NoError(t, store.Put(badKey, []byte{0xff, 0xff, 0xff}))
	shortKey := []byte{0x01, 0x02, 0x03}
	require.NoError(t, store.Put(shortKey, []byte{0x01}))
	unknownKind := stashKey(7, gw.Blake2b([]byte("unknown")))
	require.NoError(t, store.Put(unknownKind, []byte{0x01}))

	txs, withdrawals := newTxStash(store, 10).LoadAll()
	require.Len(t, txs, 1)
	assert.Equal(t, trx.Hash(), txs[0].Hash())
	assert.Empty(t, withdrawals)

	for _, key := range [][]byte{badKey, shortKey, unknownKind} {
		has, err := store.Has(key)
		require.NoError(t, err)
		assert.False(t, has, "corrupted entry deleted")
	}
}

func TestTxStashClosedStore(t *testing.T) {
	db, store := newStashStore(t)
	stash := newTxStash(store, 1)
	require.NoError(t, stash.Save(newTx()))

	require.NoError(t, db.Close())
	assert.Error(t, stash.Save(newTx()))
	assert.Error(t, stash.SaveWithdrawal(newWithdrawal()))

	txs, withdrawals := stash.LoadAll()
	assert.Empty(t, txs)
	assert.Empty(t, withdrawals)
}
