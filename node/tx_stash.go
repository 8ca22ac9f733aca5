// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"container/list"
	"sync"

	"github.com/spacemeshos/go-scale"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/codec"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/kv"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

const (
	stashTx byte = iota
	stashWithdrawal
)

// txStash persists pooled txs and withdrawals, to be pooled again after a restart.
// It uses a FIFO queue to limit the size of stash.
type txStash struct {
	mu      sync.Mutex
	store   kv.Store
	fifo    *list.List
	elems   map[string]*list.Element
	maxSize int
}

func newTxStash(store kv.Store, maxSize int) *txStash {
	return &txStash{
		store:   store,
		fifo:    list.New(),
		elems:   make(map[string]*list.Element),
		maxSize: maxSize,
	}
}

func stashKey(kind byte, hash gw.Bytes32) []byte {
	return append([]byte{kind}, hash[:]...)
}

func (ts *txStash) save(key []byte, v scale.Encodable) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	has, err := ts.store.Has(key)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	data, err := codec.Encode(v)
	if err != nil {
		return err
	}
	if err := ts.store.Put(key, data); err != nil {
		return err
	}
	ts.elems[string(key)] = ts.fifo.PushBack(key)
	for ts.fifo.Len() > ts.maxSize {
		keyToDelete := ts.fifo.Remove(ts.fifo.Front()).([]byte)
		delete(ts.elems, string(keyToDelete))
		if err := ts.store.Delete(keyToDelete); err != nil {
			return err
		}
	}
	return nil
}

// Save stashes a tx.
func (ts *txStash) Save(trx *tx.Transaction) error {
	return ts.save(stashKey(stashTx, trx.Hash()), trx)
}

// SaveWithdrawal stashes a withdrawal.
func (ts *txStash) SaveWithdrawal(w *tx.Withdrawal) error {
	return ts.save(stashKey(stashWithdrawal, w.Hash()), w)
}

// Drop removes the txs and withdrawals packed into blk.
func (ts *txStash) Drop(blk *block.Block) error {
	var keys [][]byte
	for _, trx := range blk.Transactions() {
		keys = append(keys, stashKey(stashTx, trx.Hash()))
	}
	for _, w := range blk.Withdrawals() {
		keys = append(keys, stashKey(stashWithdrawal, w.Hash()))
	}
	if len(keys) == 0 {
		return nil
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()

	bulk := ts.store.Bulk()
	for _, key := range keys {
		if elem, ok := ts.elems[string(key)]; ok {
			ts.fifo.Remove(elem)
			delete(ts.elems, string(key))
		}
		if err := bulk.Delete(key); err != nil {
			return err
		}
	}
	return bulk.Write()
}

// LoadAll returns the stashed txs and withdrawals in key order. Corrupted entries are deleted.
func (ts *txStash) LoadAll() (txs tx.Transactions, withdrawals tx.Withdrawals) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	iter := ts.store.Iterate(kv.Range{})
	defer iter.Release()

	var corrupted [][]byte
	for iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		if len(key) != 1+len(gw.Bytes32{}) {
			corrupted = append(corrupted, key)
			continue
		}
		var err error
		switch key[0] {
		case stashTx:
			var trx tx.Transaction
			if err = codec.Decode(iter.Value(), &trx); err == nil {
				txs = append(txs, &trx)
			}
		case stashWithdrawal:
			var w tx.Withdrawal
			if err = codec.Decode(iter.Value(), &w); err == nil {
				withdrawals = append(withdrawals, &w)
			}
		default:
			corrupted = append(corrupted, key)
			continue
		}
		if err != nil {
			logger.Warn("decode stashed request", "err", err)
			corrupted = append(corrupted, key)
			continue
		}
		ts.elems[string(key)] = ts.fifo.PushBack(key)
	}
	if err := iter.Error(); err != nil {
		logger.Warn("iterate stash", "err", err)
	}
	for _, key := range corrupted {
		if err := ts.store.Delete(key); err != nil {
			logger.Warn("delete corrupted stashed request", "err", err)
		}
	}
	return txs, withdrawals
}
