// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/co"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/kv"
	"github.com/godwokenrises/godwoken-sub004/log"
	"github.com/godwokenrises/godwoken-sub004/smt"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

var (
	logger      = log.WithContext("pkg", "chain")
	errNotFound = errors.New("not found")
)

// Tip is the newest block of the chain and the global state committing it.
type Tip struct {
	Block       *block.Block
	GlobalState *block.GlobalState
}

// Repository stores blocks, transactions, withdrawals, receipts and the block SMTs.
//
// It's thread-safe, with a single writer.
type Repository struct {
	store        kv.Store
	summaryStore kv.Store
	hashStore    kv.Store
	bodyStore    kv.Store
	txIndexer    kv.Store
	stateStore   kv.Store
	propStore    kv.Store

	blockTrees    *smt.Database
	revertedTrees *smt.Database

	genesis *block.Block
	tip     atomic.Pointer[Tip]
	tick    co.Signal
	writeMu sync.Mutex

	caches struct {
		summaries *cache
		bodies    *cache
	}
}

// NewRepository create an instance of repository. The genesis block and its global state are
// written on first open; later opens check the stored genesis matches.
func NewRepository(store kv.Store, genesis *block.Block, genesisState *block.GlobalState) (*Repository, error) {
	if genesis.Header().Number() != 0 {
		return nil, errors.New("genesis number != 0")
	}
	if len(genesis.Transactions()) != 0 || len(genesis.Withdrawals()) != 0 {
		return nil, errors.New("genesis block should not have transactions")
	}

	repo := &Repository{
		store:         store,
		summaryStore:  kv.Bucket(summaryStoreName).NewStore(store),
		hashStore:     kv.Bucket(hashStoreName).NewStore(store),
		bodyStore:     kv.Bucket(bodyStoreName).NewStore(store),
		txIndexer:     kv.Bucket(txIndexStoreName).NewStore(store),
		stateStore:    kv.Bucket(stateStoreName).NewStore(store),
		propStore:     kv.Bucket(propStoreName).NewStore(store),
		blockTrees:    smt.NewDatabase(kv.Bucket(BlockTreeName).NewGetter(store), 4096),
		revertedTrees: smt.NewDatabase(kv.Bucket(RevertedTreeName).NewGetter(store), 1024),
		genesis:       genesis,
	}
	repo.caches.summaries = newCache("summary", 512)
	repo.caches.bodies = newCache("body", 4096)

	tipNum, err := loadNumber(repo.propStore, tipKey)
	if err != nil {
		if !repo.IsNotFound(err) {
			return nil, err
		}
		if genesisState.TipBlockHash != genesis.Hash() {
			return nil, errors.New("genesis state does not commit the genesis block")
		}
		bulk := store.Bulk()
		tree := repo.blockTrees.NewTree(gw.Bytes32{})
		if err := repo.appendBlock(bulk, tree, genesis, nil, genesisState); err != nil {
			return nil, err
		}
		if err := bulk.Write(); err != nil {
			return nil, err
		}
		repo.setTip(genesis, genesisState)
		return repo, nil
	}

	existing, err := repo.GetBlock(0)
	if err != nil {
		return nil, errors.Wrap(err, "get existing genesis")
	}
	if existing.Hash() != genesis.Hash() {
		return nil, errors.New("genesis mismatch")
	}
	tipBlock, err := repo.GetBlock(tipNum)
	if err != nil {
		return nil, errors.Wrap(err, "get tip block")
	}
	gs, err := repo.GetGlobalState(tipNum)
	if err != nil {
		return nil, errors.Wrap(err, "get tip global state")
	}
	repo.setTip(tipBlock, gs)
	return repo, nil
}

// GenesisBlock returns genesis block.
func (r *Repository) GenesisBlock() *block.Block {
	return r.genesis
}

// Tip returns the newest block and its global state.
func (r *Repository) Tip() *Tip {
	return r.tip.Load()
}

func (r *Repository) setTip(blk *block.Block, gs *block.GlobalState) {
	r.tip.Store(&Tip{blk, gs})
	metricTip().Set(int64(blk.Header().Number()))
	r.tick.Broadcast()
}

// NewTicker create a signal Waiter to receive event that the tip changed.
func (r *Repository) NewTicker() co.Waiter {
	return r.tick.NewWaiter()
}

// BlockTree opens the block SMT at root. Updates stay in memory.
func (r *Repository) BlockTree(root gw.Bytes32) *smt.Tree {
	return r.blockTrees.NewTree(root)
}

// RevertedTree opens the reverted block SMT at root. Updates stay in memory.
func (r *Repository) RevertedTree(root gw.Bytes32) *smt.Tree {
	return r.revertedTrees.NewTree(root)
}

// appendBlock writes blk with its receipts and global state into bulk, and commits the block
// SMT after recording blk in tree.
func (r *Repository) appendBlock(bulk kv.Bulk, tree *smt.Tree, blk *block.Block, receipts tx.Receipts, gs *block.GlobalState) error {
	var (
		header        = blk.Header()
		num           = header.Number()
		hash          = blk.Hash()
		summaryPutter = kv.Bucket(summaryStoreName).NewPutter(bulk)
		hashPutter    = kv.Bucket(hashStoreName).NewPutter(bulk)
		bodyPutter    = kv.Bucket(bodyStoreName).NewPutter(bulk)
		txIndexPutter = kv.Bucket(txIndexStoreName).NewPutter(bulk)
		statePutter   = kv.Bucket(stateStoreName).NewPutter(bulk)
		propPutter    = kv.Bucket(propStoreName).NewPutter(bulk)
		summary       = &BlockSummary{Header: header, Deposits: blk.Deposits(), Size: uint64(blk.Size())}
	)

	if err := tree.Update(block.BlockSMTKey(num), hash); err != nil {
		return err
	}
	if tree.Root() != gs.Block.MerkleRoot {
		return errors.Errorf("block root mismatch: want %v, got %v", gs.Block.MerkleRoot, tree.Root())
	}

	for i, trx := range blk.Transactions() {
		txHash := trx.Hash()
		summary.Txs = append(summary.Txs, txHash)
		if err := saveScale(bodyPutter, bodyKey(num, KindTransaction, uint32(i)), trx); err != nil {
			return err
		}
		if err := saveScale(bodyPutter, bodyKey(num, kindReceipt, uint32(i)), receipts[i]); err != nil {
			return err
		}
		if err := saveRLP(txIndexPutter, txHash[:], &Location{num, KindTransaction, uint32(i)}); err != nil {
			return err
		}
	}
	for i, w := range blk.Withdrawals() {
		wHash := w.Hash()
		summary.Withdrawals = append(summary.Withdrawals, wHash)
		if err := saveScale(bodyPutter, bodyKey(num, KindWithdrawal, uint32(i)), w); err != nil {
			return err
		}
		if err := saveRLP(txIndexPutter, wHash[:], &Location{num, KindWithdrawal, uint32(i)}); err != nil {
			return err
		}
	}

	if err := saveScale(summaryPutter, numberKey(num), summary); err != nil {
		return err
	}
	if err := saveNumber(hashPutter, hash[:], num); err != nil {
		return err
	}
	if err := saveScale(statePutter, numberKey(num), gs); err != nil {
		return err
	}
	if err := saveNumber(propPutter, tipKey, num); err != nil {
		return err
	}
	if err := tree.Commit(kv.Bucket(BlockTreeName).NewPutter(bulk)); err != nil {
		return err
	}
	r.caches.summaries.Add(num, summary)
	return nil
}

// AddBlock appends a block on the tip. gs is the global state committing the block, its block
// SMT root must equal the tip's root with the block recorded.
func (r *Repository) AddBlock(blk *block.Block, receipts tx.Receipts, gs *block.GlobalState) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tip := r.Tip()
	header := blk.Header()
	if header.Number() != tip.Block.Header().Number()+1 || header.ParentHash() != tip.Block.Hash() {
		return errors.Errorf("block %d %v does not extend the tip", header.Number(), blk.Hash())
	}
	if len(receipts) != len(blk.Transactions()) {
		return errors.Errorf("%d receipts for %d txs", len(receipts), len(blk.Transactions()))
	}
	if gs.TipBlockHash != blk.Hash() {
		return errors.New("global state does not commit the block")
	}

	bulk := r.store.Bulk()
	tree := r.blockTrees.NewTree(tip.GlobalState.Block.MerkleRoot)
	if err := r.appendBlock(bulk, tree, blk, receipts, gs); err != nil {
		return err
	}
	if err := bulk.Write(); err != nil {
		return err
	}
	r.setTip(blk, gs)
	metricBlockRepository().AddWithLabel(1, map[string]string{"type": "add"})
	logger.Debug("block added", "number", header.Number(), "hash", blk.Hash(), "txs", len(blk.Transactions()))
	return nil
}

// Revert removes the blocks from number `from` to the tip, and makes their parent the tip with
// the global state gs. gs must record the reverted hashes in its reverted block SMT and remove
// them from its block SMT.
func (r *Repository) Revert(from uint64, gs *block.GlobalState) ([]gw.Bytes32, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tip := r.Tip()
	tipNum := tip.Block.Header().Number()
	if from == 0 || from > tipNum {
		return nil, errors.Errorf("revert from %d out of range (0, %d]", from, tipNum)
	}
	parent, err := r.GetBlock(from - 1)
	if err != nil {
		return nil, err
	}
	if gs.TipBlockHash != parent.Hash() {
		return nil, errors.New("global state does not commit the new tip")
	}

	var (
		bulk          = r.store.Bulk()
		blockTree     = r.blockTrees.NewTree(tip.GlobalState.Block.MerkleRoot)
		revertedTree  = r.revertedTrees.NewTree(tip.GlobalState.RevertedBlockRoot)
		summaryPutter = kv.Bucket(summaryStoreName).NewPutter(bulk)
		hashPutter    = kv.Bucket(hashStoreName).NewPutter(bulk)
		bodyPutter    = kv.Bucket(bodyStoreName).NewPutter(bulk)
		txIndexPutter = kv.Bucket(txIndexStoreName).NewPutter(bulk)
		statePutter   = kv.Bucket(stateStoreName).NewPutter(bulk)
		reverted      []gw.Bytes32
	)
	for num := from; num <= tipNum; num++ {
		summary, err := r.GetBlockSummary(num)
		if err != nil {
			return nil, err
		}
		hash := summary.Header.Hash()
		reverted = append(reverted, hash)
		if err := blockTree.Update(block.BlockSMTKey(num), gw.Bytes32{}); err != nil {
			return nil, err
		}
		if err := revertedTree.Update(hash, block.RevertedSMTValue); err != nil {
			return nil, err
		}
		for i, h := range summary.Txs {
			for _, key := range [][]byte{bodyKey(num, KindTransaction, uint32(i)), bodyKey(num, kindReceipt, uint32(i))} {
				if err := bodyPutter.Delete(key); err != nil {
					return nil, err
				}
			}
			if err := txIndexPutter.Delete(h[:]); err != nil {
				return nil, err
			}
		}
		for i, h := range summary.Withdrawals {
			if err := bodyPutter.Delete(bodyKey(num, KindWithdrawal, uint32(i))); err != nil {
				return nil, err
			}
			if err := txIndexPutter.Delete(h[:]); err != nil {
				return nil, err
			}
		}
		for _, p := range []kv.Putter{summaryPutter, statePutter} {
			if err := p.Delete(numberKey(num)); err != nil {
				return nil, err
			}
		}
		if err := hashPutter.Delete(hash[:]); err != nil {
			return nil, err
		}
	}
	if blockTree.Root() != gs.Block.MerkleRoot {
		return nil, errors.New("block root mismatch")
	}
	if revertedTree.Root() != gs.RevertedBlockRoot {
		return nil, errors.New("reverted block root mismatch")
	}
	if err := blockTree.Commit(kv.Bucket(BlockTreeName).NewPutter(bulk)); err != nil {
		return nil, err
	}
	if err := revertedTree.Commit(kv.Bucket(RevertedTreeName).NewPutter(bulk)); err != nil {
		return nil, err
	}
	if err := saveScale(statePutter, numberKey(from-1), gs); err != nil {
		return nil, err
	}
	if err := saveNumber(kv.Bucket(propStoreName).NewPutter(bulk), tipKey, from-1); err != nil {
		return nil, err
	}
	if err := bulk.Write(); err != nil {
		return nil, err
	}
	r.caches.summaries.Purge()
	r.caches.bodies.Purge()
	r.setTip(parent, gs)
	metricBlockRepository().AddWithLabel(int64(len(reverted)), map[string]string{"type": "revert"})
	logger.Info("blocks reverted", "from", from, "to", tipNum)
	return reverted, nil
}

// GetBlockSummary get block summary by number.
func (r *Repository) GetBlockSummary(num uint64) (*BlockSummary, error) {
	summary, err := r.caches.summaries.GetOrLoad(num, func() (any, error) {
		var s BlockSummary
		if err := loadScale(r.summaryStore, numberKey(num), &s); err != nil {
			return nil, err
		}
		return &s, nil
	})
	if err != nil {
		return nil, err
	}
	return summary.(*BlockSummary), nil
}

// GetBlockNumber returns the number of the block with hash.
func (r *Repository) GetBlockNumber(hash gw.Bytes32) (uint64, error) {
	return loadNumber(r.hashStore, hash[:])
}

// GetBlock get block by number.
func (r *Repository) GetBlock(num uint64) (*block.Block, error) {
	summary, err := r.GetBlockSummary(num)
	if err != nil {
		return nil, err
	}
	txs := make(tx.Transactions, len(summary.Txs))
	for i := range summary.Txs {
		if txs[i], err = r.getTransaction(num, uint32(i)); err != nil {
			return nil, err
		}
	}
	withdrawals := make(tx.Withdrawals, len(summary.Withdrawals))
	for i := range summary.Withdrawals {
		if withdrawals[i], err = r.getWithdrawal(num, uint32(i)); err != nil {
			return nil, err
		}
	}
	return block.Compose(summary.Header, summary.Deposits, txs, withdrawals), nil
}

// GetBlockByHash get block by hash.
func (r *Repository) GetBlockByHash(hash gw.Bytes32) (*block.Block, error) {
	num, err := r.GetBlockNumber(hash)
	if err != nil {
		return nil, err
	}
	return r.GetBlock(num)
}

// GetGlobalState returns the global state committing block num.
func (r *Repository) GetGlobalState(num uint64) (*block.GlobalState, error) {
	var gs block.GlobalState
	if err := loadScale(r.stateStore, numberKey(num), &gs); err != nil {
		return nil, err
	}
	return &gs, nil
}

func (r *Repository) getTransaction(num uint64, index uint32) (*tx.Transaction, error) {
	key := bodyKey(num, KindTransaction, index)
	trx, err := r.caches.bodies.GetOrLoad(string(key), func() (any, error) {
		var trx tx.Transaction
		if err := loadScale(r.bodyStore, key, &trx); err != nil {
			return nil, err
		}
		return &trx, nil
	})
	if err != nil {
		return nil, err
	}
	return trx.(*tx.Transaction), nil
}

func (r *Repository) getWithdrawal(num uint64, index uint32) (*tx.Withdrawal, error) {
	key := bodyKey(num, KindWithdrawal, index)
	w, err := r.caches.bodies.GetOrLoad(string(key), func() (any, error) {
		var w tx.Withdrawal
		if err := loadScale(r.bodyStore, key, &w); err != nil {
			return nil, err
		}
		return &w, nil
	})
	if err != nil {
		return nil, err
	}
	return w.(*tx.Withdrawal), nil
}

func (r *Repository) getReceipt(num uint64, index uint32) (*tx.Receipt, error) {
	key := bodyKey(num, kindReceipt, index)
	receipt, err := r.caches.bodies.GetOrLoad(string(key), func() (any, error) {
		var receipt tx.Receipt
		if err := loadScale(r.bodyStore, key, &receipt); err != nil {
			return nil, err
		}
		return &receipt, nil
	})
	if err != nil {
		return nil, err
	}
	return receipt.(*tx.Receipt), nil
}

// GetLocation returns where a transaction or withdrawal is packed.
func (r *Repository) GetLocation(hash gw.Bytes32) (*Location, error) {
	var loc Location
	if err := loadRLP(r.txIndexer, hash[:], &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// GetTransaction returns a packed transaction and its location.
func (r *Repository) GetTransaction(hash gw.Bytes32) (*tx.Transaction, *Location, error) {
	loc, err := r.GetLocation(hash)
	if err != nil {
		return nil, nil, err
	}
	if loc.Kind != KindTransaction {
		return nil, nil, errNotFound
	}
	trx, err := r.getTransaction(loc.BlockNumber, loc.Index)
	if err != nil {
		return nil, nil, err
	}
	return trx, loc, nil
}

// GetWithdrawal returns a packed withdrawal and its location.
func (r *Repository) GetWithdrawal(hash gw.Bytes32) (*tx.Withdrawal, *Location, error) {
	loc, err := r.GetLocation(hash)
	if err != nil {
		return nil, nil, err
	}
	if loc.Kind != KindWithdrawal {
		return nil, nil, errNotFound
	}
	w, err := r.getWithdrawal(loc.BlockNumber, loc.Index)
	if err != nil {
		return nil, nil, err
	}
	return w, loc, nil
}

// GetReceipt returns the receipt of a packed transaction.
func (r *Repository) GetReceipt(txHash gw.Bytes32) (*tx.Receipt, error) {
	loc, err := r.GetLocation(txHash)
	if err != nil {
		return nil, err
	}
	if loc.Kind != KindTransaction {
		return nil, errNotFound
	}
	return r.getReceipt(loc.BlockNumber, loc.Index)
}

// GetBlockReceipts get all tx receipts of the block.
func (r *Repository) GetBlockReceipts(num uint64) (tx.Receipts, error) {
	summary, err := r.GetBlockSummary(num)
	if err != nil {
		return nil, err
	}
	receipts := make(tx.Receipts, len(summary.Txs))
	for i := range summary.Txs {
		if receipts[i], err = r.getReceipt(num, uint32(i)); err != nil {
			return nil, err
		}
	}
	return receipts, nil
}

// LastSynced returns the number of the last block confirmed by the base chain.
func (r *Repository) LastSynced() (uint64, error) {
	n, err := loadNumber(r.propStore, lastSyncedKey)
	if r.IsNotFound(err) {
		return 0, nil
	}
	return n, err
}

// SetLastSynced records the last block confirmed by the base chain.
func (r *Repository) SetLastSynced(num uint64) error {
	return saveNumber(r.propStore, lastSyncedKey, num)
}

// BlockProof proves the blocks of numbers against the block SMT of the tip.
func (r *Repository) BlockProof(numbers []uint64) (smt.Proof, error) {
	keys := make([]gw.Bytes32, 0, len(numbers))
	for _, n := range numbers {
		keys = append(keys, block.BlockSMTKey(n))
	}
	return r.BlockTree(r.Tip().GlobalState.Block.MerkleRoot).MerkleProof(keys)
}

// RevertedProof proves hashes against the reverted block SMT of the tip.
func (r *Repository) RevertedProof(hashes []gw.Bytes32) (smt.Proof, error) {
	return r.RevertedTree(r.Tip().GlobalState.RevertedBlockRoot).MerkleProof(hashes)
}

// IsReverted reports whether the block with hash has been reverted.
func (r *Repository) IsReverted(hash gw.Bytes32) (bool, error) {
	v, err := r.RevertedTree(r.Tip().GlobalState.RevertedBlockRoot).Get(hash)
	if err != nil {
		return false, err
	}
	return v == block.RevertedSMTValue, nil
}

// IsNotFound returns if the given error means not found.
func (r *Repository) IsNotFound(err error) bool {
	return err == errNotFound || r.store.IsNotFound(err)
}
