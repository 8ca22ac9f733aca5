// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package testchain

import (
	"fmt"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/builtin"
	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/genesis"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/logdb"
	"github.com/godwokenrises/godwoken-sub004/lvldb"
	"github.com/godwokenrises/godwoken-sub004/packer"
	"github.com/godwokenrises/godwoken-sub004/state"
	"github.com/godwokenrises/godwoken-sub004/tx"
	"github.com/godwokenrises/godwoken-sub004/txpool"
)

const (
	// GenesisTimestamp of the test chain, in milliseconds.
	GenesisTimestamp = 1_000_000
	// BlockInterval between minted blocks, in milliseconds.
	BlockInterval = 3000
)

// Chain is a devnet chain on an in-memory database. Blocks are minted directly into the
// repository, with the global state a base chain would commit.
type Chain struct {
	db           *lvldb.LevelDB
	config       gw.Config
	repo         *chain.Repository
	stater       *state.Stater
	backends     *builtin.Manager
	packer       *packer.Packer
	genesisBlock *block.Block
	logDB        *logdb.LogDB
	logWriter    *logdb.Writer
}

// New creates a test chain funding the dev accounts at genesis.
func New() (*Chain, error) {
	db, err := lvldb.NewMem()
	if err != nil {
		return nil, err
	}
	c := &Chain{db: db, config: gw.DefaultConfig(), stater: state.NewStater(db, 1024)}

	b0, gs, err := genesis.NewDevnet(&c.config).Timestamp(GenesisTimestamp).Build(c.stater)
	if err != nil {
		return nil, fmt.Errorf("unable to build genesis: %w", err)
	}
	if c.repo, err = chain.NewRepository(db, b0, gs); err != nil {
		return nil, err
	}
	c.genesisBlock = b0
	c.backends = builtin.NewManager(&c.config)
	c.packer = packer.New(c.repo, c.stater, c.backends, &c.config,
		RegAddr(genesis.DevAccounts()[4].Address), gw.Blake2b([]byte("stake-owner")), packer.DefaultLimits())

	if c.logDB, err = logdb.NewMem(); err != nil {
		return nil, err
	}
	if c.logWriter, err = c.logDB.NewWriter(); err != nil {
		return nil, err
	}
	return c, nil
}

// Close closes the databases.
func (c *Chain) Close() {
	c.logDB.Close()
	c.db.Close()
}

// Config returns the rollup config of the chain.
func (c *Chain) Config() *gw.Config {
	return &c.config
}

// Repo returns the blockchain's repository.
func (c *Chain) Repo() *chain.Repository {
	return c.repo
}

// Stater returns the state manager of the chain.
func (c *Chain) Stater() *state.Stater {
	return c.stater
}

// Backends returns the builtin backends of the chain.
func (c *Chain) Backends() *builtin.Manager {
	return c.backends
}

// Packer returns the packer minting blocks.
func (c *Chain) Packer() *packer.Packer {
	return c.packer
}

// GenesisBlock returns the genesis block of the chain.
func (c *Chain) GenesisBlock() *block.Block {
	return c.genesisBlock
}

// LogDB returns the logdb the minted blocks are indexed in.
func (c *Chain) LogDB() *logdb.LogDB {
	return c.logDB
}

// Database returns the database of the chain.
func (c *Chain) Database() *lvldb.LevelDB {
	return c.db
}

// State returns the state at the tip.
func (c *Chain) State() *state.State {
	return c.stater.NewState(c.repo.Tip().GlobalState.Account)
}

// NewPool creates a tx pool on the chain. The caller closes it.
func (c *Chain) NewPool(options txpool.Options) *txpool.TxPool {
	return txpool.New(c.repo, c.stater, c.packer, &c.config, options)
}

// Requests are the requests of a minted block.
type Requests struct {
	Deposits    tx.Deposits
	Txs         tx.Transactions
	Withdrawals tx.Withdrawals
}

// MintBlock mints a block of the transactions.
func (c *Chain) MintBlock(txs ...*tx.Transaction) error {
	_, err := c.Mint(&Requests{Txs: txs})
	return err
}

// Mint packs the requests into a block on the tip and adds it to the chain.
func (c *Chain) Mint(reqs *Requests) (*block.Block, error) {
	tip := c.repo.Tip()
	flow := c.packer.Schedule(tip, tip.GlobalState.TipBlockTimestamp+BlockInterval)
	for _, d := range reqs.Deposits {
		if err := flow.Deposit(d); err != nil {
			return nil, fmt.Errorf("unable to deposit: %w", err)
		}
	}
	for _, trx := range reqs.Txs {
		if _, err := flow.Adopt(trx); err != nil {
			return nil, fmt.Errorf("unable to adopt tx into block: %w", err)
		}
	}
	for _, w := range reqs.Withdrawals {
		if err := flow.Withdraw(w); err != nil {
			return nil, fmt.Errorf("unable to withdraw: %w", err)
		}
	}
	blk, stage, receipts, err := flow.Pack()
	if err != nil {
		return nil, fmt.Errorf("unable to pack block: %w", err)
	}
	if err := c.AddBlock(blk, stage, receipts); err != nil {
		return nil, err
	}
	return blk, nil
}

// AddBlock commits the packed block to the chain, and writes its logs.
func (c *Chain) AddBlock(blk *block.Block, stage *state.Stage, receipts tx.Receipts) error {
	bulk := c.stater.Store().Bulk()
	if err := stage.Commit(bulk); err != nil {
		return fmt.Errorf("unable to commit state: %w", err)
	}
	if err := bulk.Write(); err != nil {
		return fmt.Errorf("unable to commit state: %w", err)
	}

	num := blk.Header().Number()
	tip := c.repo.Tip()
	tree := c.repo.BlockTree(tip.GlobalState.Block.MerkleRoot)
	if err := tree.Update(block.BlockSMTKey(num), blk.Hash()); err != nil {
		return err
	}
	gs := *tip.GlobalState
	gs.Account = blk.Header().PostAccount()
	gs.Block = gw.BlockMerkleState{MerkleRoot: tree.Root(), Count: gs.Block.Count + 1}
	gs.TipBlockHash = blk.Hash()
	gs.TipBlockTimestamp = blk.Header().Timestamp()
	gs.LastFinalizedBlockNumber = c.config.LastFinalizedBlockNumber(num)
	gs.Version = block.GlobalStateVersion
	if err := c.repo.AddBlock(blk, receipts, &gs); err != nil {
		return fmt.Errorf("unable to add block to repo: %w", err)
	}
	if err := c.repo.SetLastSynced(num); err != nil {
		return err
	}

	if err := c.logWriter.Write(blk, receipts); err != nil {
		return err
	}
	return c.logWriter.Commit()
}

// GetTxBlock returns the block packing the tx.
func (c *Chain) GetTxBlock(hash gw.Bytes32) (*block.Block, error) {
	_, loc, err := c.repo.GetTransaction(hash)
	if err != nil {
		return nil, err
	}
	return c.repo.GetBlock(loc.BlockNumber)
}

// GetAllBlocks returns the blocks from genesis to the tip.
func (c *Chain) GetAllBlocks() ([]*block.Block, error) {
	tip := c.repo.Tip().Block.Header().Number()
	blks := make([]*block.Block, 0, tip+1)
	for num := uint64(0); num <= tip; num++ {
		blk, err := c.repo.GetBlock(num)
		if err != nil {
			return nil, err
		}
		blks = append(blks, blk)
	}
	return blks, nil
}

// Revert reverts the blocks from number from to the tip, as a matured challenge does.
func (c *Chain) Revert(from uint64) ([]gw.Bytes32, error) {
	if from == 0 {
		return nil, fmt.Errorf("unable to revert genesis")
	}
	tip := c.repo.Tip()
	parent, err := c.repo.GetGlobalState(from - 1)
	if err != nil {
		return nil, err
	}
	blockTree := c.repo.BlockTree(tip.GlobalState.Block.MerkleRoot)
	revertedTree := c.repo.RevertedTree(tip.GlobalState.RevertedBlockRoot)
	for num := from; num <= tip.Block.Header().Number(); num++ {
		summary, err := c.repo.GetBlockSummary(num)
		if err != nil {
			return nil, err
		}
		if err := blockTree.Update(block.BlockSMTKey(num), gw.Bytes32{}); err != nil {
			return nil, err
		}
		if err := revertedTree.Update(summary.Header.Hash(), block.RevertedSMTValue); err != nil {
			return nil, err
		}
	}
	gs := *parent
	gs.Block.MerkleRoot = blockTree.Root()
	gs.RevertedBlockRoot = revertedTree.Root()

	reverted, err := c.repo.Revert(from, &gs)
	if err != nil {
		return nil, fmt.Errorf("unable to revert: %w", err)
	}
	if err := c.logWriter.Truncate(from); err != nil {
		return nil, err
	}
	return reverted, c.logWriter.Commit()
}
