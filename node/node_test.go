// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"context"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/builtin"
	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/consensus"
	"github.com/godwokenrises/godwoken-sub004/genesis"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/health"
	"github.com/godwokenrises/godwoken-sub004/kv"
	"github.com/godwokenrises/godwoken-sub004/logdb"
	"github.com/godwokenrises/godwoken-sub004/lvldb"
	"github.com/godwokenrises/godwoken-sub004/packer"
	"github.com/godwokenrises/godwoken-sub004/rollup"
	"github.com/godwokenrises/godwoken-sub004/state"
	"github.com/godwokenrises/godwoken-sub004/tx"
	"github.com/godwokenrises/godwoken-sub004/txpool"
)

const (
	testFee          = 1_000_000
	custodianReserve = 10_000_0000_0000
	depositCapacity  = 500_0000_0000
	withdrawCapacity = 100_0000_0000
)

var (
	ownerLock = gw.Script{CodeHash: gw.Blake2b([]byte("secp256k1")), HashType: gw.HashTypeType, Args: []byte("owner")}
	burnLock  = gw.Script{CodeHash: gw.Blake2b([]byte("always-fail")), HashType: gw.HashTypeType}
)

type testEnv struct {
	cfg      gw.Config
	db       *lvldb.LevelDB
	stater   *state.Stater
	repo     *chain.Repository
	packer   *packer.Packer
	pool     *txpool.TxPool
	machine  *rollup.Machine
	cons     *consensus.Consensus
	logDB    *logdb.LogDB
	health   *health.Health
	loopback *Loopback
	node     *Node
}

func newTestEnv(t *testing.T, verify bool) *testEnv {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{cfg: gw.DefaultConfig(), db: db, stater: state.NewStater(db, 1024)}
	env.cfg.BurnLockHash = burnLock.Hash()
	b0, gs, err := genesis.NewDevnet(&env.cfg).Timestamp(1000).Build(env.stater)
	require.NoError(t, err)
	env.repo, err = chain.NewRepository(db, b0, gs)
	require.NoError(t, err)

	backends := builtin.NewManager(&env.cfg)
	producer := regAddr(genesis.DevAccounts()[4].Address)
	env.packer = packer.New(env.repo, env.stater, backends, &env.cfg, producer, ownerLock.Hash(), packer.DefaultLimits())
	env.pool = txpool.New(env.repo, env.stater, env.packer, &env.cfg, txpool.DefaultOptions())
	t.Cleanup(env.pool.Close)
	env.machine = rollup.New(&env.cfg, backends)
	env.cons = consensus.New(env.repo, env.stater, backends, &env.cfg)

	env.logDB, err = logdb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { env.logDB.Close() })
	env.health = health.New(time.Second)

	env.loopback, err = NewLoopback(env.machine, b0, gs, LoopbackOptions{
		OwnerLock:     ownerLock,
		BurnLock:      burnLock,
		Reserve:       custodianReserve,
		CancelTimeout: 100,
	})
	require.NoError(t, err)
	env.node = env.newNode(t, env.loopback, verify)
	return env
}

func (env *testEnv) newNode(t *testing.T, baseChain BaseChain, verify bool) *Node {
	n := New(env.repo, env.stater, env.pool, env.logDB, baseChain, env.cons, env.health,
		kv.Bucket("stash").NewStore(env.db),
		Options{BlockInterval: 50 * time.Millisecond, PollInterval: 10 * time.Millisecond, StashSize: 100, Verify: verify},
	)
	w, err := env.logDB.NewWriter()
	require.NoError(t, err)
	n.logWriter = w
	return n
}

func regAddr(addr gw.Address) gw.RegistryAddress {
	return gw.NewRegistryAddress(gw.ETHRegistryID, addr[:])
}

func (env *testEnv) transfer(from int, nonce uint32, to gw.Address, amount uint64) *tx.Transaction {
	trx := tx.NewBuilder(env.cfg.ChainID).
		From(uint32(3 + from)).
		To(gw.CKBSUDTAccountID).
		Nonce(nonce).
		Args(builtin.EncodeArgs(&builtin.SUDTTransfer{
			To:     regAddr(to),
			Amount: uint256.NewInt(amount),
			Fee:    builtin.NewFee(gw.ETHRegistryID, testFee),
		})).
		Build()
	return tx.MustSign(trx, env.cfg.RollupScriptHash, genesis.DevAccounts()[from].PrivateKey)
}

func (env *testEnv) withdrawal(from int, nonce uint32, capacity uint64) *tx.Withdrawal {
	acc := genesis.DevAccounts()[from]
	w, err := tx.SignWithdrawal(tx.NewWithdrawal(tx.RawWithdrawal{
		Nonce:             nonce,
		ChainID:           env.cfg.ChainID,
		Capacity:          capacity,
		Amount:            new(uint256.Int),
		AccountScriptHash: gw.NewEOAScript(env.cfg.EOACodeHash, env.cfg.RollupScriptHash, acc.Address).Hash(),
		RegistryID:        gw.ETHRegistryID,
		OwnerLockHash:     gw.Blake2b([]byte("owner")),
		Fee:               uint256.NewInt(testFee),
	}), env.cfg.RollupScriptHash, acc.PrivateKey)
	if err != nil {
		panic(err)
	}
	return w
}

func (env *testEnv) deposit(t *testing.T, to gw.Address) *tx.Deposit {
	d, err := env.loopback.Deposit(&DepositRequest{
		Layer2Lock: *gw.NewEOAScript(env.cfg.EOACodeHash, env.cfg.RollupScriptHash, to),
		RegistryID: gw.ETHRegistryID,
		Capacity:   depositCapacity,
	})
	require.NoError(t, err)
	return d
}

// tamper replaces the checkpoint at index of the checkpoint list.
func tamper(blk *block.Block, index int) *block.Block {
	raw := blk.Header().Raw()
	raw.StateCheckpoints[index] = gw.Blake2b([]byte("forged"))
	return block.Compose(block.NewHeader(raw), blk.Deposits(), blk.Transactions(), blk.Withdrawals())
}

func TestProduce(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	accs := genesis.DevAccounts()

	d := env.deposit(t, gw.Address{0xaa})
	require.NoError(t, env.node.sync(ctx))
	require.NoError(t, env.pool.Add(env.transfer(0, 0, accs[2].Address, 100)))
	require.NoError(t, env.pool.AddWithdrawal(env.withdrawal(1, 0, withdrawCapacity)))

	require.NoError(t, env.node.produce(ctx))

	tip := env.repo.Tip()
	blk := tip.Block
	assert.Equal(t, uint64(1), blk.Header().Number())
	require.Len(t, blk.Deposits(), 1)
	assert.Equal(t, d.Hash(), blk.Deposits()[0].Hash())
	assert.Len(t, blk.Transactions(), 1)
	assert.Len(t, blk.Withdrawals(), 1)

	gs, err := env.loopback.GlobalState(ctx)
	require.NoError(t, err)
	assert.Equal(t, blk.Hash(), gs.TipBlockHash)
	assert.Equal(t, gs, tip.GlobalState)

	cells := env.loopback.Withdrawals()
	require.Len(t, cells, 1)
	assert.Equal(t, uint64(withdrawCapacity), cells[0].Capacity)
	assert.Equal(t, uint64(custodianReserve+depositCapacity-withdrawCapacity), env.loopback.CustodianCapacity())

	synced, err := env.repo.LastSynced()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), synced)

	has, err := env.logDB.HasBlockHash(blk.Hash())
	require.NoError(t, err)
	assert.True(t, has)

	status := env.health.Status(time.Minute)
	assert.Equal(t, uint64(1), status.BlockProduction.TipNumber)
	assert.Equal(t, blk.Hash(), *status.BlockProduction.TipHash)

	txs, withdrawals := env.pool.Len()
	assert.Zero(t, txs)
	assert.Zero(t, withdrawals)

	// an empty block
	require.NoError(t, env.node.produce(ctx))
	assert.Equal(t, uint64(2), env.repo.Tip().Block.Header().Number())
}

type rejectingChain struct {
	*Loopback
}

func (rejectingChain) SubmitBlock(context.Context, *rollup.SubmitBlock) (*block.GlobalState, error) {
	return nil, errors.New("rejected")
}

func TestProduceRejected(t *testing.T) {
	env := newTestEnv(t, false)
	n := env.newNode(t, rejectingChain{env.loopback}, false)
	ctx := context.Background()

	trx := env.transfer(0, 0, genesis.DevAccounts()[2].Address, 100)
	require.NoError(t, env.pool.Add(trx))

	assert.Error(t, n.produce(ctx))
	assert.Equal(t, uint64(0), env.repo.Tip().Block.Header().Number())
	assert.NotNil(t, env.pool.Get(trx.Hash()), "still pooled")

	// retried on the same parent
	require.NoError(t, env.node.produce(ctx))
	assert.Equal(t, trx.Hash(), env.repo.Tip().Block.Transactions()[0].Hash())
}

func TestSyncLogDB(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	for i := range 3 {
		require.NoError(t, env.pool.Add(env.transfer(0, uint32(i), genesis.DevAccounts()[2].Address, 100)))
		require.NoError(t, env.node.produce(ctx))
	}
	require.NoError(t, env.node.logWriter.Truncate(2))
	require.NoError(t, env.node.logWriter.Commit())
	b2, err := env.repo.GetBlock(2)
	require.NoError(t, err)
	has, err := env.logDB.HasBlockHash(b2.Hash())
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, env.node.syncLogDB(ctx))
	for num := range uint64(4) {
		blk, err := env.repo.GetBlock(num)
		require.NoError(t, err)
		has, err := env.logDB.HasBlockHash(blk.Hash())
		require.NoError(t, err)
		assert.Equal(t, num > 0, has, "block %d", num)
	}
	newest, err := env.logDB.NewestBlockHash()
	require.NoError(t, err)
	assert.Equal(t, env.repo.Tip().Block.Hash(), newest)
}

func TestRun(t *testing.T) {
	env := newTestEnv(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- env.node.Run(ctx) }()

	env.deposit(t, gw.Address{0xbb})
	trx := env.transfer(0, 0, genesis.DevAccounts()[2].Address, 100)
	require.NoError(t, env.pool.Add(trx))

	assert.Eventually(t, func() bool {
		_, loc, err := env.repo.GetTransaction(trx.Hash())
		return err == nil && loc != nil
	}, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		for num := uint64(1); num <= env.repo.Tip().Block.Header().Number(); num++ {
			blk, err := env.repo.GetBlock(num)
			if err == nil && len(blk.Deposits()) > 0 {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
	assert.True(t, env.health.Status(time.Minute).BaseChainSynced)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("node not stopped")
	}
}

func TestRunLoadsStash(t *testing.T) {
	env := newTestEnv(t, false)
	trx := env.transfer(0, 0, genesis.DevAccounts()[2].Address, 100)
	require.NoError(t, env.node.stash.Save(trx))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.node.Run(ctx) }()

	assert.Eventually(t, func() bool {
		_, _, err := env.repo.GetTransaction(trx.Hash())
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)

	txs, _ := newTxStash(kv.Bucket("stash").NewStore(env.db), 100).LoadAll()
	assert.Empty(t, txs, "packed requests dropped")
}

func TestChallengeAndRevert(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	accs := genesis.DevAccounts()

	// commit a block with a forged first checkpoint
	tip := env.repo.Tip()
	flow := env.packer.Schedule(tip, tip.GlobalState.TipBlockTimestamp+1000)
	_, err := flow.Adopt(env.transfer(0, 0, accs[2].Address, 100))
	require.NoError(t, err)
	require.NoError(t, flow.Withdraw(env.withdrawal(1, 0, withdrawCapacity)))
	blk, stage, receipts, err := flow.Pack()
	require.NoError(t, err)
	forged := tamper(blk, 0)
	require.NoError(t, env.node.commit(ctx, forged, stage, receipts))

	require.NoError(t, env.node.verify(ctx))
	assert.True(t, env.node.halted)
	require.NotNil(t, env.node.challenge)
	assert.Equal(t, rollup.ChallengeTarget{
		BlockHash:   forged.Hash(),
		BlockNumber: 1,
		TargetIndex: 0,
		TargetType:  rollup.TargetTransaction,
	}, *env.node.challenge)

	gs, err := env.loopback.GlobalState(ctx)
	require.NoError(t, err)
	assert.Equal(t, block.StatusHalting, gs.Status)

	// halted until the challenge matures
	require.NoError(t, env.node.sync(ctx))
	assert.True(t, env.node.halted)
	assert.NotNil(t, env.node.challenge)

	env.loopback.Advance(env.cfg.ChallengeMaturityBlocks)
	require.NoError(t, env.node.sync(ctx))
	assert.Nil(t, env.node.challenge)
	gs, err = env.loopback.GlobalState(ctx)
	require.NoError(t, err)
	assert.Equal(t, block.StatusRunning, gs.Status)
	assert.Equal(t, env.repo.GenesisBlock().Hash(), gs.TipBlockHash)

	// the local chain follows the rollup cell
	require.NoError(t, env.node.sync(ctx))
	assert.False(t, env.node.halted)
	assert.Equal(t, uint64(0), env.repo.Tip().Block.Header().Number())
	assert.Equal(t, []gw.Bytes32{forged.Hash()}, env.node.reverted)
	txs, withdrawals := env.pool.Len()
	assert.Equal(t, 1, txs)
	assert.Equal(t, 1, withdrawals)
	has, err := env.logDB.HasBlockHash(forged.Hash())
	require.NoError(t, err)
	assert.False(t, has)

	// the next block reconciles the reverted one
	require.NoError(t, env.node.produce(ctx))
	assert.Empty(t, env.node.reverted)
	newTip := env.repo.Tip().Block
	assert.Equal(t, uint64(1), newTip.Header().Number())
	assert.NotEqual(t, forged.Hash(), newTip.Hash())
	assert.Len(t, newTip.Transactions(), 1)
	assert.Len(t, newTip.Withdrawals(), 1)

	reverted, err := env.repo.IsReverted(forged.Hash())
	require.NoError(t, err)
	assert.True(t, reverted)
	cells := env.loopback.Withdrawals()
	require.Len(t, cells, 1)
	assert.Equal(t, uint64(custodianReserve-withdrawCapacity), env.loopback.CustodianCapacity())

	require.NoError(t, env.node.verify(ctx))
	assert.False(t, env.node.halted)
	assert.Equal(t, uint64(1), env.node.verified)
}
