// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package packer_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/genesis"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/packer"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

func balanceOf(t *testing.T, flow *packer.Flow, addr gw.RegistryAddress) uint64 {
	v, err := flow.State().GetSUDTBalance(gw.CKBSUDTAccountID, addr)
	require.NoError(t, err)
	return v.Uint64()
}

func TestFlowPack(t *testing.T) {
	env := newTestEnv(t)
	p := env.packer(packer.DefaultLimits())
	accs := genesis.DevAccounts()
	flow := p.Schedule(env.repo.Tip(), 2000)

	newcomer := gw.Address{19: 0x77}
	d := &tx.Deposit{
		Capacity:   300,
		Amount:     new(uint256.Int),
		Script:     *gw.NewEOAScript(env.cfg.EOACodeHash, env.cfg.RollupScriptHash, newcomer),
		RegistryID: gw.ETHRegistryID,
	}
	require.NoError(t, flow.Deposit(d))
	afterDeposits, err := flow.State().Checkpoint()
	require.NoError(t, err)

	tx1 := env.transfer(0, 0, newcomer, 100, 3)
	r1, err := flow.Adopt(tx1)
	require.NoError(t, err)
	assert.False(t, r1.Failed())
	tx2 := env.transfer(1, 0, accs[0].Address, genesis.DevBalance*2, 5)
	r2, err := flow.Adopt(tx2)
	require.NoError(t, err)
	assert.True(t, r2.Failed())

	_, err = flow.Adopt(tx1)
	assert.True(t, packer.IsKnownTx(err))
	_, err = flow.Adopt(env.transfer(0, 0, newcomer, 1, 0))
	assert.True(t, packer.IsBadTx(err), "stale nonce")

	w := env.withdrawal(2, 0, 50, 2)
	require.NoError(t, flow.Withdraw(w))
	assert.Error(t, flow.Deposit(d), "deposits after withdrawals")
	_, err = flow.Adopt(env.transfer(0, 1, newcomer, 1, 0))
	assert.Error(t, err, "txs after withdrawals")

	got, ok := flow.Receipt(tx2.Hash())
	require.True(t, ok)
	assert.Equal(t, r2, got)

	assert.Equal(t, uint64(400), balanceOf(t, flow, regAddr(newcomer)))
	assert.Equal(t, uint64(3+5+2), balanceOf(t, flow, env.producer)-genesis.DevBalance)
	assert.Equal(t, packer.DefaultLimits().BlockCycles-r1.Cycles-r2.Cycles, flow.CyclesLeft())

	blk, stage, receipts, err := flow.Pack()
	require.NoError(t, err)
	assert.Equal(t, tx.Receipts{r1, r2}, receipts)

	header := blk.Header()
	assert.Equal(t, uint64(1), header.Number())
	assert.Equal(t, env.producer, header.BlockProducer())
	assert.Equal(t, env.repo.Tip().GlobalState.Account, header.PrevAccount())
	assert.Equal(t, stage.Account(), header.PostAccount())
	require.Len(t, blk.Deposits(), 1)
	require.Len(t, blk.Transactions(), 2)
	require.Len(t, blk.Withdrawals(), 1)

	checkpoints := header.StateCheckpoints()
	require.Len(t, checkpoints, 3)
	assert.Equal(t, afterDeposits, header.PrevCheckpointOf(0))
	assert.Equal(t, r1.PostState.Checkpoint(), checkpoints[0])
	assert.Equal(t, r1.PostState.Checkpoint(), header.PrevCheckpointOf(1))
	assert.Equal(t, r2.PostState.Checkpoint(), checkpoints[1])
	assert.Equal(t, stage.Account().Checkpoint(), checkpoints[2])

	// commit and make the block the tip; its requests become known
	bulk := env.stater.Store().Bulk()
	require.NoError(t, stage.Commit(bulk))
	require.NoError(t, bulk.Write())
	tip := env.repo.Tip()
	tree := env.repo.BlockTree(tip.GlobalState.Block.MerkleRoot)
	require.NoError(t, tree.Update(block.BlockSMTKey(1), blk.Hash()))
	gs := *tip.GlobalState
	gs.Account = stage.Account()
	gs.Block = gw.BlockMerkleState{MerkleRoot: tree.Root(), Count: 2}
	gs.TipBlockHash = blk.Hash()
	require.NoError(t, env.repo.AddBlock(blk, receipts, &gs))

	next := p.Schedule(env.repo.Tip(), 3000)
	_, err = next.Adopt(tx1)
	assert.True(t, packer.IsKnownTx(err))
	assert.True(t, packer.IsKnownTx(next.Withdraw(w)))
	assert.Equal(t, uint64(400), balanceOf(t, next, regAddr(newcomer)))
}

func TestFlowRejectedLeavesState(t *testing.T) {
	env := newTestEnv(t)
	flow := env.packer(packer.DefaultLimits()).Schedule(env.repo.Tip(), 2000)

	before, err := flow.State().Checkpoint()
	require.NoError(t, err)

	bad := &tx.Deposit{
		Capacity:   10,
		Script:     *gw.NewEOAScript(env.cfg.EOACodeHash, env.cfg.RollupScriptHash, gw.Address{1}),
		RegistryID: 9,
	}
	assert.True(t, packer.IsBadTx(flow.Deposit(bad)))

	_, err = flow.Adopt(env.transfer(0, 7, gw.Address{1}, 1, 0))
	assert.True(t, packer.IsBadTx(err))

	assert.True(t, packer.IsBadTx(flow.Withdraw(env.withdrawal(0, 0, genesis.DevBalance+1, 0))))

	after, err := flow.State().Checkpoint()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, flow.Deposits())
	assert.Empty(t, flow.Transactions())
	assert.Empty(t, flow.Withdrawals())
}

func TestFlowLimits(t *testing.T) {
	env := newTestEnv(t)
	accs := genesis.DevAccounts()

	limits := packer.Limits{MaxTxs: 1, MaxDeposits: 1, MaxWithdrawals: 1, BlockCycles: packer.DefaultLimits().BlockCycles}
	flow := env.packer(limits).Schedule(env.repo.Tip(), 2000)

	d := &tx.Deposit{
		Capacity:   10,
		Script:     *gw.NewEOAScript(env.cfg.EOACodeHash, env.cfg.RollupScriptHash, gw.Address{1}),
		RegistryID: gw.ETHRegistryID,
	}
	require.NoError(t, flow.Deposit(d))
	assert.True(t, packer.IsBlockFull(flow.Deposit(d)))

	_, err := flow.Adopt(env.transfer(0, 0, accs[1].Address, 1, 0))
	require.NoError(t, err)
	_, err = flow.Adopt(env.transfer(1, 0, accs[0].Address, 1, 0))
	assert.True(t, packer.IsBlockFull(err))

	require.NoError(t, flow.Withdraw(env.withdrawal(2, 0, 1, 0)))
	assert.True(t, packer.IsBlockFull(flow.Withdraw(env.withdrawal(3, 0, 1, 0))))

	// a tiny cycles pool excludes the tx, leaving it for a later block
	limits = packer.Limits{MaxTxs: 10, MaxDeposits: 10, MaxWithdrawals: 10, BlockCycles: 100}
	flow = env.packer(limits).Schedule(env.repo.Tip(), 2000)
	_, err = flow.Adopt(env.transfer(0, 0, accs[1].Address, 1, 0))
	assert.True(t, packer.IsCyclesPoolExhausted(err))
	assert.Empty(t, flow.Transactions())
}
