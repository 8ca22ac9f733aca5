// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package consensus_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/builtin"
	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/consensus"
	"github.com/godwokenrises/godwoken-sub004/genesis"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/lvldb"
	"github.com/godwokenrises/godwoken-sub004/packer"
	"github.com/godwokenrises/godwoken-sub004/rollup"
	"github.com/godwokenrises/godwoken-sub004/state"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

const testFee = 1_000_000

type testEnv struct {
	cfg       gw.Config
	stater    *state.Stater
	repo      *chain.Repository
	packer    *packer.Packer
	consensus *consensus.Consensus
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{cfg: gw.DefaultConfig(), stater: state.NewStater(db, 1024)}
	b0, gs, err := genesis.NewDevnet(&env.cfg).Timestamp(1000).Build(env.stater)
	require.NoError(t, err)
	env.repo, err = chain.NewRepository(db, b0, gs)
	require.NoError(t, err)

	backends := builtin.NewManager(&env.cfg)
	producer := regAddr(genesis.DevAccounts()[4].Address)
	env.packer = packer.New(env.repo, env.stater, backends, &env.cfg, producer, gw.Bytes32{1}, packer.DefaultLimits())
	env.consensus = consensus.New(env.repo, env.stater, backends, &env.cfg)
	return env
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

// pack packs a block of two transfers and a withdrawal on the tip.
func (env *testEnv) pack(t *testing.T) (*block.Block, *state.Stage, tx.Receipts) {
	accs := genesis.DevAccounts()
	tip := env.repo.Tip()
	k := uint32(tip.Block.Header().Number())

	flow := env.packer.Schedule(tip, tip.GlobalState.TipBlockTimestamp+1000)
	for _, trx := range []*tx.Transaction{
		env.transfer(0, 2*k, accs[2].Address, 100),
		env.transfer(1, k, accs[3].Address, 200),
	} {
		receipt, err := flow.Adopt(trx)
		require.NoError(t, err)
		require.False(t, receipt.Failed())
	}
	require.NoError(t, flow.Withdraw(env.withdrawal(0, 2*k+1, 100_0000_0000)))
	blk, stage, receipts, err := flow.Pack()
	require.NoError(t, err)
	return blk, stage, receipts
}

// commit persists blk with the global state committing it.
func (env *testEnv) commit(t *testing.T, blk *block.Block, stage *state.Stage, receipts tx.Receipts) {
	bulk := env.stater.Store().Bulk()
	require.NoError(t, stage.Commit(bulk))
	require.NoError(t, bulk.Write())

	tip := env.repo.Tip()
	tree := env.repo.BlockTree(tip.GlobalState.Block.MerkleRoot)
	require.NoError(t, tree.Update(block.BlockSMTKey(blk.Header().Number()), blk.Hash()))
	gs := *tip.GlobalState
	gs.Account = blk.Header().PostAccount()
	gs.Block = gw.BlockMerkleState{MerkleRoot: tree.Root(), Count: gs.Block.Count + 1}
	gs.TipBlockHash = blk.Hash()
	gs.TipBlockTimestamp = blk.Header().Timestamp()
	require.NoError(t, env.repo.AddBlock(blk, receipts, &gs))
}

// tamper replaces the checkpoint at index of the checkpoint list.
func tamper(blk *block.Block, index int) *block.Block {
	raw := blk.Header().Raw()
	raw.StateCheckpoints[index] = gw.Blake2b([]byte("forged"))
	return block.Compose(block.NewHeader(raw), blk.Deposits(), blk.Transactions(), blk.Withdrawals())
}

func TestVerifyValidBlock(t *testing.T) {
	env := newTestEnv(t)

	target, err := env.consensus.Verify(0)
	require.NoError(t, err)
	assert.Nil(t, target)

	blk, stage, receipts := env.pack(t)
	env.commit(t, blk, stage, receipts)

	target, err = env.consensus.Verify(1)
	require.NoError(t, err)
	assert.Nil(t, target, "valid block")

	_, err = env.consensus.Verify(2)
	assert.Error(t, err, "unknown block")
}

func TestVerifyBadOperation(t *testing.T) {
	tests := []struct {
		name  string
		index int
		want  rollup.ChallengeTarget
	}{
		{"first tx", 0, rollup.ChallengeTarget{BlockNumber: 1, TargetIndex: 0, TargetType: rollup.TargetTransaction}},
		{"second tx", 1, rollup.ChallengeTarget{BlockNumber: 1, TargetIndex: 1, TargetType: rollup.TargetTransaction}},
		{"withdrawal", 2, rollup.ChallengeTarget{BlockNumber: 1, TargetIndex: 0, TargetType: rollup.TargetWithdrawal}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			blk, stage, receipts := env.pack(t)
			forged := tamper(blk, tt.index)
			env.commit(t, forged, stage, receipts)

			target, err := env.consensus.Verify(1)
			require.NoError(t, err)
			require.NotNil(t, target)
			tt.want.BlockHash = forged.Hash()
			assert.Equal(t, tt.want, *target)
		})
	}
}

func TestBuildVerifyContext(t *testing.T) {
	env := newTestEnv(t)
	blk, stage, receipts := env.pack(t)
	env.commit(t, blk, stage, receipts)
	machine := rollup.New(&env.cfg, builtin.NewManager(&env.cfg))

	t.Run("transaction", func(t *testing.T) {
		target := &rollup.ChallengeTarget{BlockHash: blk.Hash(), BlockNumber: 1, TargetIndex: 1, TargetType: rollup.TargetTransaction}
		v, err := env.consensus.BuildVerifyContext(target)
		require.NoError(t, err)
		assert.Equal(t, blk.Header().StateCheckpoints()[0], v.PrevAccount.Checkpoint())
		assert.Equal(t, blk.Transactions()[1].Hash(), v.Transaction.Hash())
		assert.Nil(t, v.Withdrawal)
		assert.Len(t, v.Values, len(v.Keys))
		assert.NotEmpty(t, v.Scripts, "sender and receiver scripts")

		verifier, err := machine.Replay(v)
		require.NoError(t, err)
		assert.Equal(t, env.cfg.L2SUDTCodeHash, verifier.CodeHash)

		// a forged pre-state value breaks the state proof
		forged := *v
		forged.Values = append([]gw.Bytes32(nil), v.Values...)
		forged.Values[0] = gw.Blake2b([]byte("forged"))
		_, err = machine.Replay(&forged)
		assert.True(t, rollup.IsRejected(err))

		// the witness proof binds the tx to its index
		forged = *v
		forged.Transaction = blk.Transactions()[0]
		_, err = machine.Replay(&forged)
		assert.True(t, rollup.IsRejected(err))

		// the replay runs under the on-chain cycle budget
		cfg := env.cfg
		cfg.OnchainMaxCycles = 1
		_, err = rollup.New(&cfg, builtin.NewManager(&cfg)).Replay(v)
		assert.True(t, rollup.IsRejected(err))
	})

	t.Run("withdrawal", func(t *testing.T) {
		target := &rollup.ChallengeTarget{BlockHash: blk.Hash(), BlockNumber: 1, TargetIndex: 0, TargetType: rollup.TargetWithdrawal}
		v, err := env.consensus.BuildVerifyContext(target)
		require.NoError(t, err)
		assert.Nil(t, v.Transaction)
		assert.Equal(t, blk.Withdrawals()[0].Hash(), v.Withdrawal.Hash())

		verifier, err := machine.Replay(v)
		require.NoError(t, err)
		assert.Equal(t, blk.Withdrawals()[0].AccountScriptHash(), verifier.LockHash)
	})

	t.Run("wrong hash", func(t *testing.T) {
		_, err := env.consensus.BuildVerifyContext(&rollup.ChallengeTarget{BlockNumber: 1})
		assert.Error(t, err)
	})
}

func TestRevertOf(t *testing.T) {
	env := newTestEnv(t)
	for range 3 {
		blk, stage, receipts := env.pack(t)
		env.commit(t, blk, stage, receipts)
	}
	b2, err := env.repo.GetBlock(2)
	require.NoError(t, err)

	revert, err := env.consensus.RevertOf(&rollup.ChallengeTarget{BlockHash: b2.Hash(), BlockNumber: 2})
	require.NoError(t, err)
	require.Len(t, revert.Headers, 2)
	assert.Equal(t, b2.Hash(), revert.Headers[0].Hash())
	assert.Equal(t, env.repo.Tip().Block.Hash(), revert.Headers[1].Hash())

	_, err = env.consensus.RevertOf(&rollup.ChallengeTarget{BlockNumber: 0})
	assert.Error(t, err)
	_, err = env.consensus.RevertOf(&rollup.ChallengeTarget{BlockNumber: 4})
	assert.Error(t, err)

	challenge, err := env.consensus.ChallengeOf(&rollup.ChallengeTarget{BlockHash: b2.Hash(), BlockNumber: 2})
	require.NoError(t, err)
	assert.Equal(t, b2.Hash(), challenge.Header.Hash())
}
