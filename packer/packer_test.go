// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package packer_test

import (
	"crypto/ecdsa"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/builtin"
	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/genesis"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/lvldb"
	"github.com/godwokenrises/godwoken-sub004/packer"
	"github.com/godwokenrises/godwoken-sub004/state"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

type testEnv struct {
	cfg      gw.Config
	stater   *state.Stater
	repo     *chain.Repository
	producer gw.RegistryAddress
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
	env.producer = regAddr(genesis.DevAccounts()[4].Address)
	return env
}

func (env *testEnv) packer(limits packer.Limits) *packer.Packer {
	return packer.New(env.repo, env.stater, builtin.NewManager(&env.cfg), &env.cfg, env.producer, gw.Bytes32{1}, limits)
}

func regAddr(addr gw.Address) gw.RegistryAddress {
	return gw.NewRegistryAddress(gw.ETHRegistryID, addr[:])
}

func (env *testEnv) transfer(from int, nonce uint32, to gw.Address, amount, fee uint64) *tx.Transaction {
	acc := genesis.DevAccounts()[from]
	trx := tx.NewBuilder(env.cfg.ChainID).
		From(uint32(3 + from)).
		To(gw.CKBSUDTAccountID).
		Nonce(nonce).
		Args(builtin.EncodeArgs(&builtin.SUDTTransfer{
			To:     regAddr(to),
			Amount: uint256.NewInt(amount),
			Fee:    builtin.NewFee(gw.ETHRegistryID, fee),
		})).
		Build()
	return tx.MustSign(trx, env.cfg.RollupScriptHash, acc.PrivateKey)
}

func (env *testEnv) withdrawal(from int, nonce uint32, capacity, fee uint64) *tx.Withdrawal {
	acc := genesis.DevAccounts()[from]
	return env.signWithdrawal(acc.PrivateKey, tx.RawWithdrawal{
		Nonce:             nonce,
		ChainID:           env.cfg.ChainID,
		Capacity:          capacity,
		Amount:            new(uint256.Int),
		AccountScriptHash: gw.NewEOAScript(env.cfg.EOACodeHash, env.cfg.RollupScriptHash, acc.Address).Hash(),
		RegistryID:        gw.ETHRegistryID,
		OwnerLockHash:     gw.Blake2b([]byte("owner")),
		Fee:               uint256.NewInt(fee),
	})
}

func (env *testEnv) signWithdrawal(pk *ecdsa.PrivateKey, raw tx.RawWithdrawal) *tx.Withdrawal {
	w, err := tx.SignWithdrawal(tx.NewWithdrawal(raw), env.cfg.RollupScriptHash, pk)
	if err != nil {
		panic(err)
	}
	return w
}

func TestSchedule(t *testing.T) {
	env := newTestEnv(t)
	p := env.packer(packer.DefaultLimits())
	assert.Equal(t, env.producer, p.Producer())

	tip := env.repo.Tip()
	flow := p.Schedule(tip, 5000)
	assert.Equal(t, uint64(1), flow.BlockInfo().Number)
	assert.Equal(t, uint64(5000), flow.BlockInfo().Timestamp)
	assert.Equal(t, env.producer, flow.BlockInfo().BlockProducer)
	assert.Equal(t, tip, flow.Parent())
	assert.Equal(t, packer.DefaultLimits().BlockCycles, flow.CyclesLeft())

	// never before the parent
	flow = p.Schedule(tip, 10)
	assert.Equal(t, uint64(1001), flow.BlockInfo().Timestamp)

	blk, stage, receipts, err := flow.Pack()
	require.NoError(t, err)
	assert.Empty(t, receipts)
	assert.Equal(t, tip.GlobalState.Account, stage.Account())
	assert.Equal(t, tip.Block.Hash(), blk.Header().ParentHash())
	assert.Equal(t, gw.Bytes32{1}, blk.Header().StakeCellOwnerLockHash())
	assert.Equal(t, tip.GlobalState.Account.Checkpoint(), blk.Header().PrevCheckpointOf(0))
}
