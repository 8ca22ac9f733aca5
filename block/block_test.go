// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package block_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/codec"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

func newBlock() *block.Block {
	cfg := gw.DefaultConfig()
	producer := gw.NewRegistryAddress(gw.ETHRegistryID, make([]byte, 20))
	deposit := &tx.Deposit{
		Capacity:   1000,
		Amount:     uint256.NewInt(0),
		Script:     *gw.NewEOAScript(cfg.EOACodeHash, cfg.RollupScriptHash, gw.Address{1}),
		RegistryID: gw.ETHRegistryID,
	}
	trx := tx.NewBuilder(cfg.ChainID).From(4).To(1).Nonce(0).Args([]byte{1}).Build()
	withdrawal := tx.NewWithdrawal(tx.RawWithdrawal{
		ChainID:  cfg.ChainID,
		Capacity: 100,
		Amount:   uint256.NewInt(0),
		Fee:      uint256.NewInt(1),
	})

	return new(block.Builder).
		Number(3).
		ParentHash(gw.Blake2b([]byte("parent"))).
		Timestamp(1000).
		BlockProducer(producer).
		PrevAccount(gw.AccountMerkleState{MerkleRoot: gw.Blake2b([]byte("prev")), Count: 4}).
		PostAccount(gw.AccountMerkleState{MerkleRoot: gw.Blake2b([]byte("post")), Count: 5}).
		PrevStateCheckpoint(gw.Blake2b([]byte("c0"))).
		StateCheckpoint(gw.Blake2b([]byte("c1"))).
		StateCheckpoint(gw.Blake2b([]byte("c2"))).
		Deposit(deposit).
		Transaction(trx).
		Withdrawal(withdrawal).
		Build()
}

func TestBlockEncoding(t *testing.T) {
	blk := newBlock()
	h := blk.Header()
	assert.Equal(t, uint64(3), h.Number())
	assert.Equal(t, uint32(1), h.SubmitTransactions().TxCount)
	assert.Equal(t, uint32(1), h.SubmitWithdrawals().WithdrawalCount)
	assert.Equal(t, blk.Transactions().WitnessRoot(), h.SubmitTransactions().TxWitnessRoot)
	assert.Equal(t, blk.Withdrawals().WitnessRoot(), h.SubmitWithdrawals().WithdrawalWitnessRoot)

	data, err := codec.Encode(blk)
	require.NoError(t, err)
	assert.Equal(t, len(data), blk.Size())

	var decoded block.Block
	require.NoError(t, codec.Decode(data, &decoded))
	assert.Equal(t, blk.Hash(), decoded.Hash())
	assert.Equal(t, h.Raw(), decoded.Header().Raw())
	require.Len(t, decoded.Deposits(), 1)
	assert.Equal(t, blk.Deposits()[0].Hash(), decoded.Deposits()[0].Hash())
	require.Len(t, decoded.Transactions(), 1)
	assert.Equal(t, blk.Transactions()[0].WitnessHash(), decoded.Transactions()[0].WitnessHash())
	require.Len(t, decoded.Withdrawals(), 1)
	assert.Equal(t, blk.Withdrawals()[0].WitnessHash(), decoded.Withdrawals()[0].WitnessHash())
}

func TestHeaderImmutable(t *testing.T) {
	blk := newBlock()
	hash := blk.Hash()

	raw := blk.Header().Raw()
	raw.StateCheckpoints[0] = gw.Bytes32{}
	raw.BlockProducer.Address[0] = 0xff
	assert.Equal(t, hash, blk.Hash())
	assert.Equal(t, hash, block.NewHeader(blk.Header().Raw()).Hash())
	assert.NotEqual(t, hash, block.NewHeader(raw).Hash())
}

func TestPrevCheckpointOf(t *testing.T) {
	h := newBlock().Header()
	assert.Equal(t, gw.Blake2b([]byte("c0")), h.PrevCheckpointOf(0))
	assert.Equal(t, gw.Blake2b([]byte("c1")), h.PrevCheckpointOf(1))

	// withdrawals only
	afterDeposits := gw.Blake2b([]byte("deposits"))
	withdrawals := block.NewHeader(block.Raw{
		PrevAccount:        gw.AccountMerkleState{MerkleRoot: gw.Blake2b([]byte("prev")), Count: 4},
		StateCheckpoints:   []gw.Bytes32{gw.Blake2b([]byte("w0"))},
		SubmitTransactions: block.SubmitTransactions{PrevStateCheckpoint: afterDeposits},
		SubmitWithdrawals:  block.SubmitWithdrawals{WithdrawalCount: 1},
	})
	assert.Equal(t, afterDeposits, withdrawals.PrevCheckpointOf(0))
}

func TestGlobalState(t *testing.T) {
	gs := block.GlobalState{
		RollupConfigHash:         gw.Blake2b([]byte("config")),
		Account:                  gw.AccountMerkleState{MerkleRoot: gw.Blake2b([]byte("root")), Count: 3},
		Block:                    gw.BlockMerkleState{MerkleRoot: gw.Blake2b([]byte("blocks")), Count: 1},
		TipBlockHash:             gw.Blake2b([]byte("tip")),
		TipBlockTimestamp:        1000,
		LastFinalizedBlockNumber: 0,
		Status:                   block.StatusHalting,
		Version:                  block.GlobalStateVersion,
	}
	data, err := codec.Encode(&gs)
	require.NoError(t, err)

	var decoded block.GlobalState
	require.NoError(t, codec.Decode(data, &decoded))
	assert.Equal(t, gs, decoded)
	assert.Equal(t, gs.Hash(), decoded.Hash())
	assert.Equal(t, "halting", decoded.Status.String())

	data[len(data)-2] = 7
	assert.Error(t, codec.Decode(data, &decoded))
}
