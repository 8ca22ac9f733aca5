// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package testchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/genesis"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

func TestMint(t *testing.T) {
	chain, err := New()
	require.NoError(t, err)
	defer chain.Close()

	for range 20 {
		require.NoError(t, chain.MintBlock())
	}
	tip := chain.Repo().Tip()
	require.Equal(t, uint64(20), tip.Block.Header().Number())
	assert.Equal(t, chain.Config().LastFinalizedBlockNumber(20), tip.GlobalState.LastFinalizedBlockNumber)

	trx := chain.Transfer(0, 0, genesis.DevAccounts()[1].Address, 100)
	blk, err := chain.Mint(&Requests{
		Deposits:    []*tx.Deposit{chain.Deposit(gw.Address{1}, 500_0000_0000)},
		Txs:         []*tx.Transaction{trx},
		Withdrawals: []*tx.Withdrawal{chain.Withdrawal(1, 0, 100_0000_0000)},
	})
	require.NoError(t, err)
	assert.Len(t, blk.Deposits(), 1)

	packed, err := chain.GetTxBlock(trx.Hash())
	require.NoError(t, err)
	assert.Equal(t, blk.Hash(), packed.Hash())

	has, err := chain.LogDB().HasBlockHash(blk.Hash())
	require.NoError(t, err)
	assert.True(t, has)

	blks, err := chain.GetAllBlocks()
	require.NoError(t, err)
	assert.Len(t, blks, 22)
	assert.Equal(t, chain.GenesisBlock().Hash(), blks[0].Hash())
}

func TestRevert(t *testing.T) {
	chain, err := New()
	require.NoError(t, err)
	defer chain.Close()

	var hashes []gw.Bytes32
	for i := range 3 {
		trx := chain.Transfer(0, uint32(i), genesis.DevAccounts()[1].Address, 100)
		require.NoError(t, chain.MintBlock(trx))
		hashes = append(hashes, chain.Repo().Tip().Block.Hash())
	}

	_, err = chain.Revert(0)
	assert.Error(t, err)

	reverted, err := chain.Revert(2)
	require.NoError(t, err)
	assert.Equal(t, hashes[1:], reverted)
	assert.Equal(t, hashes[0], chain.Repo().Tip().Block.Hash())

	has, err := chain.LogDB().HasBlockHash(hashes[2])
	require.NoError(t, err)
	assert.False(t, has)

	// the reverted nonce is usable again
	require.NoError(t, chain.MintBlock(chain.Transfer(0, 1, genesis.DevAccounts()[2].Address, 100)))
	assert.Equal(t, uint64(2), chain.Repo().Tip().Block.Header().Number())
	assert.NotEqual(t, hashes[1], chain.Repo().Tip().Block.Hash())
}
