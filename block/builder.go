// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package block

import (
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

// Builder to make it easy to build a block object.
type Builder struct {
	raw         Raw
	deposits    tx.Deposits
	txs         tx.Transactions
	withdrawals tx.Withdrawals
}

// Number sets block number.
func (b *Builder) Number(n uint64) *Builder {
	b.raw.Number = n
	return b
}

// ParentHash sets parent hash.
func (b *Builder) ParentHash(h gw.Bytes32) *Builder {
	b.raw.ParentHash = h
	return b
}

// Timestamp sets timestamp.
func (b *Builder) Timestamp(ts uint64) *Builder {
	b.raw.Timestamp = ts
	return b
}

// BlockProducer sets the producer registry address.
func (b *Builder) BlockProducer(addr gw.RegistryAddress) *Builder {
	b.raw.BlockProducer = addr
	return b
}

// StakeCellOwnerLockHash sets the owner lock of the stake cell.
func (b *Builder) StakeCellOwnerLockHash(h gw.Bytes32) *Builder {
	b.raw.StakeCellOwnerLockHash = h
	return b
}

// PrevAccount sets account state before the block.
func (b *Builder) PrevAccount(s gw.AccountMerkleState) *Builder {
	b.raw.PrevAccount = s
	return b
}

// PostAccount sets account state after the block.
func (b *Builder) PostAccount(s gw.AccountMerkleState) *Builder {
	b.raw.PostAccount = s
	return b
}

// PrevStateCheckpoint sets the checkpoint before the first tx.
func (b *Builder) PrevStateCheckpoint(h gw.Bytes32) *Builder {
	b.raw.SubmitTransactions.PrevStateCheckpoint = h
	return b
}

// StateCheckpoint appends a checkpoint.
func (b *Builder) StateCheckpoint(h gw.Bytes32) *Builder {
	b.raw.StateCheckpoints = append(b.raw.StateCheckpoints, h)
	return b
}

// Deposit appends a deposit.
func (b *Builder) Deposit(d *tx.Deposit) *Builder {
	b.deposits = append(b.deposits, d)
	return b
}

// Transaction appends a transaction.
func (b *Builder) Transaction(t *tx.Transaction) *Builder {
	b.txs = append(b.txs, t)
	return b
}

// Withdrawal appends a withdrawal.
func (b *Builder) Withdrawal(w *tx.Withdrawal) *Builder {
	b.withdrawals = append(b.withdrawals, w)
	return b
}

// Build builds a block object. Witness roots and counts are derived from the bodies.
func (b *Builder) Build() *Block {
	raw := b.raw
	raw.SubmitTransactions.TxWitnessRoot = b.txs.WitnessRoot()
	raw.SubmitTransactions.TxCount = uint32(len(b.txs))
	raw.SubmitWithdrawals.WithdrawalWitnessRoot = b.withdrawals.WitnessRoot()
	raw.SubmitWithdrawals.WithdrawalCount = uint32(len(b.withdrawals))
	return Compose(NewHeader(raw), b.deposits, b.txs, b.withdrawals)
}
