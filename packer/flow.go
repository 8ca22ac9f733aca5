// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package packer

import (
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/runtime"
	"github.com/godwokenrises/godwoken-sub004/state"
	"github.com/godwokenrises/godwoken-sub004/tx"
	"github.com/godwokenrises/godwoken-sub004/xenv"
)

type phase int

const (
	phaseDeposits phase = iota
	phaseTxs
	phaseWithdrawals
)

// Flow the flow of packing a new block. Deposits come first, then transactions, then
// withdrawals; a request of an earlier kind can't follow a later one.
type Flow struct {
	packer     *Packer
	parent     *chain.Tip
	runtime    *runtime.Runtime
	phase      phase
	cyclesLeft uint64

	afterDeposits gw.Bytes32
	processed     map[gw.Bytes32]struct{}
	deposits      tx.Deposits
	txs           tx.Transactions
	receipts      tx.Receipts
	withdrawals   tx.Withdrawals
	checkpoints   []gw.Bytes32
}

func newFlow(packer *Packer, parent *chain.Tip, rt *runtime.Runtime) *Flow {
	return &Flow{
		packer:     packer,
		parent:     parent,
		runtime:    rt,
		cyclesLeft: packer.limits.BlockCycles,
		processed:  make(map[gw.Bytes32]struct{}),
	}
}

// Parent returns the parent block and its global state.
func (f *Flow) Parent() *chain.Tip {
	return f.parent
}

// BlockInfo returns the context of the new block.
func (f *Flow) BlockInfo() *xenv.BlockInfo {
	return f.runtime.BlockInfo()
}

// Runtime returns the executor running on the block state.
func (f *Flow) Runtime() *runtime.Runtime {
	return f.runtime
}

// State returns the state after the requests adopted so far.
func (f *Flow) State() *state.State {
	return f.runtime.State()
}

// CyclesLeft returns what's left of the block cycles pool.
func (f *Flow) CyclesLeft() uint64 {
	return f.cyclesLeft
}

// Deposits returns the adopted deposits.
func (f *Flow) Deposits() tx.Deposits { return f.deposits }

// Transactions returns the adopted transactions.
func (f *Flow) Transactions() tx.Transactions { return f.txs }

// Receipts returns the receipts of the adopted transactions.
func (f *Flow) Receipts() tx.Receipts { return f.receipts }

// Withdrawals returns the adopted withdrawals.
func (f *Flow) Withdrawals() tx.Withdrawals { return f.withdrawals }

// Receipt returns the receipt of an adopted transaction.
func (f *Flow) Receipt(txHash gw.Bytes32) (*tx.Receipt, bool) {
	for i, trx := range f.txs {
		if trx.Hash() == txHash {
			return f.receipts[i], true
		}
	}
	return nil, false
}

// enter moves the flow to phase p, recording the checkpoint after deposits when leaving them.
func (f *Flow) enter(p phase) error {
	if p < f.phase {
		return errPhase
	}
	if f.phase == phaseDeposits && p > phaseDeposits {
		cp, err := f.runtime.State().Checkpoint()
		if err != nil {
			return err
		}
		f.afterDeposits = cp
	}
	f.phase = p
	return nil
}

func (f *Flow) isKnown(hash gw.Bytes32) (bool, error) {
	if _, ok := f.processed[hash]; ok {
		return true, nil
	}
	if _, err := f.packer.repo.GetLocation(hash); err != nil {
		if f.packer.repo.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Deposit credits a deposit. A rejected deposit leaves the state untouched.
func (f *Flow) Deposit(d *tx.Deposit) error {
	if f.phase != phaseDeposits {
		return errPhase
	}
	if len(f.deposits) >= f.packer.limits.MaxDeposits {
		return errBlockFull
	}
	st := f.runtime.State()
	revision := st.NewCheckpoint()
	if err := f.runtime.ApplyDeposit(d); err != nil {
		st.RevertTo(revision)
		return badTxError{err.Error()}
	}
	f.deposits = append(f.deposits, d)
	return nil
}

// Adopt executes the transaction and adopts it with its receipt, which may be a failure
// receipt. Errors other than fatal ones leave the state untouched.
func (f *Flow) Adopt(trx *tx.Transaction) (*tx.Receipt, error) {
	if err := f.enter(phaseTxs); err != nil {
		return nil, err
	}
	if len(f.txs) >= f.packer.limits.MaxTxs {
		return nil, errBlockFull
	}
	if f.cyclesLeft == 0 {
		return nil, errCyclesPoolExhausted
	}
	if known, err := f.isKnown(trx.Hash()); err != nil {
		return nil, err
	} else if known {
		return nil, errKnownTx
	}

	receipt, err := f.runtime.ExecuteTransaction(trx, f.cyclesLeft)
	if err != nil {
		switch {
		case runtime.IsTransactionError(err, runtime.ErrExceededCycles):
			return nil, errCyclesPoolExhausted
		case runtime.IsFatal(err):
			return nil, err
		default:
			return nil, badTxError{err.Error()}
		}
	}
	f.processed[trx.Hash()] = struct{}{}
	f.cyclesLeft -= min(receipt.Cycles, f.cyclesLeft)
	f.txs = append(f.txs, trx)
	f.receipts = append(f.receipts, receipt)
	f.checkpoints = append(f.checkpoints, receipt.PostState.Checkpoint())
	return receipt, nil
}

// Withdraw applies a withdrawal. A rejected withdrawal leaves the state untouched.
func (f *Flow) Withdraw(w *tx.Withdrawal) error {
	if err := f.enter(phaseWithdrawals); err != nil {
		return err
	}
	if len(f.withdrawals) >= f.packer.limits.MaxWithdrawals {
		return errBlockFull
	}
	if known, err := f.isKnown(w.Hash()); err != nil {
		return err
	} else if known {
		return errKnownTx
	}
	if err := f.runtime.ApplyWithdrawal(w); err != nil {
		if runtime.IsFatal(err) {
			return err
		}
		return badTxError{err.Error()}
	}
	cp, err := f.runtime.State().Checkpoint()
	if err != nil {
		return err
	}
	f.processed[w.Hash()] = struct{}{}
	f.withdrawals = append(f.withdrawals, w)
	f.checkpoints = append(f.checkpoints, cp)
	return nil
}

// Pack builds the new block. The flow must not be used afterwards.
func (f *Flow) Pack() (*block.Block, *state.Stage, tx.Receipts, error) {
	if err := f.enter(phaseWithdrawals); err != nil {
		return nil, nil, nil, err
	}
	stage, err := f.runtime.State().Stage()
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "stage")
	}

	info := f.runtime.BlockInfo()
	builder := new(block.Builder).
		Number(info.Number).
		ParentHash(f.parent.Block.Hash()).
		Timestamp(info.Timestamp).
		BlockProducer(info.BlockProducer).
		StakeCellOwnerLockHash(f.packer.stakeOwnerLockHash).
		PrevAccount(f.parent.GlobalState.Account).
		PostAccount(stage.Account()).
		PrevStateCheckpoint(f.afterDeposits)
	for _, cp := range f.checkpoints {
		builder.StateCheckpoint(cp)
	}
	for _, d := range f.deposits {
		builder.Deposit(d)
	}
	for _, trx := range f.txs {
		builder.Transaction(trx)
	}
	for _, w := range f.withdrawals {
		builder.Withdrawal(w)
	}

	metricPackedCount().AddWithLabel(int64(len(f.deposits)), map[string]string{"type": "deposit"})
	metricPackedCount().AddWithLabel(int64(len(f.txs)), map[string]string{"type": "tx"})
	metricPackedCount().AddWithLabel(int64(len(f.withdrawals)), map[string]string{"type": "withdrawal"})
	metricBlockCycles().Observe(int64(f.packer.limits.BlockCycles - f.cyclesLeft))
	return builder.Build(), stage, f.receipts, nil
}
