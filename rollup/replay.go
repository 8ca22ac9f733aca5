// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rollup

import (
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/runtime"
	"github.com/godwokenrises/godwoken-sub004/state"
	"github.com/godwokenrises/godwoken-sub004/tx"
	"github.com/godwokenrises/godwoken-sub004/xenv"
)

// Verifier is the cell a cancel must consume along with the challenge cell.
type Verifier struct {
	// CodeHash is the backend of the receiver, for transaction targets.
	CodeHash gw.Bytes32
	// LockHash is the lock of the withdrawing account, for withdrawal targets.
	LockHash gw.Bytes32
}

func (v *Verifier) presentIn(ctx *Context) bool {
	if !v.LockHash.IsZero() {
		return ctx.hasInputLock(v.LockHash)
	}
	return ctx.hasInputCode(v.CodeHash)
}

// Replay re-executes the target operation of v over the proven state, and checks the result is the
// checkpoint committed by the header. The header itself must be checked against the block tree by
// the caller.
func (m *Machine) Replay(v *VerifyContext) (*Verifier, error) {
	const name = "cancel-challenge"

	header := v.Header
	var (
		index     int
		witness   gw.Bytes32
		root      gw.Bytes32
		operation gw.Bytes32
	)
	switch v.Target.TargetType {
	case TargetTransaction:
		if v.Transaction == nil {
			return nil, rejectf(name, "missing transaction")
		}
		index = int(v.Target.TargetIndex)
		witness, root = v.Transaction.WitnessHash(), header.SubmitTransactions().TxWitnessRoot
		operation = v.Transaction.Hash()
	case TargetWithdrawal:
		if v.Withdrawal == nil {
			return nil, rejectf(name, "missing withdrawal")
		}
		index = int(header.SubmitTransactions().TxCount + v.Target.TargetIndex)
		witness, root = v.Withdrawal.WitnessHash(), header.SubmitWithdrawals().WithdrawalWitnessRoot
		operation = v.Withdrawal.Hash()
	default:
		return nil, rejectf(name, "unknown target type %d", v.Target.TargetType)
	}
	if !tx.VerifyWitness(root, v.Target.TargetIndex, witness, v.WitnessProof) {
		return nil, rejectf(name, "%v is not in the block", operation)
	}
	checkpoints := header.StateCheckpoints()
	if index >= len(checkpoints) {
		return nil, rejectf(name, "checkpoint %d out of %d", index, len(checkpoints))
	}
	if v.PrevAccount.Checkpoint() != header.PrevCheckpointOf(index) {
		return nil, rejectf(name, "prev account is not the committed checkpoint")
	}

	side, err := state.NewWitnessSide(v.Scripts, v.Data)
	if err != nil {
		return nil, rejectf(name, "witness: %v", err)
	}
	st, err := state.NewWitnessState(v.PrevAccount, v.Keys, v.Values, v.StateProof, side)
	if err != nil {
		return nil, rejectf(name, "state proof: %v", err)
	}
	rt := runtime.New(m.config, m.backends, st, &xenv.BlockInfo{
		Number:        header.Number(),
		Timestamp:     header.Timestamp(),
		BlockProducer: header.BlockProducer(),
	})

	verifier := new(Verifier)
	if v.Transaction != nil && v.Target.TargetType == TargetTransaction {
		if verifier.CodeHash, err = receiverCode(st, v.Transaction.ToID()); err != nil {
			return nil, rejectf(name, "receiver: %v", err)
		}
		if _, err := rt.ExecuteTransaction(v.Transaction, m.config.OnchainMaxCycles); err != nil {
			return nil, rejectf(name, "replay: %v", err)
		}
	} else {
		verifier.LockHash = v.Withdrawal.AccountScriptHash()
		if err := rt.ApplyWithdrawal(v.Withdrawal); err != nil {
			return nil, rejectf(name, "replay: %v", err)
		}
	}
	post, err := st.Checkpoint()
	if err != nil {
		return nil, rejectf(name, "replay: %v", err)
	}
	if post != checkpoints[index] {
		return nil, rejectf(name, "replay ends at %v, block commits %v", post, checkpoints[index])
	}
	return verifier, nil
}

func receiverCode(st *state.State, id uint32) (gw.Bytes32, error) {
	hash, err := st.GetScriptHash(id)
	if err != nil {
		return gw.Bytes32{}, err
	}
	script, err := st.GetScript(hash)
	if err != nil {
		return gw.Bytes32{}, err
	}
	if script == nil {
		return gw.Bytes32{}, errors.Errorf("script %v not found", hash)
	}
	return script.CodeHash, nil
}
