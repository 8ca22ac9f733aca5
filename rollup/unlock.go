// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rollup

import (
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/gw"
)

type lockKind int

const (
	lockOther lockKind = iota
	lockStake
	lockDeposit
	lockCustodian
	lockWithdrawal
	lockChallenge
)

func (k lockKind) String() string {
	return [...]string{"other", "stake", "deposit", "custodian", "withdrawal", "challenge"}[k]
}

// revertedSet holds the block hashes proven reverted by a submit-block action.
type revertedSet map[gw.Bytes32]struct{}

func (s revertedSet) has(h gw.Bytes32) bool {
	_, ok := s[h]
	return ok
}

func (m *Machine) kindOf(lock *gw.Script) lockKind {
	if lock.HashType != gw.HashTypeType {
		return lockOther
	}
	switch lock.CodeHash {
	case m.config.StakeScriptTypeHash:
		return lockStake
	case m.config.DepositScriptTypeHash:
		return lockDeposit
	case m.config.CustodianScriptTypeHash:
		return lockCustodian
	case m.config.WithdrawalScriptTypeHash:
		return lockWithdrawal
	case m.config.ChallengeScriptTypeHash:
		return lockChallenge
	}
	return lockOther
}

// checkInputs checks every rollup locked input can be unlocked. action is nil when the rollup cell
// isn't updated by the transaction.
func (m *Machine) checkInputs(gs *block.GlobalState, action Action, ctx *Context, reverted revertedSet) error {
	name := "unlock"
	if action != nil {
		name = action.Name()
	}
	for i, in := range ctx.Inputs {
		kind := m.kindOf(&in.Lock)
		var err error
		switch kind {
		case lockOther:
			continue
		case lockStake:
			var args StakeLockArgs
			if err = parseLockArgs(&in.Lock, m.config.RollupScriptHash, &args); err == nil {
				err = m.CanUnlockStake(&args, gs, action, ctx)
			}
		case lockDeposit:
			var args DepositLockArgs
			if err = parseLockArgs(&in.Lock, m.config.RollupScriptHash, &args); err == nil {
				err = m.CanUnlockDeposit(&args, in, action, ctx)
			}
		case lockCustodian:
			var args CustodianLockArgs
			if err = parseLockArgs(&in.Lock, m.config.RollupScriptHash, &args); err == nil {
				err = m.CanUnlockCustodian(&args, gs, action, ctx, reverted)
			}
		case lockWithdrawal:
			var args WithdrawalLockArgs
			if err = parseLockArgs(&in.Lock, m.config.RollupScriptHash, &args); err == nil {
				err = m.CanUnlockWithdrawal(&args, gs, action, ctx, reverted)
			}
		case lockChallenge:
			var args ChallengeLockArgs
			if err = parseLockArgs(&in.Lock, m.config.RollupScriptHash, &args); err == nil {
				err = m.CanUnlockChallenge(&args, action)
			}
		}
		if err != nil {
			return rejectf(name, "input %d %v lock: %v", i, kind, err)
		}
	}
	return nil
}

// CanUnlockStake unlocks a stake to its owner once the staked block is finalized. A submit-block
// action of the owner moves it to the new block, a revert action takes it as penalty.
func (m *Machine) CanUnlockStake(args *StakeLockArgs, gs *block.GlobalState, action Action, ctx *Context) error {
	switch a := action.(type) {
	case *SubmitBlock:
		if owner := a.Block.Header().StakeCellOwnerLockHash(); args.OwnerLockHash != owner {
			return errors.Errorf("stake of %v moved by a block of %v", args.OwnerLockHash, owner)
		}
		return nil
	case *Revert:
		return nil
	}
	if !gw.IsFinalized(args.StakeBlockNumber, gs.LastFinalizedBlockNumber) {
		return errors.Errorf("stake of block %d not finalized", args.StakeBlockNumber)
	}
	if !ctx.hasInputLock(args.OwnerLockHash) {
		return errors.New("owner lock absent")
	}
	return nil
}

// CanUnlockDeposit unlocks a deposit to a submit-block action, or to its owner after the cancel
// timeout.
func (m *Machine) CanUnlockDeposit(args *DepositLockArgs, in *Input, action Action, ctx *Context) error {
	if _, ok := action.(*SubmitBlock); ok {
		return nil
	}
	if in.Since < args.CancelTimeout {
		return errors.Errorf("deposit cancel timeout %d, since %d", args.CancelTimeout, in.Since)
	}
	if !ctx.hasInputLock(args.OwnerLockHash) {
		return errors.New("owner lock absent")
	}
	return nil
}

// CanUnlockCustodian unlocks a finalized custodian to a submit-block action funding withdrawals,
// or to a merge that keeps the custodian capacity. An unfinalized custodian only unlocks when its
// deposit block is reverted.
func (m *Machine) CanUnlockCustodian(args *CustodianLockArgs, gs *block.GlobalState, action Action, ctx *Context, reverted revertedSet) error {
	if !gw.IsFinalized(args.DepositBlockNumber, gs.LastFinalizedBlockNumber) {
		if _, ok := action.(*SubmitBlock); ok && reverted.has(args.DepositBlockHash) {
			return nil
		}
		return errors.Errorf("custodian of block %d not finalized", args.DepositBlockNumber)
	}
	switch action.(type) {
	case *SubmitBlock:
		return nil
	case nil:
		return m.checkCustodianMerge(gs, ctx)
	}
	return errors.Errorf("custodian can't be used by %v", action.Name())
}

// checkCustodianMerge checks a transaction only merges or splits finalized custodians.
func (m *Machine) checkCustodianMerge(gs *block.GlobalState, ctx *Context) error {
	in, err := sumCapacity(ctx.Inputs, func(c *Input) (uint64, bool) {
		return c.Capacity, m.kindOf(&c.Lock) == lockCustodian
	})
	if err != nil {
		return err
	}
	var out uint64
	for _, c := range ctx.Outputs {
		if m.kindOf(&c.Lock) != lockCustodian {
			continue
		}
		var args CustodianLockArgs
		if err := parseLockArgs(&c.Lock, m.config.RollupScriptHash, &args); err != nil {
			return err
		}
		if !gw.IsFinalized(args.DepositBlockNumber, gs.LastFinalizedBlockNumber) {
			return errors.New("merged into an unfinalized custodian")
		}
		var overflow bool
		if out, overflow = math.SafeAdd(out, c.Capacity); overflow {
			return errCapacityOverflow
		}
	}
	if in != out {
		return errors.Errorf("custodian capacity %d merged into %d", in, out)
	}
	return nil
}

// CanUnlockWithdrawal unlocks a withdrawal to its owner once finalized, or to a submit-block action
// converting it back to a custodian when its block is reverted.
func (m *Machine) CanUnlockWithdrawal(args *WithdrawalLockArgs, gs *block.GlobalState, action Action, ctx *Context, reverted revertedSet) error {
	if _, ok := action.(*SubmitBlock); ok && reverted.has(args.WithdrawalBlockHash) {
		return nil
	}
	if !gw.IsFinalized(args.WithdrawalBlockNumber, gs.LastFinalizedBlockNumber) {
		return errors.Errorf("withdrawal of block %d not finalized", args.WithdrawalBlockNumber)
	}
	if !ctx.hasInputLock(args.OwnerLockHash) {
		return errors.New("owner lock absent")
	}
	return nil
}

// CanUnlockChallenge unlocks a challenge to the revert it matured into, or to a cancel replaying
// its target. The verifier presence is checked by the cancel replay.
func (m *Machine) CanUnlockChallenge(args *ChallengeLockArgs, action Action) error {
	switch a := action.(type) {
	case *Revert:
		return nil
	case *CancelChallenge:
		if a.Verify != nil && a.Verify.Target == args.Target {
			return nil
		}
		return errors.New("cancel of another target")
	}
	return errors.New("challenge requires a revert or cancel action")
}
