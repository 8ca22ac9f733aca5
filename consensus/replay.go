// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package consensus

import (
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/rollup"
	"github.com/godwokenrises/godwoken-sub004/runtime"
	"github.com/godwokenrises/godwoken-sub004/smt"
	"github.com/godwokenrises/godwoken-sub004/state"
	"github.com/godwokenrises/godwoken-sub004/xenv"
)

// badOperationError marks an operation whose replay disagrees with its block.
type badOperationError struct {
	cause error
}

func (e *badOperationError) Error() string { return "bad operation: " + e.cause.Error() }
func (e *badOperationError) Unwrap() error { return e.cause }

func isBadOperation(err error) bool {
	var bad *badOperationError
	return errors.As(err, &bad)
}

// replayer re-executes the operations of a block one by one. Each operation runs on its own state
// over the shared tree, so the keys and side data it touches can be collected.
type replayer struct {
	c       *Consensus
	blk     *block.Block
	tree    *smt.Tree
	account gw.AccountMerkleState
	info    *xenv.BlockInfo
}

func (c *Consensus) newReplayer(blk *block.Block) (*replayer, error) {
	header := blk.Header()
	parent, err := c.repo.GetGlobalState(header.Number() - 1)
	if err != nil {
		return nil, err
	}
	if header.PrevAccount() != parent.Account {
		return nil, errors.New("prev account is not the parent state")
	}
	r := &replayer{
		c:       c,
		blk:     blk,
		tree:    c.stater.NewTree(parent.Account.MerkleRoot),
		account: parent.Account,
		info: &xenv.BlockInfo{
			Number:        header.Number(),
			Timestamp:     header.Timestamp(),
			BlockProducer: header.BlockProducer(),
		},
	}

	st, rt := r.begin()
	for i, d := range blk.Deposits() {
		if err := rt.ApplyDeposit(d); err != nil {
			return nil, errors.WithMessagef(err, "deposit %d", i)
		}
	}
	if r.account, err = st.Flush(); err != nil {
		return nil, err
	}
	if r.account.Checkpoint() != header.PrevCheckpointOf(0) {
		return nil, errors.New("deposits don't lead to the prev state checkpoint")
	}
	return r, nil
}

func (r *replayer) begin() (*state.State, *runtime.Runtime) {
	st := state.New(r.tree, r.c.stater.Store(), r.account.Count)
	return st, runtime.New(r.c.config, r.c.backends, st, r.info)
}

// target returns the challenge target of the operation at index of the checkpoint list.
func (r *replayer) target(index int) *rollup.ChallengeTarget {
	header := r.blk.Header()
	target := &rollup.ChallengeTarget{
		BlockHash:   header.Hash(),
		BlockNumber: header.Number(),
		TargetIndex: uint32(index),
		TargetType:  rollup.TargetTransaction,
	}
	if txCount := header.SubmitTransactions().TxCount; uint32(index) >= txCount {
		target.TargetIndex -= txCount
		target.TargetType = rollup.TargetWithdrawal
	}
	return target
}

// step replays the operation at index of the checkpoint list, and returns the state it ran on.
func (r *replayer) step(index int) (*state.State, error) {
	var (
		txs         = r.blk.Transactions()
		checkpoints = r.blk.Header().StateCheckpoints()
		st, rt      = r.begin()
		err         error
	)
	if index < len(txs) {
		_, err = rt.ExecuteTransaction(txs[index], r.c.config.MaxCycles)
	} else {
		err = rt.ApplyWithdrawal(r.blk.Withdrawals()[index-len(txs)])
	}
	if err != nil {
		return nil, &badOperationError{err}
	}
	post, err := st.Flush()
	if err != nil {
		return nil, &badOperationError{err}
	}
	if post.Checkpoint() != checkpoints[index] {
		return nil, &badOperationError{errors.Errorf("checkpoint %v, block commits %v", post.Checkpoint(), checkpoints[index])}
	}
	r.account = post
	return st, nil
}
