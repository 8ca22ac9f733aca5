// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package consensus

import (
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/builtin"
	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/log"
	"github.com/godwokenrises/godwoken-sub004/rollup"
	"github.com/godwokenrises/godwoken-sub004/state"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

var logger = log.WithContext("pkg", "consensus")

// Consensus re-executes committed blocks to find operations worth a challenge, and builds the
// evidence to cancel challenges against valid ones.
type Consensus struct {
	repo     *chain.Repository
	stater   *state.Stater
	backends *builtin.Manager
	config   *gw.Config
}

// New is Consensus factory.
func New(repo *chain.Repository, stater *state.Stater, backends *builtin.Manager, config *gw.Config) *Consensus {
	return &Consensus{
		repo:     repo,
		stater:   stater,
		backends: backends,
		config:   config,
	}
}

// Verify replays the block of number num against its parent. It returns the first operation
// whose result differs from the committed checkpoint, or nil if the block is valid.
func (c *Consensus) Verify(num uint64) (*rollup.ChallengeTarget, error) {
	if num == 0 {
		return nil, nil
	}
	blk, err := c.repo.GetBlock(num)
	if err != nil {
		return nil, err
	}
	r, err := c.newReplayer(blk)
	if err != nil {
		return nil, err
	}
	for i := range len(blk.Transactions()) + len(blk.Withdrawals()) {
		if _, err := r.step(i); err != nil {
			if !isBadOperation(err) {
				return nil, err
			}
			target := r.target(i)
			logger.Info("bad operation found", "block", num, "type", target.TargetType, "index", target.TargetIndex, "err", err)
			metricBadOperation().AddWithLabel(1, map[string]string{"type": target.TargetType.String()})
			return target, nil
		}
	}
	return nil, nil
}

// BuildVerifyContext builds the evidence replaying a valid target operation, proven against the
// current tip.
func (c *Consensus) BuildVerifyContext(target *rollup.ChallengeTarget) (*rollup.VerifyContext, error) {
	blk, err := c.repo.GetBlock(target.BlockNumber)
	if err != nil {
		return nil, err
	}
	if blk.Hash() != target.BlockHash {
		return nil, errors.Errorf("block %d is not %v", target.BlockNumber, target.BlockHash)
	}
	header := blk.Header()
	index := int(target.TargetIndex)
	if target.TargetType == rollup.TargetWithdrawal {
		index += int(header.SubmitTransactions().TxCount)
	}

	r, err := c.newReplayer(blk)
	if err != nil {
		return nil, err
	}
	for i := range index {
		if _, err := r.step(i); err != nil {
			return nil, errors.WithMessagef(err, "operation %d before the target", i)
		}
	}
	pre := r.tree.Copy()
	prevAccount := r.account
	st, err := r.step(index)
	if err != nil {
		return nil, errors.WithMessage(err, "target")
	}

	keys := st.TouchedKeys()
	values := make([]gw.Bytes32, len(keys))
	for i, k := range keys {
		if values[i], err = pre.Get(k); err != nil {
			return nil, err
		}
	}
	stateProof, err := pre.MerkleProof(keys)
	if err != nil {
		return nil, err
	}
	scripts, data := st.Witness()

	v := &rollup.VerifyContext{
		Target:      *target,
		Header:      header,
		PrevAccount: prevAccount,
		Keys:        keys,
		Values:      values,
		StateProof:  stateProof,
		Scripts:     scripts,
		Data:        data,
	}
	var witnesses []gw.Bytes32
	if target.TargetType == rollup.TargetTransaction {
		for _, trx := range blk.Transactions() {
			witnesses = append(witnesses, trx.WitnessHash())
		}
		v.Transaction = blk.Transactions()[target.TargetIndex]
	} else {
		for _, w := range blk.Withdrawals() {
			witnesses = append(witnesses, w.WitnessHash())
		}
		v.Withdrawal = blk.Withdrawals()[target.TargetIndex]
	}
	if v.WitnessProof, err = tx.WitnessProof(witnesses, target.TargetIndex); err != nil {
		return nil, err
	}
	if v.BlockProof, err = c.repo.BlockProof([]uint64{target.BlockNumber}); err != nil {
		return nil, err
	}
	return v, nil
}

// ChallengeOf returns the enter-challenge action against target, proven against the current tip.
func (c *Consensus) ChallengeOf(target *rollup.ChallengeTarget) (*rollup.EnterChallenge, error) {
	summary, err := c.repo.GetBlockSummary(target.BlockNumber)
	if err != nil {
		return nil, err
	}
	proof, err := c.repo.BlockProof([]uint64{target.BlockNumber})
	if err != nil {
		return nil, err
	}
	return &rollup.EnterChallenge{Header: summary.Header, BlockProof: proof}, nil
}

// RevertOf returns the revert action of target, reverting its block and all descendants up to
// the tip.
func (c *Consensus) RevertOf(target *rollup.ChallengeTarget) (*rollup.Revert, error) {
	tip := c.repo.Tip().Block.Header().Number()
	if target.BlockNumber == 0 || target.BlockNumber > tip {
		return nil, errors.Errorf("block %d out of range", target.BlockNumber)
	}
	if tip-target.BlockNumber >= rollup.MaxRevertedBlocks {
		return nil, errors.Errorf("reverting %d blocks", tip-target.BlockNumber+1)
	}
	var (
		numbers []uint64
		headers []*block.Header
		hashes  []gw.Bytes32
	)
	for num := target.BlockNumber; num <= tip; num++ {
		summary, err := c.repo.GetBlockSummary(num)
		if err != nil {
			return nil, err
		}
		numbers = append(numbers, num)
		headers = append(headers, summary.Header)
		hashes = append(hashes, summary.Header.Hash())
	}
	blockProof, err := c.repo.BlockProof(numbers)
	if err != nil {
		return nil, err
	}
	revertedProof, err := c.repo.RevertedProof(hashes)
	if err != nil {
		return nil, err
	}
	return &rollup.Revert{Headers: headers, BlockProof: blockProof, RevertedBlockProof: revertedProof}, nil
}
