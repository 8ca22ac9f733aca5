// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rollup

import (
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/builtin"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/smt"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

// Machine validates rollup actions. It holds no state: every transition is a function of the
// previous global state, the action and the base chain transaction.
type Machine struct {
	config   *gw.Config
	backends *builtin.Manager
}

// New creates a machine. backends are used to replay challenged transactions.
func New(config *gw.Config, backends *builtin.Manager) *Machine {
	return &Machine{config: config, backends: backends}
}

// Config returns the rollup config.
func (m *Machine) Config() *gw.Config { return m.config }

// Apply validates action against the previous global state and the base chain transaction ctx,
// and returns the next global state. Every rollup locked input of ctx must be unlockable.
func (m *Machine) Apply(prev *block.GlobalState, action Action, ctx *Context) (*block.GlobalState, error) {
	if prev.RollupConfigHash != m.config.Hash() {
		return nil, rejectf(action.Name(), "rollup config hash mismatch")
	}
	var (
		next     *block.GlobalState
		reverted revertedSet
		err      error
	)
	switch a := action.(type) {
	case *SubmitBlock:
		next, reverted, err = m.submitBlock(prev, a, ctx)
	case *EnterChallenge:
		next, err = m.enterChallenge(prev, a, ctx)
	case *CancelChallenge:
		next, err = m.cancelChallenge(prev, a, ctx)
	case *Revert:
		next, err = m.revert(prev, a, ctx)
	default:
		return nil, errors.Errorf("unknown rollup action %T", action)
	}
	if err != nil {
		return nil, err
	}
	if err := m.checkInputs(prev, action, ctx, reverted); err != nil {
		return nil, err
	}
	metricActionCount().AddWithLabel(1, map[string]string{"action": action.Name()})
	return next, nil
}

// VerifyUnlock validates a base chain transaction that consumes rollup locked cells without
// updating the rollup cell, e.g. a withdrawal claimed by its owner.
func (m *Machine) VerifyUnlock(gs *block.GlobalState, ctx *Context) error {
	return m.checkInputs(gs, nil, ctx, nil)
}

func (m *Machine) submitBlock(prev *block.GlobalState, a *SubmitBlock, ctx *Context) (*block.GlobalState, revertedSet, error) {
	name := a.Name()
	if prev.Status != block.StatusRunning {
		return nil, nil, rejectf(name, "rollup is %v", prev.Status)
	}
	blk := a.Block
	header := blk.Header()
	num := header.Number()
	switch {
	case num != prev.Block.Count:
		return nil, nil, rejectf(name, "block number %d, want %d", num, prev.Block.Count)
	case header.ParentHash() != prev.TipBlockHash:
		return nil, nil, rejectf(name, "parent %v is not the tip", header.ParentHash())
	case header.Timestamp() <= prev.TipBlockTimestamp:
		return nil, nil, rejectf(name, "timestamp %d not after tip", header.Timestamp())
	case header.PrevAccount() != prev.Account:
		return nil, nil, rejectf(name, "prev account mismatch")
	}
	if err := checkCommitments(blk); err != nil {
		return nil, nil, rejectf(name, "%v", err)
	}

	keys := []gw.Bytes32{block.BlockSMTKey(num)}
	if !smt.Verify(prev.Block.MerkleRoot, keys, []gw.Bytes32{{}}, a.BlockProof) {
		return nil, nil, rejectf(name, "invalid block proof")
	}
	blockRoot, err := smt.ComputeRoot(keys, []gw.Bytes32{blk.Hash()}, a.BlockProof)
	if err != nil {
		return nil, nil, rejectf(name, "invalid block proof")
	}

	reverted := make(revertedSet, len(a.RevertedBlockHashes))
	if len(a.RevertedBlockHashes) > 0 {
		values := make([]gw.Bytes32, len(a.RevertedBlockHashes))
		for i, h := range a.RevertedBlockHashes {
			values[i] = block.RevertedSMTValue
			reverted[h] = struct{}{}
		}
		if !smt.Verify(prev.RevertedBlockRoot, a.RevertedBlockHashes, values, a.RevertedBlockProof) {
			return nil, nil, rejectf(name, "invalid reverted block proof")
		}
	}

	if err := m.checkDeposits(blk, ctx); err != nil {
		return nil, nil, rejectf(name, "%v", err)
	}
	if err := m.checkWithdrawals(blk, ctx); err != nil {
		return nil, nil, rejectf(name, "%v", err)
	}
	if err := m.checkStake(header, ctx); err != nil {
		return nil, nil, rejectf(name, "%v", err)
	}
	in, out, err := m.assetCapacity(ctx)
	if err != nil {
		return nil, nil, rejectf(name, "%v", err)
	}
	if in != out {
		return nil, nil, rejectf(name, "asset capacity %d in, %d out", in, out)
	}

	next := *prev
	next.Account = header.PostAccount()
	next.Block = gw.BlockMerkleState{MerkleRoot: blockRoot, Count: prev.Block.Count + 1}
	next.TipBlockHash = blk.Hash()
	next.TipBlockTimestamp = header.Timestamp()
	next.LastFinalizedBlockNumber = m.config.LastFinalizedBlockNumber(num)
	next.Version = block.GlobalStateVersion
	return &next, reverted, nil
}

// checkCommitments checks the header commits the body and ends at the post account state.
func checkCommitments(blk *block.Block) error {
	header := blk.Header()
	submitTxs := header.SubmitTransactions()
	submitWithdrawals := header.SubmitWithdrawals()
	txs, withdrawals := blk.Transactions(), blk.Withdrawals()
	if int(submitTxs.TxCount) != len(txs) || submitTxs.TxWitnessRoot != txs.WitnessRoot() {
		return errors.New("tx commitment mismatch")
	}
	if int(submitWithdrawals.WithdrawalCount) != len(withdrawals) ||
		submitWithdrawals.WithdrawalWitnessRoot != withdrawals.WitnessRoot() {
		return errors.New("withdrawal commitment mismatch")
	}
	checkpoints := header.StateCheckpoints()
	if len(checkpoints) != len(txs)+len(withdrawals) {
		return errors.Errorf("%d state checkpoints for %d operations", len(checkpoints), len(txs)+len(withdrawals))
	}
	last := submitTxs.PrevStateCheckpoint
	if len(checkpoints) > 0 {
		last = checkpoints[len(checkpoints)-1]
	}
	if last != header.PostAccount().Checkpoint() {
		return errors.New("post account does not match the last checkpoint")
	}
	return nil
}

// checkDeposits checks the deposit cells consumed by the block become custodian cells of the block,
// both in block order.
func (m *Machine) checkDeposits(blk *block.Block, ctx *Context) error {
	var inputs []*Input
	for _, in := range ctx.Inputs {
		if m.kindOf(&in.Lock) == lockDeposit {
			inputs = append(inputs, in)
		}
	}
	deposits := blk.Deposits()
	if len(inputs) != len(deposits) {
		return errors.Errorf("%d deposit cells for %d deposits", len(inputs), len(deposits))
	}

	var custodians []*Cell
	for _, out := range ctx.Outputs {
		if m.kindOf(&out.Lock) != lockCustodian {
			continue
		}
		var args CustodianLockArgs
		if err := parseLockArgs(&out.Lock, m.config.RollupScriptHash, &args); err != nil {
			return errors.WithMessage(err, "custodian output")
		}
		if args.DepositBlockHash == blk.Hash() {
			custodians = append(custodians, out)
		}
	}
	if len(custodians) != len(deposits) {
		return errors.Errorf("%d custodian cells for %d deposits", len(custodians), len(deposits))
	}

	for i, d := range deposits {
		var depositArgs DepositLockArgs
		if err := parseLockArgs(&inputs[i].Lock, m.config.RollupScriptHash, &depositArgs); err != nil {
			return errors.WithMessagef(err, "deposit cell %d", i)
		}
		if err := matchDeposit(d, &inputs[i].Cell, &depositArgs); err != nil {
			return errors.WithMessagef(err, "deposit %d", i)
		}
		var args CustodianLockArgs
		if err := parseLockArgs(&custodians[i].Lock, m.config.RollupScriptHash, &args); err != nil {
			return err
		}
		if args.DepositBlockNumber != blk.Header().Number() {
			return errors.Errorf("custodian %d of block %d", i, args.DepositBlockNumber)
		}
		if !depositArgs.Equal(&args.DepositLockArgs) {
			return errors.Errorf("custodian %d deposit args mismatch", i)
		}
		if custodians[i].Capacity != inputs[i].Capacity || !custodians[i].Type.Equal(inputs[i].Type) ||
			!custodians[i].SUDTAmount().Eq(inputs[i].SUDTAmount()) {
			return errors.Errorf("custodian %d assets mismatch", i)
		}
	}
	return nil
}

func matchDeposit(d *tx.Deposit, cell *Cell, args *DepositLockArgs) error {
	if !args.Layer2Lock.Equal(&d.Script) || args.RegistryID != d.RegistryID {
		return errors.New("layer2 lock mismatch")
	}
	if cell.Capacity != d.Capacity {
		return errors.Errorf("capacity %d, cell has %d", d.Capacity, cell.Capacity)
	}
	if d.SUDTScriptHash.IsZero() {
		if cell.Type != nil {
			return errors.New("sudt cell deposited as ckb")
		}
		return nil
	}
	if cell.Type == nil || cell.Type.Hash() != d.SUDTScriptHash {
		return errors.New("sudt script mismatch")
	}
	if d.Amount == nil || !cell.SUDTAmount().Eq(d.Amount) {
		return errors.New("sudt amount mismatch")
	}
	return nil
}

// checkWithdrawals checks every withdrawal of the block has its withdrawal cell, in block order.
func (m *Machine) checkWithdrawals(blk *block.Block, ctx *Context) error {
	var outputs []*Cell
	var outputArgs []*WithdrawalLockArgs
	for _, out := range ctx.Outputs {
		if m.kindOf(&out.Lock) != lockWithdrawal {
			continue
		}
		var args WithdrawalLockArgs
		if err := parseLockArgs(&out.Lock, m.config.RollupScriptHash, &args); err != nil {
			return errors.WithMessage(err, "withdrawal output")
		}
		if args.WithdrawalBlockHash == blk.Hash() {
			outputs = append(outputs, out)
			outputArgs = append(outputArgs, &args)
		}
	}
	withdrawals := blk.Withdrawals()
	if len(outputs) != len(withdrawals) {
		return errors.Errorf("%d withdrawal cells for %d withdrawals", len(outputs), len(withdrawals))
	}
	for i, w := range withdrawals {
		raw, args, cell := w.Raw(), outputArgs[i], outputs[i]
		if args.WithdrawalBlockNumber != blk.Header().Number() ||
			args.AccountScriptHash != raw.AccountScriptHash ||
			args.OwnerLockHash != raw.OwnerLockHash {
			return errors.Errorf("withdrawal cell %d args mismatch", i)
		}
		if cell.Capacity != raw.Capacity {
			return errors.Errorf("withdrawal cell %d capacity %d, want %d", i, cell.Capacity, raw.Capacity)
		}
		if !raw.SUDTScriptHash.IsZero() {
			if cell.Type == nil || cell.Type.Hash() != raw.SUDTScriptHash || !cell.SUDTAmount().Eq(raw.Amount) {
				return errors.Errorf("withdrawal cell %d sudt mismatch", i)
			}
		}
	}
	return nil
}

// checkStake checks the producer stake moves to the block. Only the producer's own stake may be
// consumed, and the moved stake keeps at least its capacity.
func (m *Machine) checkStake(header *block.Header, ctx *Context) error {
	owner := header.StakeCellOwnerLockHash()
	want := m.config.RequiredStakingCapacity
	var inputs int
	for _, in := range ctx.Inputs {
		if m.kindOf(&in.Lock) != lockStake {
			continue
		}
		if inputs++; inputs > 1 {
			return errors.New("more than one stake input")
		}
		var args StakeLockArgs
		if err := parseLockArgs(&in.Lock, m.config.RollupScriptHash, &args); err != nil {
			return errors.WithMessage(err, "stake input")
		}
		if args.OwnerLockHash != owner {
			return errors.Errorf("stake input owned by %v", args.OwnerLockHash)
		}
		want = max(want, in.Capacity)
	}

	var found bool
	for _, out := range ctx.Outputs {
		if m.kindOf(&out.Lock) != lockStake {
			continue
		}
		var args StakeLockArgs
		if err := parseLockArgs(&out.Lock, m.config.RollupScriptHash, &args); err != nil {
			return errors.WithMessage(err, "stake output")
		}
		if found || args.OwnerLockHash != owner || args.StakeBlockNumber != header.Number() {
			return errors.New("unexpected stake output")
		}
		if out.Capacity < want {
			return errors.Errorf("stake capacity %d, want %d", out.Capacity, want)
		}
		found = true
	}
	if !found {
		return errors.New("no stake cell for the block")
	}
	return nil
}

// assetCapacity sums the capacity of deposit, custodian and withdrawal cells on both sides.
func (m *Machine) assetCapacity(ctx *Context) (in, out uint64, err error) {
	isAsset := func(lock *gw.Script) bool {
		k := m.kindOf(lock)
		return k == lockDeposit || k == lockCustodian || k == lockWithdrawal
	}
	if in, err = sumCapacity(ctx.Inputs, func(c *Input) (uint64, bool) {
		return c.Capacity, isAsset(&c.Lock)
	}); err != nil {
		return 0, 0, err
	}
	if out, err = sumCapacity(ctx.Outputs, func(c *Cell) (uint64, bool) {
		return c.Capacity, isAsset(&c.Lock)
	}); err != nil {
		return 0, 0, err
	}
	return in, out, nil
}

// challengeCell returns the only cell among cells locked by the challenge lock.
func (m *Machine) challengeCell(cells []*Cell) (*Cell, *ChallengeLockArgs, error) {
	var (
		found *Cell
		args  ChallengeLockArgs
	)
	for _, c := range cells {
		if m.kindOf(&c.Lock) != lockChallenge {
			continue
		}
		if found != nil {
			return nil, nil, errors.New("more than one challenge cell")
		}
		if err := parseLockArgs(&c.Lock, m.config.RollupScriptHash, &args); err != nil {
			return nil, nil, err
		}
		found = c
	}
	if found == nil {
		return nil, nil, errors.New("no challenge cell")
	}
	return found, &args, nil
}

func inputCells(inputs []*Input) []*Cell {
	cells := make([]*Cell, len(inputs))
	for i, in := range inputs {
		cells[i] = &in.Cell
	}
	return cells
}

func (m *Machine) enterChallenge(prev *block.GlobalState, a *EnterChallenge, ctx *Context) (*block.GlobalState, error) {
	name := a.Name()
	if prev.Status != block.StatusRunning {
		return nil, rejectf(name, "rollup is %v", prev.Status)
	}
	cell, args, err := m.challengeCell(ctx.Outputs)
	if err != nil {
		return nil, rejectf(name, "%v", err)
	}
	if cell.Capacity < m.config.RequiredChallengeCapacity {
		return nil, rejectf(name, "challenge capacity %d, want %d", cell.Capacity, m.config.RequiredChallengeCapacity)
	}
	if err := m.checkTarget(prev, &args.Target, a.Header, a.BlockProof); err != nil {
		return nil, rejectf(name, "%v", err)
	}
	if gw.IsFinalized(a.Header.Number(), prev.LastFinalizedBlockNumber) {
		return nil, rejectf(name, "block %d is finalized", a.Header.Number())
	}

	next := *prev
	next.Status = block.StatusHalting
	return &next, nil
}

// checkTarget checks header is the committed block of target and the target index is in range.
func (m *Machine) checkTarget(gs *block.GlobalState, target *ChallengeTarget, header *block.Header, proof smt.Proof) error {
	if header == nil {
		return errors.New("missing target header")
	}
	if header.Hash() != target.BlockHash || header.Number() != target.BlockNumber {
		return errors.New("header is not the target block")
	}
	if !smt.Verify(gs.Block.MerkleRoot, []gw.Bytes32{block.BlockSMTKey(header.Number())}, []gw.Bytes32{header.Hash()}, proof) {
		return errors.New("invalid block proof")
	}
	var count uint32
	switch target.TargetType {
	case TargetTransaction:
		count = header.SubmitTransactions().TxCount
	case TargetWithdrawal:
		count = header.SubmitWithdrawals().WithdrawalCount
	}
	if target.TargetIndex >= count {
		return errors.Errorf("%v index %d out of %d", target.TargetType, target.TargetIndex, count)
	}
	return nil
}

func (m *Machine) cancelChallenge(prev *block.GlobalState, a *CancelChallenge, ctx *Context) (*block.GlobalState, error) {
	name := a.Name()
	if prev.Status != block.StatusHalting {
		return nil, rejectf(name, "rollup is %v", prev.Status)
	}
	cell, args, err := m.challengeCell(inputCells(ctx.Inputs))
	if err != nil {
		return nil, rejectf(name, "%v", err)
	}
	v := a.Verify
	if v == nil || v.Target != args.Target {
		return nil, rejectf(name, "verify context of another target")
	}
	if err := m.checkTarget(prev, &v.Target, v.Header, v.BlockProof); err != nil {
		return nil, rejectf(name, "%v", err)
	}
	verifier, err := m.Replay(v)
	if err != nil {
		return nil, err
	}
	if !verifier.presentIn(ctx) {
		return nil, rejectf(name, "verifier cell absent")
	}
	burn, _ := m.config.BurnShare(cell.Capacity)
	if err := ctx.checkReceived(map[gw.Bytes32]uint64{m.config.BurnLockHash: burn}); err != nil {
		return nil, rejectf(name, "burn: %v", err)
	}

	next := *prev
	next.Status = block.StatusRunning
	return &next, nil
}

func (m *Machine) revert(prev *block.GlobalState, a *Revert, ctx *Context) (*block.GlobalState, error) {
	name := a.Name()
	if prev.Status != block.StatusHalting {
		return nil, rejectf(name, "rollup is %v", prev.Status)
	}
	var challenge *Input
	for _, in := range ctx.Inputs {
		if m.kindOf(&in.Lock) == lockChallenge {
			challenge = in
		}
	}
	_, args, err := m.challengeCell(inputCells(ctx.Inputs))
	if err != nil {
		return nil, rejectf(name, "%v", err)
	}
	if challenge.Since < m.config.ChallengeMaturityBlocks {
		return nil, rejectf(name, "challenge not matured, %d of %d blocks", challenge.Since, m.config.ChallengeMaturityBlocks)
	}

	headers := a.Headers
	if len(headers) == 0 || len(headers) > MaxRevertedBlocks {
		return nil, rejectf(name, "%d reverted blocks", len(headers))
	}
	first := headers[0]
	if first.Hash() != args.Target.BlockHash {
		return nil, rejectf(name, "first reverted block is not the challenged block")
	}
	keys := make([]gw.Bytes32, len(headers))
	hashes := make([]gw.Bytes32, len(headers))
	for i, h := range headers {
		if i > 0 && (h.Number() != headers[i-1].Number()+1 || h.ParentHash() != hashes[i-1]) {
			return nil, rejectf(name, "reverted blocks not contiguous at %d", h.Number())
		}
		keys[i] = block.BlockSMTKey(h.Number())
		hashes[i] = h.Hash()
	}
	if hashes[len(hashes)-1] != prev.TipBlockHash {
		return nil, rejectf(name, "reverted blocks do not end at the tip")
	}

	zeros := make([]gw.Bytes32, len(headers))
	if !smt.Verify(prev.Block.MerkleRoot, keys, hashes, a.BlockProof) {
		return nil, rejectf(name, "invalid block proof")
	}
	blockRoot, err := smt.ComputeRoot(keys, zeros, a.BlockProof)
	if err != nil {
		return nil, rejectf(name, "invalid block proof")
	}
	marks := make([]gw.Bytes32, len(headers))
	for i := range marks {
		marks[i] = block.RevertedSMTValue
	}
	if !smt.Verify(prev.RevertedBlockRoot, hashes, zeros, a.RevertedBlockProof) {
		return nil, rejectf(name, "invalid reverted block proof")
	}
	revertedRoot, err := smt.ComputeRoot(hashes, marks, a.RevertedBlockProof)
	if err != nil {
		return nil, rejectf(name, "invalid reverted block proof")
	}

	if err := m.checkPenalty(headers, challenge, args, ctx); err != nil {
		return nil, rejectf(name, "%v", err)
	}

	next := *prev
	next.Account = first.PrevAccount()
	next.Block = gw.BlockMerkleState{MerkleRoot: blockRoot, Count: first.Number()}
	next.RevertedBlockRoot = revertedRoot
	next.TipBlockHash = first.ParentHash()
	next.Status = block.StatusRunning
	return &next, nil
}

// checkPenalty checks the stakes of the reverted block producers are forfeited. The stakes are
// split between the burn lock and the challenger by the reward burn rate, and the challenger also
// takes back the challenge capacity.
func (m *Machine) checkPenalty(headers []*block.Header, challenge *Input, args *ChallengeLockArgs, ctx *Context) error {
	producers := make(map[gw.Bytes32]bool, len(headers))
	for _, h := range headers {
		producers[h.StakeCellOwnerLockHash()] = false
	}

	var stakes uint64
	for _, in := range ctx.Inputs {
		if m.kindOf(&in.Lock) != lockStake {
			continue
		}
		var stake StakeLockArgs
		if err := parseLockArgs(&in.Lock, m.config.RollupScriptHash, &stake); err != nil {
			return errors.WithMessage(err, "stake input")
		}
		if stake.StakeBlockNumber < headers[0].Number() {
			return errors.Errorf("stake of block %d is not reverted", stake.StakeBlockNumber)
		}
		if _, ok := producers[stake.OwnerLockHash]; !ok {
			return errors.Errorf("stake of %v produced no reverted block", stake.OwnerLockHash)
		}
		producers[stake.OwnerLockHash] = true
		var overflow bool
		if stakes, overflow = math.SafeAdd(stakes, in.Capacity); overflow {
			return errCapacityOverflow
		}
	}
	for owner, forfeited := range producers {
		if !forfeited {
			return errors.Errorf("no stake of producer %v", owner)
		}
	}

	burn, reward := m.config.BurnShare(stakes)
	reward, overflow := math.SafeAdd(reward, challenge.Capacity)
	if overflow {
		return errCapacityOverflow
	}
	required := map[gw.Bytes32]uint64{m.config.BurnLockHash: burn}
	receiver := args.RewardsReceiverLock.Hash()
	if required[receiver], overflow = math.SafeAdd(required[receiver], reward); overflow {
		return errCapacityOverflow
	}
	return ctx.checkReceived(required)
}
