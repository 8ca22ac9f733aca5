// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"context"
	"sync"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/spacemeshos/go-scale"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/codec"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/rollup"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

// sudtCellCapacity is taken from the change to hold a sUDT change custodian.
const sudtCellCapacity = 142_0000_0000

// LoopbackOptions configures the loopback base chain.
type LoopbackOptions struct {
	// OwnerLock owns the deposits, the reserve and the challenge rewards.
	OwnerLock gw.Script
	// BurnLock receives the burned part of forfeited stakes. It must hash to the configured
	// burn lock hash.
	BurnLock gw.Script
	// Reserve is the capacity of the custodian collected by genesis, funding withdrawals.
	Reserve uint64
	// CancelTimeout of created deposit cells, in base chain blocks.
	CancelTimeout uint64
}

// DepositRequest creates a deposit cell.
type DepositRequest struct {
	Layer2Lock gw.Script
	RegistryID uint32
	Capacity   uint64
	// SUDT is the type script of the deposited sUDT, nil for CKB only deposits.
	SUDT   *gw.Script
	Amount *uint256.Int
}

// liveCell is a rollup locked cell on the loopback chain.
type liveCell struct {
	cell *rollup.Cell
	// height is the base chain block committing the cell.
	height uint64
	// number and hash of the layer2 block the cell is keyed by.
	number    uint64
	blockHash gw.Bytes32
	// args of deposit and custodian cells.
	args *rollup.DepositLockArgs
}

type depositCell struct {
	liveCell
	deposit   *tx.Deposit
	collected bool
}

// Loopback is an in-process base chain for devnets. It keeps the rollup cell and the rollup
// locked cells, and builds the base chain transaction of every action it is handed, validated
// by the rollup machine.
type Loopback struct {
	mu          sync.Mutex
	machine     *rollup.Machine
	config      *gw.Config
	options     LoopbackOptions
	genesisHash gw.Bytes32
	gs          *block.GlobalState
	height      uint64
	deposits    []*depositCell
	custodians  []*liveCell
	withdrawals []*liveCell
	stake       *liveCell
	challenge   *liveCell
	// reverted holds blocks reverted on the rollup cell whose cells are not reconciled yet.
	reverted map[gw.Bytes32]bool
}

// NewLoopback creates a loopback base chain whose rollup cell holds the genesis global state.
func NewLoopback(machine *rollup.Machine, genesis *block.Block, gs *block.GlobalState, options LoopbackOptions) (*Loopback, error) {
	config := machine.Config()
	if options.BurnLock.Hash() != config.BurnLockHash {
		return nil, errors.New("burn lock does not match the burn lock hash")
	}
	l := &Loopback{
		machine:     machine,
		config:      config,
		options:     options,
		genesisHash: genesis.Hash(),
		gs:          gs,
		reverted:    make(map[gw.Bytes32]bool),
	}
	if options.Reserve > 0 {
		reserve, err := l.reserveCustodian(&rollup.Cell{Capacity: options.Reserve})
		if err != nil {
			return nil, err
		}
		l.custodians = append(l.custodians, reserve)
	}
	return l, nil
}

func (l *Loopback) lock(codeHash gw.Bytes32, args scale.Encodable) (gw.Script, error) {
	return rollup.LockScript(codeHash, l.config.RollupScriptHash, args)
}

func (l *Loopback) input(c *liveCell) *rollup.Input {
	return &rollup.Input{Cell: *c.cell, Since: l.height - c.height}
}

// custodian locks the assets of cell to a custodian of block num.
func (l *Loopback) custodian(blockHash gw.Bytes32, num uint64, args *rollup.DepositLockArgs, cell *rollup.Cell) (*liveCell, error) {
	lock, err := l.lock(l.config.CustodianScriptTypeHash, &rollup.CustodianLockArgs{
		DepositBlockHash:   blockHash,
		DepositBlockNumber: num,
		DepositLockArgs:    *args,
	})
	if err != nil {
		return nil, err
	}
	return &liveCell{
		cell:      &rollup.Cell{Capacity: cell.Capacity, Lock: lock, Type: cell.Type, Data: cell.Data},
		height:    l.height + 1,
		number:    num,
		blockHash: blockHash,
		args:      args,
	}, nil
}

// reserveCustodian is a custodian keyed by the genesis block, always finalized.
func (l *Loopback) reserveCustodian(cell *rollup.Cell) (*liveCell, error) {
	args := &rollup.DepositLockArgs{OwnerLockHash: l.options.OwnerLock.Hash(), CancelTimeout: l.options.CancelTimeout}
	return l.custodian(l.genesisHash, 0, args, cell)
}

func (l *Loopback) depositCell(args *rollup.DepositLockArgs, capacity uint64, sudt *gw.Script, amount *uint256.Int) (*depositCell, error) {
	lock, err := l.lock(l.config.DepositScriptTypeHash, args)
	if err != nil {
		return nil, err
	}
	if amount == nil {
		amount = new(uint256.Int)
	}
	d := &tx.Deposit{
		Capacity:   capacity,
		Amount:     amount.Clone(),
		Script:     args.Layer2Lock,
		RegistryID: args.RegistryID,
	}
	cell := &rollup.Cell{Capacity: capacity, Lock: lock}
	if sudt != nil {
		le, err := codec.U128ToLE(amount)
		if err != nil {
			return nil, err
		}
		typ := *sudt
		cell.Type, cell.Data = &typ, le[:]
		d.SUDTScriptHash = sudt.Hash()
	}
	return &depositCell{
		liveCell: liveCell{cell: cell, height: l.height + 1, args: args},
		deposit:  d,
	}, nil
}

// Deposit commits a deposit cell owned by the owner lock.
func (l *Loopback) Deposit(req *DepositRequest) (*tx.Deposit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	args := &rollup.DepositLockArgs{
		OwnerLockHash: l.options.OwnerLock.Hash(),
		Layer2Lock:    req.Layer2Lock,
		CancelTimeout: l.options.CancelTimeout,
		RegistryID:    req.RegistryID,
	}
	cell, err := l.depositCell(args, req.Capacity, req.SUDT, req.Amount)
	if err != nil {
		return nil, err
	}
	l.height++
	l.deposits = append(l.deposits, cell)
	return cell.deposit, nil
}

// Advance mines n base chain blocks.
func (l *Loopback) Advance(n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.height += n
}

// GlobalState implements BaseChain.
func (l *Loopback) GlobalState(context.Context) (*block.GlobalState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	gs := *l.gs
	return &gs, nil
}

// CollectDeposits implements BaseChain.
func (l *Loopback) CollectDeposits(context.Context) (tx.Deposits, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var deposits tx.Deposits
	for _, d := range l.deposits {
		if !d.collected {
			d.collected = true
			deposits = append(deposits, d.deposit)
		}
	}
	return deposits, nil
}

// CustodianCapacity returns the capacity held by custodians.
func (l *Loopback) CustodianCapacity() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total uint64
	for _, c := range l.custodians {
		total += c.cell.Capacity
	}
	return total
}

// Withdrawals returns the live withdrawal cells.
func (l *Loopback) Withdrawals() []*rollup.Cell {
	l.mu.Lock()
	defer l.mu.Unlock()

	cells := make([]*rollup.Cell, 0, len(l.withdrawals))
	for _, w := range l.withdrawals {
		cells = append(cells, w.cell)
	}
	return cells
}

func (l *Loopback) isFinalized(c *liveCell) bool {
	return !l.reverted[c.blockHash] && gw.IsFinalized(c.number, l.gs.LastFinalizedBlockNumber)
}

// sudtFund sums the sUDT of one type consumed by a submission.
type sudtFund struct {
	script gw.Script
	amount *uint256.Int
}

// submission is the base chain transaction of a submit-block action and the cells it leaves.
type submission struct {
	ctx         rollup.Context
	deposits    []*depositCell
	custodians  []*liveCell
	withdrawals []*liveCell
	stake       *liveCell
}

// SubmitBlock implements BaseChain. The transaction collects the deposits of the block into
// custodians, funds its withdrawals from finalized custodians, moves the stake to the block and
// returns the assets of the reverted blocks it reconciles.
func (l *Loopback) SubmitBlock(_ context.Context, action *rollup.SubmitBlock) (*block.GlobalState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sub, err := l.buildSubmission(action)
	if err != nil {
		return nil, errors.WithMessage(err, "build submission")
	}
	next, err := l.machine.Apply(l.gs, action, &sub.ctx)
	if err != nil {
		return nil, err
	}

	l.height++
	l.gs = next
	l.deposits = sub.deposits
	l.custodians = sub.custodians
	l.withdrawals = sub.withdrawals
	l.stake = sub.stake
	for _, h := range action.RevertedBlockHashes {
		delete(l.reverted, h)
	}
	logger.Debug("block submitted", "number", action.Block.Header().Number(), "height", l.height)
	return next, nil
}

func (l *Loopback) buildSubmission(action *rollup.SubmitBlock) (*submission, error) {
	var (
		sub        = new(submission)
		blk        = action.Block
		hash       = blk.Hash()
		num        = blk.Header().Number()
		reverted   = make(map[gw.Bytes32]bool, len(action.RevertedBlockHashes))
		used       = make(map[*depositCell]bool)
		funds      []*liveCell
		redeposits []*depositCell
	)
	for _, h := range action.RevertedBlockHashes {
		reverted[h] = true
	}

	for i, d := range blk.Deposits() {
		var cell *depositCell
		for _, c := range l.deposits {
			if !used[c] && c.deposit.Hash() == d.Hash() {
				cell = c
				break
			}
		}
		if cell == nil {
			return nil, errors.Errorf("deposit %d has no cell", i)
		}
		used[cell] = true
		custodian, err := l.custodian(hash, num, cell.args, cell.cell)
		if err != nil {
			return nil, err
		}
		sub.ctx.Inputs = append(sub.ctx.Inputs, l.input(&cell.liveCell))
		sub.ctx.Outputs = append(sub.ctx.Outputs, custodian.cell)
		sub.custodians = append(sub.custodians, custodian)
	}

	withdrawals := blk.Withdrawals()
	for _, c := range l.custodians {
		switch {
		case reverted[c.blockHash]:
			// back to a deposit cell, collected again
			back, err := l.depositCell(c.args, c.cell.Capacity, c.cell.Type, c.cell.SUDTAmount())
			if err != nil {
				return nil, err
			}
			sub.ctx.Inputs = append(sub.ctx.Inputs, l.input(c))
			sub.ctx.Outputs = append(sub.ctx.Outputs, back.cell)
			redeposits = append(redeposits, back)
		case len(withdrawals) > 0 && l.isFinalized(c):
			sub.ctx.Inputs = append(sub.ctx.Inputs, l.input(c))
			funds = append(funds, c)
		default:
			sub.custodians = append(sub.custodians, c)
		}
	}
	for _, w := range l.withdrawals {
		if reverted[w.blockHash] {
			sub.ctx.Inputs = append(sub.ctx.Inputs, l.input(w))
			funds = append(funds, w)
		} else {
			sub.withdrawals = append(sub.withdrawals, w)
		}
	}

	var (
		ckb   uint64
		sudts []*sudtFund
	)
	sudtOf := func(typeHash gw.Bytes32) *sudtFund {
		for _, f := range sudts {
			if f.script.Hash() == typeHash {
				return f
			}
		}
		return nil
	}
	for _, c := range funds {
		ckb += c.cell.Capacity
		if c.cell.Type == nil {
			continue
		}
		f := sudtOf(c.cell.Type.Hash())
		if f == nil {
			f = &sudtFund{script: *c.cell.Type, amount: new(uint256.Int)}
			sudts = append(sudts, f)
		}
		f.amount.Add(f.amount, c.cell.SUDTAmount())
	}

	for i, w := range withdrawals {
		raw := w.Raw()
		if ckb < raw.Capacity {
			return nil, errors.Errorf("withdrawal %d: custodians short of capacity", i)
		}
		ckb -= raw.Capacity
		lock, err := l.lock(l.config.WithdrawalScriptTypeHash, &rollup.WithdrawalLockArgs{
			AccountScriptHash:     raw.AccountScriptHash,
			WithdrawalBlockHash:   hash,
			WithdrawalBlockNumber: num,
			OwnerLockHash:         raw.OwnerLockHash,
		})
		if err != nil {
			return nil, err
		}
		cell := &rollup.Cell{Capacity: raw.Capacity, Lock: lock}
		if !raw.SUDTScriptHash.IsZero() {
			f := sudtOf(raw.SUDTScriptHash)
			if f == nil || f.amount.Lt(raw.Amount) {
				return nil, errors.Errorf("withdrawal %d: custodians short of sudt", i)
			}
			f.amount.Sub(f.amount, raw.Amount)
			le, err := codec.U128ToLE(raw.Amount)
			if err != nil {
				return nil, err
			}
			typ := f.script
			cell.Type, cell.Data = &typ, le[:]
		}
		sub.ctx.Outputs = append(sub.ctx.Outputs, cell)
		sub.withdrawals = append(sub.withdrawals, &liveCell{cell: cell, height: l.height + 1, number: num, blockHash: hash})
	}

	// change
	for _, f := range sudts {
		if f.amount.IsZero() {
			continue
		}
		if ckb < sudtCellCapacity {
			return nil, errors.New("custodians short of capacity for sudt change")
		}
		ckb -= sudtCellCapacity
		le, err := codec.U128ToLE(f.amount)
		if err != nil {
			return nil, err
		}
		typ := f.script
		change, err := l.reserveCustodian(&rollup.Cell{Capacity: sudtCellCapacity, Type: &typ, Data: le[:]})
		if err != nil {
			return nil, err
		}
		sub.ctx.Outputs = append(sub.ctx.Outputs, change.cell)
		sub.custodians = append(sub.custodians, change)
	}
	if ckb > 0 {
		change, err := l.reserveCustodian(&rollup.Cell{Capacity: ckb})
		if err != nil {
			return nil, err
		}
		sub.ctx.Outputs = append(sub.ctx.Outputs, change.cell)
		sub.custodians = append(sub.custodians, change)
	}

	if l.stake != nil {
		sub.ctx.Inputs = append(sub.ctx.Inputs, l.input(l.stake))
	}
	header := blk.Header()
	stakeLock, err := l.lock(l.config.StakeScriptTypeHash, &rollup.StakeLockArgs{
		OwnerLockHash:    header.StakeCellOwnerLockHash(),
		StakeBlockNumber: num,
	})
	if err != nil {
		return nil, err
	}
	sub.stake = &liveCell{
		cell:      &rollup.Cell{Capacity: l.config.RequiredStakingCapacity, Lock: stakeLock},
		height:    l.height + 1,
		number:    num,
		blockHash: hash,
	}
	sub.ctx.Outputs = append(sub.ctx.Outputs, sub.stake.cell)

	for _, d := range l.deposits {
		if !used[d] {
			sub.deposits = append(sub.deposits, d)
		}
	}
	sub.deposits = append(sub.deposits, redeposits...)
	return sub, nil
}

// Challenge implements Challenger. The owner lock receives the rewards of the challenge.
func (l *Loopback) Challenge(_ context.Context, action *rollup.EnterChallenge, target *rollup.ChallengeTarget) (*block.GlobalState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, err := l.lock(l.config.ChallengeScriptTypeHash, &rollup.ChallengeLockArgs{
		Target:              *target,
		RewardsReceiverLock: l.options.OwnerLock,
	})
	if err != nil {
		return nil, err
	}
	cell := &rollup.Cell{Capacity: l.config.RequiredChallengeCapacity, Lock: lock}
	next, err := l.machine.Apply(l.gs, action, &rollup.Context{Outputs: []*rollup.Cell{cell}})
	if err != nil {
		return nil, err
	}
	l.height++
	l.gs = next
	l.challenge = &liveCell{cell: cell, height: l.height, number: target.BlockNumber, blockHash: target.BlockHash}
	logger.Info("challenge entered", "block", target.BlockNumber, "type", target.TargetType, "index", target.TargetIndex)
	return next, nil
}

// Revert implements Challenger. The stake of the reverted blocks is split between the burn lock
// and the owner lock, which also takes back the challenge capacity.
func (l *Loopback) Revert(_ context.Context, action *rollup.Revert) (*block.GlobalState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.challenge == nil {
		return nil, errors.New("no challenge")
	}
	if l.stake == nil {
		return nil, errors.New("no stake to forfeit")
	}
	burn, reward := l.config.BurnShare(l.stake.cell.Capacity)
	ctx := &rollup.Context{
		Inputs: []*rollup.Input{l.input(l.challenge), l.input(l.stake)},
		Outputs: []*rollup.Cell{
			{Capacity: burn, Lock: l.options.BurnLock},
			{Capacity: reward + l.challenge.cell.Capacity, Lock: l.options.OwnerLock},
		},
	}
	next, err := l.machine.Apply(l.gs, action, ctx)
	if err != nil {
		return nil, err
	}
	l.height++
	l.gs = next
	l.challenge, l.stake = nil, nil
	for _, h := range action.Headers {
		l.reverted[h.Hash()] = true
	}
	logger.Info("blocks reverted", "from", action.Headers[0].Number(), "count", len(action.Headers))
	return next, nil
}
