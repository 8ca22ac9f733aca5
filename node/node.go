// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/cheggaaa/pb.v1"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/co"
	"github.com/godwokenrises/godwoken-sub004/consensus"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/health"
	"github.com/godwokenrises/godwoken-sub004/kv"
	"github.com/godwokenrises/godwoken-sub004/log"
	"github.com/godwokenrises/godwoken-sub004/logdb"
	"github.com/godwokenrises/godwoken-sub004/rollup"
	"github.com/godwokenrises/godwoken-sub004/state"
	"github.com/godwokenrises/godwoken-sub004/tx"
	"github.com/godwokenrises/godwoken-sub004/txpool"
)

var logger = log.WithContext("pkg", "node")

const (
	defaultPollInterval = time.Second / 2
	logSyncBatch        = 1000
)

// Options options of the node.
type Options struct {
	// BlockInterval is the interval blocks are produced at. A full mem block is produced at once.
	BlockInterval time.Duration
	// PollInterval is the interval the base chain is polled at.
	PollInterval time.Duration
	// StashSize caps the stashed requests.
	StashSize int
	// Verify enables replaying committed blocks and challenging bad ones.
	Verify bool
}

// Node runs the block producer on top of the base chain.
type Node struct {
	goes      co.Goes
	options   Options
	repo      *chain.Repository
	stater    *state.Stater
	pool      *txpool.TxPool
	logDB     *logdb.LogDB
	baseChain BaseChain
	cons      *consensus.Consensus
	health    *health.Health
	stash     *txStash

	// owned by the producer loop
	logWriter *logdb.Writer
	reverted  []gw.Bytes32
	halted    bool
	challenge *rollup.ChallengeTarget
	verified  uint64
}

// New creates a node. stashStore may be nil to disable the tx stash.
func New(
	repo *chain.Repository,
	stater *state.Stater,
	pool *txpool.TxPool,
	logDB *logdb.LogDB,
	baseChain BaseChain,
	cons *consensus.Consensus,
	h *health.Health,
	stashStore kv.Store,
	options Options,
) *Node {
	if options.PollInterval <= 0 {
		options.PollInterval = defaultPollInterval
	}
	n := &Node{
		options:   options,
		repo:      repo,
		stater:    stater,
		pool:      pool,
		logDB:     logDB,
		baseChain: baseChain,
		cons:      cons,
		health:    h,
		verified:  repo.Tip().GlobalState.LastFinalizedBlockNumber,
	}
	if stashStore != nil && options.StashSize > 0 {
		n.stash = newTxStash(stashStore, options.StashSize)
	}
	return n
}

// Run starts the loops of the node and blocks until ctx is canceled.
func (n *Node) Run(ctx context.Context) error {
	defer n.goes.Wait()

	w, err := n.logDB.NewWriter()
	if err != nil {
		return err
	}
	n.logWriter = w
	if err := n.syncLogDB(ctx); err != nil {
		return errors.WithMessage(err, "sync log db")
	}

	tip := n.repo.Tip().Block
	n.health.NewTip(tip.Header().Number(), tip.Hash())

	if n.stash != nil {
		txEvCh := make(chan *txpool.TxEvent, 10)
		sub := n.pool.SubscribeTxEvent(txEvCh)
		n.goes.Go(func() {
			defer sub.Unsubscribe()
			n.txStashLoop(ctx, txEvCh)
		})

		txs, withdrawals := n.stash.LoadAll()
		n.pool.AddBatch(txs)
		for _, w := range withdrawals {
			_ = n.pool.AddWithdrawal(w)
		}
		logger.Debug("stashed requests loaded", "txs", len(txs), "withdrawals", len(withdrawals))
	}
	n.goes.Go(func() { n.producerLoop(ctx) })
	return nil
}

// syncLogDB indexes the logs of blocks the log db missed, e.g. after a crash.
func (n *Node) syncLogDB(ctx context.Context) error {
	newest, err := n.logDB.NewestBlockHash()
	if err != nil {
		return err
	}
	var from uint64
	if !newest.IsZero() {
		num, err := n.repo.GetBlockNumber(newest)
		switch {
		case err == nil:
			from = num + 1
		case n.repo.IsNotFound(err):
			// logs of reverted blocks
		default:
			return err
		}
	}
	if err := n.logWriter.Truncate(from); err != nil {
		return err
	}
	tip := n.repo.Tip().Block.Header().Number()
	if from > tip {
		return n.logWriter.Commit()
	}
	logger.Info("indexing logs", "from", from, "to", tip)

	bar := pb.New64(int64(tip)+1).
		Set64(int64(from)).
		SetMaxWidth(90).
		Start()
	defer func() { bar.NotPrint = true }()

	for num := from; num <= tip; num++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		blk, err := n.repo.GetBlock(num)
		if err != nil {
			return err
		}
		receipts, err := n.repo.GetBlockReceipts(num)
		if err != nil {
			return err
		}
		if err := n.logWriter.Write(blk, receipts); err != nil {
			return err
		}
		if n.logWriter.UncommittedCount() > logSyncBatch {
			if err := n.logWriter.Commit(); err != nil {
				return err
			}
		}
		bar.Add64(1)
	}
	if err := n.logWriter.Commit(); err != nil {
		return err
	}
	bar.Finish()
	return nil
}

func (n *Node) txStashLoop(ctx context.Context, txEvCh <-chan *txpool.TxEvent) {
	logger.Debug("enter tx stash loop")
	defer logger.Debug("leave tx stash loop")

	for {
		select {
		case <-ctx.Done():
			return
		case txEv := <-txEvCh:
			var err error
			if txEv.Tx != nil {
				err = n.stash.Save(txEv.Tx)
			} else {
				err = n.stash.SaveWithdrawal(txEv.Withdrawal)
			}
			if err != nil {
				logger.Warn("stash request", "err", err)
			}
		}
	}
}

func (n *Node) producerLoop(ctx context.Context) {
	logger.Debug("enter producer loop")
	defer logger.Debug("leave producer loop")

	blockTicker := time.NewTicker(n.options.BlockInterval)
	defer blockTicker.Stop()
	pollTicker := time.NewTicker(n.options.PollInterval)
	defer pollTicker.Stop()

	for {
		due := false
		select {
		case <-ctx.Done():
			return
		case <-blockTicker.C:
			due = true
		case <-pollTicker.C:
		}

		if err := n.sync(ctx); err != nil {
			n.health.BaseChainSynced(false)
			logger.Warn("failed to sync base chain", "err", err)
			continue
		}
		n.health.BaseChainSynced(true)

		if n.options.Verify && !n.halted {
			if err := n.verify(ctx); err != nil {
				logger.Warn("failed to verify blocks", "err", err)
			}
		}
		if n.halted || !(due || n.pool.Full()) {
			continue
		}
		if err := n.produce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("failed to produce block", "err", err)
		}
	}
}

// sync follows the rollup cell: it reverts the blocks the rollup cell reverted, advances a
// matured challenge and pools the new deposits.
func (n *Node) sync(ctx context.Context) error {
	gs, err := n.baseChain.GlobalState(ctx)
	if err != nil {
		return errors.WithMessage(err, "global state")
	}
	tip := n.repo.Tip()
	if gs.TipBlockHash != tip.Block.Hash() {
		if gs.Block.Count == 0 || gs.Block.Count > tip.Block.Header().Number() {
			return errors.Errorf("rollup cell at unknown block %v", gs.TipBlockHash)
		}
		if err := n.revert(gs); err != nil {
			return errors.WithMessage(err, "revert")
		}
	}
	n.halted = gs.Status != block.StatusRunning
	if n.halted {
		if err := n.advanceChallenge(ctx); err != nil {
			return errors.WithMessage(err, "advance challenge")
		}
	}

	deposits, err := n.baseChain.CollectDeposits(ctx)
	if err != nil {
		return errors.WithMessage(err, "collect deposits")
	}
	if len(deposits) > 0 {
		n.pool.AddDeposits(deposits)
		logger.Debug("deposits collected", "count", len(deposits))
	}
	return nil
}

// revert reverts the local chain to the rollup cell, and pools the requests of the reverted
// blocks again.
func (n *Node) revert(gs *block.GlobalState) error {
	from := gs.Block.Count
	tipNum := n.repo.Tip().Block.Header().Number()

	var (
		txs         tx.Transactions
		withdrawals tx.Withdrawals
		hashes      []gw.Bytes32
	)
	for num := from; num <= tipNum; num++ {
		blk, err := n.repo.GetBlock(num)
		if err != nil {
			return err
		}
		for _, trx := range blk.Transactions() {
			txs = append(txs, trx)
			hashes = append(hashes, trx.Hash())
		}
		for _, w := range blk.Withdrawals() {
			withdrawals = append(withdrawals, w)
			hashes = append(hashes, w.Hash())
		}
	}

	reverted, err := n.repo.Revert(from, gs)
	if err != nil {
		return err
	}
	if err := n.logWriter.Truncate(from); err != nil {
		return err
	}
	if err := n.logWriter.Commit(); err != nil {
		return err
	}
	n.reverted = append(n.reverted, reverted...)
	n.verified = min(n.verified, from-1)
	metricRevertedBlocks().Add(int64(len(reverted)))

	tip := n.repo.Tip()
	n.pool.Forget(hashes)
	n.pool.Reset(tip)
	var requeued int
	for _, err := range n.pool.AddBatch(txs) {
		if err == nil {
			requeued++
		}
	}
	for _, w := range withdrawals {
		if n.pool.AddWithdrawal(w) == nil {
			requeued++
		}
	}
	n.health.NewTip(tip.Block.Header().Number(), tip.Block.Hash())
	logger.Warn("blocks reverted", "from", from, "to", tipNum, "requeued", requeued)
	return nil
}

// verify replays the blocks committed since the last call, and challenges the first bad one.
func (n *Node) verify(ctx context.Context) error {
	tip := n.repo.Tip().Block.Header().Number()
	for n.verified < tip {
		num := n.verified + 1
		target, err := n.cons.Verify(num)
		if err != nil {
			return errors.WithMessagef(err, "block %d", num)
		}
		n.verified = num
		if target != nil {
			return n.enterChallenge(ctx, target)
		}
	}
	return nil
}

func (n *Node) enterChallenge(ctx context.Context, target *rollup.ChallengeTarget) error {
	challenger, ok := n.baseChain.(Challenger)
	if !ok {
		logger.Warn("bad block found, base chain takes no challenge", "block", target.BlockNumber)
		return nil
	}
	action, err := n.cons.ChallengeOf(target)
	if err != nil {
		return err
	}
	if _, err := challenger.Challenge(ctx, action, target); err != nil {
		metricChallengeCount().AddWithLabel(1, map[string]string{"status": "rejected"})
		return errors.WithMessage(err, "challenge")
	}
	metricChallengeCount().AddWithLabel(1, map[string]string{"status": "entered"})
	n.challenge = target
	n.halted = true
	return nil
}

// advanceChallenge reverts the blocks of the node's own challenge once it matured.
func (n *Node) advanceChallenge(ctx context.Context) error {
	challenger, ok := n.baseChain.(Challenger)
	if !ok || n.challenge == nil {
		return nil
	}
	action, err := n.cons.RevertOf(n.challenge)
	if err != nil {
		return err
	}
	if _, err := challenger.Revert(ctx, action); err != nil {
		if rollup.IsRejected(err) {
			logger.Debug("challenge not matured", "err", err)
			return nil
		}
		return err
	}
	metricChallengeCount().AddWithLabel(1, map[string]string{"status": "reverted"})
	n.challenge = nil
	return nil
}

func (n *Node) produce(ctx context.Context) error {
	return evalBlockProduceMetrics(func() error {
		blk, err := n.pool.Package(func(blk *block.Block, stage *state.Stage, receipts tx.Receipts) error {
			return n.commit(ctx, blk, stage, receipts)
		})
		if err != nil {
			return err
		}
		metricBlockProducedTxs().AddWithLabel(int64(len(blk.Transactions())), map[string]string{"kind": "tx"})
		metricBlockProducedTxs().AddWithLabel(int64(len(blk.Withdrawals())), map[string]string{"kind": "withdrawal"})
		metricBlockProducedTxs().AddWithLabel(int64(len(blk.Deposits())), map[string]string{"kind": "deposit"})
		logger.Info("📦 new block produced",
			"number", blk.Header().Number(),
			"deposits", len(blk.Deposits()),
			"txs", len(blk.Transactions()),
			"withdrawals", len(blk.Withdrawals()),
			"hash", blk.Hash(),
		)
		return nil
	})
}

// commit submits blk to the base chain, then persists it.
func (n *Node) commit(ctx context.Context, blk *block.Block, stage *state.Stage, receipts tx.Receipts) error {
	num := blk.Header().Number()
	proof, err := n.repo.BlockProof([]uint64{num})
	if err != nil {
		return err
	}
	action := &rollup.SubmitBlock{Block: blk, BlockProof: proof}
	if len(n.reverted) > 0 {
		hashes := n.reverted[:min(len(n.reverted), rollup.MaxRevertedBlocks)]
		if action.RevertedBlockProof, err = n.repo.RevertedProof(hashes); err != nil {
			return err
		}
		action.RevertedBlockHashes = hashes
	}
	gs, err := n.baseChain.SubmitBlock(ctx, action)
	if err != nil {
		return errors.WithMessage(err, "submit block")
	}
	n.reverted = n.reverted[len(action.RevertedBlockHashes):]

	bulk := n.stater.Store().Bulk()
	if err := stage.Commit(bulk); err != nil {
		return errors.WithMessage(err, "commit state")
	}
	if err := bulk.Write(); err != nil {
		return errors.WithMessage(err, "commit state")
	}
	if err := n.repo.AddBlock(blk, receipts, gs); err != nil {
		return errors.WithMessage(err, "add block")
	}
	if err := n.repo.SetLastSynced(num); err != nil {
		return err
	}
	if err := n.logWriter.Write(blk, receipts); err != nil {
		return errors.WithMessage(err, "write logs")
	}
	if err := n.logWriter.Commit(); err != nil {
		return err
	}
	if n.stash != nil {
		if err := n.stash.Drop(blk); err != nil {
			logger.Warn("drop stashed requests", "err", err)
		}
	}
	n.health.NewTip(num, blk.Hash())
	return nil
}
