// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package txpool

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/builtin"
	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/co"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/log"
	"github.com/godwokenrises/godwoken-sub004/packer"
	"github.com/godwokenrises/godwoken-sub004/runtime"
	"github.com/godwokenrises/godwoken-sub004/state"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

const (
	// MaxTxSize max encoded size of a tx or withdrawal.
	MaxTxSize = 50_000

	knownCacheSize         = 32768
	prevalidateConcurrency = 16
)

var logger = log.WithContext("pkg", "txpool")

// Options options for tx pool.
type Options struct {
	MaxTxs                int    `yaml:"max_txs"`
	MaxWithdrawals        int    `yaml:"max_withdrawals"`
	QueueLimit            int    `yaml:"queue_limit"`
	QueueDrop             int    `yaml:"queue_drop"`
	MetaCyclesLimit       uint64 `yaml:"meta_cycles_limit"`
	SUDTCyclesLimit       uint64 `yaml:"sudt_cycles_limit"`
	WithdrawalCyclesLimit uint64 `yaml:"withdrawal_cycles_limit"`
}

// DefaultOptions returns the default pool options.
func DefaultOptions() Options {
	return Options{
		MaxTxs:                6000,
		MaxWithdrawals:        3000,
		QueueLimit:            DefaultQueueLimit,
		QueueDrop:             DefaultQueueDrop,
		MetaCyclesLimit:       20_000,
		SUDTCyclesLimit:       20_000,
		WithdrawalCyclesLimit: 20_000,
	}
}

// TxEvent will be posted when a tx or withdrawal is pooled.
type TxEvent struct {
	Tx         *tx.Transaction
	Withdrawal *tx.Withdrawal
}

// MemBlockEvent will be posted when the mem block is rebuilt.
type MemBlockEvent struct {
	Number   uint64 `json:"number"`
	Deposits int    `json:"deposits"`
	Txs      int    `json:"txs"`
}

// TxPool queues requests and keeps a mem block: the next block, executed eagerly on a snapshot
// of the tip. Pending queries are answered by the mem block state.
type TxPool struct {
	options Options
	config  *gw.Config
	repo    *chain.Repository
	stater  *state.Stater
	packer  *packer.Packer

	mu              sync.Mutex
	flow            *packer.Flow
	queue           *feeQueue
	all             map[gw.Bytes32]*txObject
	adopted         []*txObject
	withdrawals     []*txObject
	withdrawalNonce map[uint32]uint32
	deposits        tx.Deposits
	full            bool
	order           uint64
	txCount         int
	withdrawalCount int
	known           *lru.Cache

	ctx       context.Context
	cancel    func()
	txFeed    event.Feed
	blockFeed event.Feed
	scope     event.SubscriptionScope
	goes      co.Goes
}

// New create a new TxPool instance with a mem block on the repository tip.
// Close is required to be called at end.
func New(repo *chain.Repository, stater *state.Stater, pkr *packer.Packer, config *gw.Config, options Options) *TxPool {
	known, _ := lru.New(knownCacheSize)
	ctx, cancel := context.WithCancel(context.Background())
	pool := &TxPool{
		options:         options,
		config:          config,
		repo:            repo,
		stater:          stater,
		packer:          pkr,
		queue:           newFeeQueue(options.QueueLimit, options.QueueDrop),
		all:             make(map[gw.Bytes32]*txObject),
		withdrawalNonce: make(map[uint32]uint32),
		known:           known,
		ctx:             ctx,
		cancel:          cancel,
	}
	pool.resetLocked(repo.Tip())

	pool.goes.Go(pool.housekeeping)
	return pool
}

func (p *TxPool) housekeeping() {
	logger.Debug("enter housekeeping")
	defer logger.Debug("leave housekeeping")

	ticker := p.repo.NewTicker()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C():
			tip := p.repo.Tip()
			p.mu.Lock()
			if p.flow.Parent().Block.Hash() != tip.Block.Hash() {
				p.resetLocked(tip)
			}
			p.mu.Unlock()
		}
	}
}

// Close cleanup inner go routines.
func (p *TxPool) Close() {
	p.cancel()
	p.scope.Close()
	p.goes.Wait()
	logger.Debug("closed")
}

// SubscribeTxEvent receivers will receive pooled txs and withdrawals.
func (p *TxPool) SubscribeTxEvent(ch chan *TxEvent) event.Subscription {
	return p.scope.Track(p.txFeed.Subscribe(ch))
}

// SubscribeMemBlockEvent receivers will be notified of mem block rebuilds.
func (p *TxPool) SubscribeMemBlockEvent(ch chan *MemBlockEvent) event.Subscription {
	return p.scope.Track(p.blockFeed.Subscribe(ch))
}

// validateTxBasics runs static validation on a transaction.
func (p *TxPool) validateTxBasics(trx *tx.Transaction) error {
	if trx.ChainID() != p.config.ChainID {
		return badTxError{"chain id mismatch"}
	}
	if trx.Size() > MaxTxSize {
		return txRejectedError{"size too large"}
	}
	return nil
}

// isKnown checks the repository for hash. Must hold mu.
func (p *TxPool) isKnown(hash gw.Bytes32) (bool, error) {
	if p.known.Contains(hash) {
		return true, nil
	}
	if _, err := p.repo.GetLocation(hash); err != nil {
		if p.repo.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	p.known.Add(hash, struct{}{})
	return true, nil
}

// expectedNonce returns the nonce of the next request from sender, taking fetched withdrawals
// into account. Must hold mu.
func (p *TxPool) expectedNonce(st *state.State, sender uint32) (uint32, error) {
	nonce, err := st.GetNonce(sender)
	if err != nil {
		return 0, err
	}
	if n, ok := p.withdrawalNonce[sender]; ok && n > nonce {
		nonce = n
	}
	return nonce, nil
}

func (p *TxPool) cyclesLimitOf(backend builtin.Backend) uint64 {
	switch backend.Name() {
	case "meta-contract":
		return p.options.MetaCyclesLimit
	case "l2-sudt":
		return p.options.SUDTCyclesLimit
	default:
		return p.config.MaxCycles
	}
}

// checkBalance checks the CKB balance of the registry address of account id covers amount.
func checkBalance(st *state.State, id uint32, registryID uint32, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	hash, err := st.GetScriptHash(id)
	if err != nil {
		return err
	}
	addr, exist, err := st.GetRegistryAddressByScriptHash(registryID, hash)
	if err != nil {
		return err
	}
	if !exist {
		return txRejectedError{"no registry address to pay"}
	}
	balance, err := st.GetSUDTBalance(gw.CKBSUDTAccountID, addr)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		return txRejectedError{"insufficient balance"}
	}
	return nil
}

// Add adds a new tx into pool.
// It's not assumed as an error if the tx to be added is already in the pool.
func (p *TxPool) Add(trx *tx.Transaction) error {
	return p.add(trx, false)
}

// AddBatch adds txs, verifying their signatures in parallel against the tip state first.
func (p *TxPool) AddBatch(txs tx.Transactions) []error {
	var (
		tip      = p.repo.Tip()
		verified = make([]bool, len(txs))
		g        errgroup.Group
	)
	g.SetLimit(prevalidateConcurrency)
	for i, trx := range txs {
		g.Go(func() error {
			if p.validateTxBasics(trx) != nil {
				return nil
			}
			st := p.stater.NewState(tip.GlobalState.Account)
			verified[i] = runtime.VerifySignature(p.config, st, trx) == nil
			return nil
		})
	}
	_ = g.Wait()

	errs := make([]error, len(txs))
	for i, trx := range txs {
		errs[i] = p.add(trx, verified[i])
	}
	return errs
}

func (p *TxPool) add(trx *tx.Transaction, verified bool) (err error) {
	defer func() {
		if err != nil && !IsKnownTx(err) {
			metricBadTxCounter().AddWithLabel(1, map[string]string{"type": "tx"})
		}
	}()
	if err := p.validateTxBasics(trx); err != nil {
		return err
	}
	hash := trx.Hash()

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.all[hash]; ok {
		return nil
	}
	if known, err := p.isKnown(hash); err != nil {
		return err
	} else if known {
		return errKnownTx
	}
	if p.txCount >= p.options.MaxTxs {
		return txRejectedError{"pool is full"}
	}

	rt := p.flow.Runtime()
	st := rt.State()
	if !verified {
		if err := runtime.VerifySignature(p.config, st, trx); err != nil {
			return badTxError{err.Error()}
		}
	}
	nonce, err := p.expectedNonce(st, trx.FromID())
	if err != nil {
		return err
	}
	if trx.Nonce() < nonce {
		return badTxError{"stale nonce"}
	}
	backend, err := rt.Backend(trx.ToID())
	if err != nil {
		return badTxError{err.Error()}
	}
	fee := backend.Fee(trx.Args())
	if err := checkBalance(st, trx.FromID(), fee.RegistryID, fee.Amount); err != nil {
		return err
	}

	cyclesLimit := p.cyclesLimitOf(backend)
	obj := newTxObject(trx, feeRate(fee.Amount, cyclesLimit), cyclesLimit)
	p.pushLocked(obj)
	if err := p.refillLocked(); err != nil {
		return err
	}
	if obj.dropped != "" {
		return txRejectedError{obj.dropped}
	}
	logger.Trace("tx added", "hash", hash, "nonce", trx.Nonce())
	p.goes.Go(func() {
		p.txFeed.Send(&TxEvent{Tx: trx})
	})
	return nil
}

// AddWithdrawal adds a new withdrawal into pool. Withdrawals are applied at the end of the block.
func (p *TxPool) AddWithdrawal(w *tx.Withdrawal) (err error) {
	defer func() {
		if err != nil && !IsKnownTx(err) {
			metricBadTxCounter().AddWithLabel(1, map[string]string{"type": "withdrawal"})
		}
	}()
	raw := w.Raw()
	if raw.ChainID != p.config.ChainID {
		return badTxError{"chain id mismatch"}
	}
	if w.Size() > MaxTxSize {
		return txRejectedError{"size too large"}
	}
	hash := w.Hash()

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.all[hash]; ok {
		return nil
	}
	if known, err := p.isKnown(hash); err != nil {
		return err
	} else if known {
		return errKnownTx
	}
	if p.withdrawalCount >= p.options.MaxWithdrawals {
		return txRejectedError{"withdrawal pool is full"}
	}

	st := p.flow.State()
	sender, err := runtime.VerifyWithdrawalSignature(p.config, st, w)
	if err != nil {
		return badTxError{err.Error()}
	}
	nonce, err := p.expectedNonce(st, sender)
	if err != nil {
		return err
	}
	if raw.Nonce < nonce {
		return badTxError{"stale nonce"}
	}
	total := new(uint256.Int).SetUint64(raw.Capacity)
	if _, overflow := total.AddOverflow(total, raw.Fee); overflow {
		return badTxError{"capacity overflow"}
	}
	if err := checkBalance(st, sender, raw.RegistryID, total); err != nil {
		return err
	}

	cyclesLimit := p.options.WithdrawalCyclesLimit
	obj := newWithdrawalObject(w, sender, feeRate(raw.Fee, cyclesLimit), cyclesLimit)
	p.pushLocked(obj)
	if err := p.refillLocked(); err != nil {
		return err
	}
	if obj.dropped != "" {
		return txRejectedError{obj.dropped}
	}
	logger.Trace("withdrawal added", "hash", hash, "nonce", raw.Nonce)
	p.goes.Go(func() {
		p.txFeed.Send(&TxEvent{Withdrawal: w})
	})
	return nil
}

// AddDeposits queues deposits collected from the base chain and rebuilds the mem block so that
// they come first.
func (p *TxPool) AddDeposits(deposits tx.Deposits) {
	if len(deposits) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.deposits = append(p.deposits, deposits...)
	p.resetLocked(p.flow.Parent())
}

func (p *TxPool) pushLocked(obj *txObject) {
	p.order++
	obj.order = p.order
	p.all[obj.hash] = obj
	if obj.isWithdrawal() {
		p.withdrawalCount++
	} else {
		p.txCount++
	}
	metricPoolGauge().AddWithLabel(1, map[string]string{"type": obj.kind()})
	p.requeueLocked(obj)
}

func (p *TxPool) requeueLocked(obj *txObject) {
	for _, dropped := range p.queue.Add(obj) {
		p.removeLocked(dropped, "queue full")
	}
}

func (p *TxPool) removeLocked(obj *txObject, reason string) {
	if _, ok := p.all[obj.hash]; !ok {
		return
	}
	delete(p.all, obj.hash)
	obj.dropped = reason
	if obj.isWithdrawal() {
		p.withdrawalCount--
	} else {
		p.txCount--
	}
	metricPoolGauge().AddWithLabel(-1, map[string]string{"type": obj.kind()})
	logger.Trace("request removed", "kind", obj.kind(), "hash", obj.hash, "reason", reason)
}

// refillLocked moves queued requests into the mem block until it's full.
func (p *TxPool) refillLocked() error {
	if p.full || p.queue.Len() == 0 {
		return nil
	}
	st := p.flow.State()
	fetched, dropped, err := p.queue.Fetch(func(sender uint32) (uint32, error) {
		return p.expectedNonce(st, sender)
	}, p.queue.Len())
	for _, obj := range dropped {
		p.removeLocked(obj, "nonce gap or stale nonce")
	}

	for i, obj := range fetched {
		if obj.isWithdrawal() {
			p.withdrawals = append(p.withdrawals, obj)
			p.withdrawalNonce[obj.sender] = obj.nonce + 1
			continue
		}
		if _, ok := p.withdrawalNonce[obj.sender]; ok {
			// the sender withdraws at the end of this block
			p.requeueLocked(obj)
			continue
		}
		_, adoptErr := p.flow.Adopt(obj.tx)
		switch {
		case adoptErr == nil:
			p.adopted = append(p.adopted, obj)
		case packer.IsBlockFull(adoptErr), packer.IsCyclesPoolExhausted(adoptErr):
			p.full = true
			for _, rest := range fetched[i:] {
				p.requeueLocked(rest)
			}
			return err
		case packer.IsKnownTx(adoptErr):
			p.known.Add(obj.hash, struct{}{})
			p.removeLocked(obj, "known")
		case packer.IsBadTx(adoptErr):
			p.removeLocked(obj, adoptErr.Error())
		default:
			logger.Error("failed to adopt tx", "hash", obj.hash, "err", adoptErr)
			p.removeLocked(obj, "fatal")
		}
	}
	return err
}

// resetLocked rebuilds the mem block on tip: pending deposits first, then every request of the
// previous mem block back through the queue.
func (p *TxPool) resetLocked(tip *chain.Tip) {
	start := time.Now()
	for _, obj := range p.adopted {
		p.requeueLocked(obj)
	}
	for _, obj := range p.withdrawals {
		p.requeueLocked(obj)
	}
	p.adopted, p.withdrawals = nil, nil
	clear(p.withdrawalNonce)
	p.full = false

	p.flow = p.packer.Schedule(tip, uint64(time.Now().UnixMilli()))
	kept := make(tx.Deposits, 0, len(p.deposits))
	for i, d := range p.deposits {
		if err := p.flow.Deposit(d); err != nil {
			if packer.IsBlockFull(err) {
				kept = append(kept, p.deposits[i:]...)
				break
			}
			logger.Warn("deposit dropped", "err", err)
			continue
		}
		kept = append(kept, d)
	}
	p.deposits = kept

	if err := p.refillLocked(); err != nil {
		logger.Warn("failed to refill mem block", "err", err)
	}
	metricMemBlockReset().Observe(time.Since(start).Milliseconds())

	ev := &MemBlockEvent{
		Number:   p.flow.BlockInfo().Number,
		Deposits: len(p.flow.Deposits()),
		Txs:      len(p.flow.Transactions()),
	}
	p.goes.Go(func() {
		p.blockFeed.Send(ev)
	})
	logger.Debug("mem block reset", "number", ev.Number, "deposits", ev.Deposits, "txs", ev.Txs,
		"queued", p.queue.Len(), "elapsed", time.Since(start))
}

// Reset rebuilds the mem block on tip.
func (p *TxPool) Reset(tip *chain.Tip) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked(tip)
}

// Package applies the fetched withdrawals, packs the mem block and hands it to commit. On success
// the mem block is rebuilt on the repository tip, otherwise on the same parent.
func (p *TxPool) Package(commit func(blk *block.Block, stage *state.Stage, receipts tx.Receipts) error) (*block.Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var applied, rest []*txObject
	for i, obj := range p.withdrawals {
		err := p.flow.Withdraw(obj.withdrawal)
		switch {
		case err == nil:
			applied = append(applied, obj)
			continue
		case packer.IsBlockFull(err):
			rest = p.withdrawals[i:]
		case packer.IsKnownTx(err):
			p.known.Add(obj.hash, struct{}{})
			p.removeLocked(obj, "known")
			continue
		case packer.IsBadTx(err):
			p.removeLocked(obj, err.Error())
			continue
		default:
			p.withdrawals = append(applied, p.withdrawals[i:]...)
			p.resetLocked(p.flow.Parent())
			return nil, err
		}
		break
	}

	blk, stage, receipts, err := p.flow.Pack()
	if err == nil {
		err = commit(blk, stage, receipts)
	}
	if err != nil {
		p.withdrawals = append(applied, rest...)
		p.resetLocked(p.flow.Parent())
		return nil, err
	}

	p.deposits = p.deposits[len(blk.Deposits()):]
	for _, obj := range append(p.adopted, applied...) {
		p.known.Add(obj.hash, struct{}{})
		p.removeLocked(obj, "packed")
	}
	p.adopted, p.withdrawals = nil, rest
	p.resetLocked(p.repo.Tip())
	return blk, nil
}

// Forget drops hashes from the known cache, so requests of reverted blocks can be pooled again.
func (p *TxPool) Forget(hashes []gw.Bytes32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range hashes {
		p.known.Remove(h)
	}
}

// Full reports whether the mem block reached a cap, in which case it should be packaged now.
func (p *TxPool) Full() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.full
}

// Len returns the number of pooled txs and withdrawals, including those in the mem block.
func (p *TxPool) Len() (txs int, withdrawals int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.txCount, p.withdrawalCount
}

// Get returns the pooled tx of hash.
func (p *TxPool) Get(hash gw.Bytes32) *tx.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	if obj, ok := p.all[hash]; ok {
		return obj.tx
	}
	return nil
}

// GetWithdrawal returns the pooled withdrawal of hash.
func (p *TxPool) GetWithdrawal(hash gw.Bytes32) *tx.Withdrawal {
	p.mu.Lock()
	defer p.mu.Unlock()
	if obj, ok := p.all[hash]; ok {
		return obj.withdrawal
	}
	return nil
}

// Receipt returns the receipt of a tx executed in the mem block.
func (p *TxPool) Receipt(hash gw.Bytes32) (*tx.Receipt, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flow.Receipt(hash)
}

// Parent returns the block the mem block builds on.
func (p *TxPool) Parent() *chain.Tip {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flow.Parent()
}

// View runs fn on the mem block state. fn must not modify the state.
func (p *TxPool) View(fn func(st *state.State) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn(p.flow.State())
}

// Simulate executes trx on the mem block state and reverts its effects.
func (p *TxPool) Simulate(trx *tx.Transaction) (*tx.Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flow.Runtime().Simulate(trx)
}
