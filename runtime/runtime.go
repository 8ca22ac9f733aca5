// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/builtin"
	"github.com/godwokenrises/godwoken-sub004/builtin/sudt"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/log"
	"github.com/godwokenrises/godwoken-sub004/metrics"
	"github.com/godwokenrises/godwoken-sub004/state"
	"github.com/godwokenrises/godwoken-sub004/tx"
	"github.com/godwokenrises/godwoken-sub004/xenv"
)

var (
	logger = log.WithContext("pkg", "runtime")

	metricTxExecuted = metrics.LazyLoadCounterVec("runtime_tx_executed_count", []string{"result"})
	metricTxCycles   = metrics.LazyLoadHistogram("runtime_tx_cycles", []int64{10_000, 100_000, 1_000_000, 10_000_000, 100_000_000})
)

// Runtime executes layer2 requests of one block against a state.
type Runtime struct {
	config    *gw.Config
	backends  *builtin.Manager
	state     *state.State
	blockInfo *xenv.BlockInfo
}

// New create a Runtime object.
func New(config *gw.Config, backends *builtin.Manager, st *state.State, blockInfo *xenv.BlockInfo) *Runtime {
	return &Runtime{
		config:    config,
		backends:  backends,
		state:     st,
		blockInfo: blockInfo,
	}
}

func (rt *Runtime) State() *state.State        { return rt.state }
func (rt *Runtime) BlockInfo() *xenv.BlockInfo { return rt.blockInfo }
func (rt *Runtime) Backends() *builtin.Manager { return rt.backends }
func (rt *Runtime) Config() *gw.Config         { return rt.config }

// VerifySignature checks the transaction is signed by the owner of the sender account.
func VerifySignature(cfg *gw.Config, st *state.State, trx *tx.Transaction) error {
	return verifyOwner(cfg, st, trx.FromID(), tx.SigningMessage(cfg.RollupScriptHash, trx.Hash()), trx.Signature())
}

// VerifyWithdrawalSignature checks the withdrawal is signed by the owner of its account. Unlike
// VerifyWithdrawal it accepts any nonce.
func VerifyWithdrawalSignature(cfg *gw.Config, st *state.State, w *tx.Withdrawal) (uint32, error) {
	id, exist, err := st.GetAccountIDByScriptHash(w.AccountScriptHash())
	if err != nil {
		return 0, err
	}
	if !exist {
		return 0, txError(ErrScriptHashNotFound, "account %v", w.AccountScriptHash())
	}
	return id, verifyOwner(cfg, st, id, tx.SigningMessage(cfg.RollupScriptHash, w.Hash()), w.Signature())
}

func verifyOwner(cfg *gw.Config, st *state.State, id uint32, message gw.Bytes32, sig []byte) error {
	hash, err := st.GetScriptHash(id)
	if err != nil {
		return err
	}
	script, err := st.GetScript(hash)
	if err != nil {
		return err
	}
	if script == nil {
		return txError(ErrScriptHashNotFound, "account %d", id)
	}
	if script.CodeHash != cfg.EOACodeHash {
		return txError(ErrInvalidSignature, "account %d is not an EOA", id)
	}
	owner, ok := script.EOAAddress()
	if !ok {
		return txError(ErrInvalidSignature, "account %d has invalid EOA args", id)
	}
	signer, err := tx.RecoverSigner(message, sig)
	if err != nil {
		return txError(ErrInvalidSignature, "%v", err)
	}
	if signer != owner {
		return txError(ErrInvalidSignature, "signer %v is not the owner %v", signer, owner)
	}
	return nil
}

// ExecuteTransaction executes a transaction and returns its receipt. cyclesLimit is what's left
// of the block cycles pool.
//
// A transaction whose backend exits with a non-zero code is committed with a failure receipt: its
// effects are reverted, the declared fee is paid and the sender nonce is increased. A returned
// error means the transaction is excluded and the state is untouched.
func (rt *Runtime) ExecuteTransaction(trx *tx.Transaction, cyclesLimit uint64) (*tx.Receipt, error) {
	if trx.ChainID() != rt.config.ChainID {
		return nil, txError(ErrInvalidChainID, "%d", trx.ChainID())
	}
	nonce, err := rt.state.GetNonce(trx.FromID())
	if err != nil {
		return nil, err
	}
	if nonce != trx.Nonce() {
		return nil, &TransactionError{Kind: ErrNonce, Expected: nonce, Actual: trx.Nonce()}
	}
	if err := VerifySignature(rt.config, rt.state, trx); err != nil {
		return nil, err
	}

	receipt, err := rt.execute(trx, cyclesLimit)
	if err != nil {
		return nil, err
	}
	post, err := rt.state.Flush()
	if err != nil {
		return nil, err
	}
	receipt.PostState = post
	return receipt, nil
}

// Simulate executes a transaction without signature and nonce checks, and reverts its effects.
func (rt *Runtime) Simulate(trx *tx.Transaction) (*tx.Receipt, error) {
	if trx.ChainID() != rt.config.ChainID {
		return nil, txError(ErrInvalidChainID, "%d", trx.ChainID())
	}
	revision := rt.state.NewCheckpoint()
	defer rt.state.RevertTo(revision)
	return rt.execute(trx, rt.config.MaxCycles)
}

// Backend returns the backend of the account id.
func (rt *Runtime) Backend(id uint32) (builtin.Backend, error) {
	hash, err := rt.state.GetScriptHash(id)
	if err != nil {
		return nil, err
	}
	if hash.IsZero() {
		return nil, txError(ErrScriptHashNotFound, "account %d", id)
	}
	script, err := rt.state.GetScript(hash)
	if err != nil {
		return nil, err
	}
	if script == nil {
		return nil, txError(ErrScriptHashNotFound, "script %v", hash)
	}
	backend, ok := rt.backends.Get(script.CodeHash)
	if !ok {
		return nil, txError(ErrBackendNotFound, "code hash %v", script.CodeHash)
	}
	return backend, nil
}

func (rt *Runtime) execute(trx *tx.Transaction, cyclesLimit uint64) (*tx.Receipt, error) {
	backend, err := rt.Backend(trx.ToID())
	if err != nil {
		return nil, err
	}
	nonceBefore, err := rt.state.GetNonce(trx.FromID())
	if err != nil {
		return nil, err
	}

	budget := min(rt.config.MaxCycles, cyclesLimit)
	revision := rt.state.NewCheckpoint()
	env := xenv.New(rt.config, rt.state, rt.blockInfo, trx, budget)
	runErr := env.Charge(xenv.CyclesBackendBase)
	if runErr == nil {
		runErr = backend.Handle(env, trx.Args())
	}

	receipt := &tx.Receipt{
		TxWitnessHash: trx.WitnessHash(),
		Cycles:        env.Meter().Used(),
	}
	metricTxCycles().Observe(int64(receipt.Cycles))

	reject := func(e error) (*tx.Receipt, error) {
		rt.state.RevertTo(revision)
		metricTxExecuted().AddWithLabel(1, map[string]string{"result": "rejected"})
		return nil, e
	}

	switch {
	case runErr == nil:
		nonceAfter, err := rt.state.GetNonce(trx.FromID())
		if err != nil {
			return reject(err)
		}
		if nonceAfter <= nonceBefore {
			return reject(txError(ErrBackendMustIncreaseNonce, "backend %s", backend.Name()))
		}
		receipt.ReturnData = env.ReturnData()
		receipt.Logs = env.Logs()
		receipt.ReadDataHashes = env.ReadDataHashes()
		metricTxExecuted().AddWithLabel(1, map[string]string{"result": "success"})
		return receipt, nil
	case errors.Is(runErr, xenv.ErrExceededMaxReturnData):
		return reject(txError(ErrExceededMaxReturnData, "backend %s", backend.Name()))
	case errors.Is(runErr, xenv.ErrExceededMaxWriteData):
		return reject(txError(ErrExceededMaxWriteData, "backend %s", backend.Name()))
	case errors.Is(runErr, xenv.ErrExceededMaxReadData):
		return reject(txError(ErrExceededMaxReadData, "backend %s", backend.Name()))
	}

	code, ok := xenv.ExitCodeOf(runErr)
	if !ok {
		logger.Warn("backend failed", "backend", backend.Name(), "tx", trx.Hash(), "err", runErr)
		return reject(&FatalError{errors.WithMessagef(runErr, "tx %v", trx.Hash())})
	}
	if code == xenv.ExitExceededCycles && budget < rt.config.MaxCycles {
		return reject(txError(ErrExceededCycles, "cycles pool exhausted"))
	}
	if code == xenv.ExitSuccess {
		return reject(&TransactionError{Kind: ErrInvalidExitCode, ExitCode: code})
	}

	rt.state.RevertTo(revision)
	rt.state.NewCheckpoint()
	logs, err := rt.chargeFailure(trx.FromID(), backend.Fee(trx.Args()))
	if err != nil {
		return reject(err)
	}
	receipt.ExitCode = code
	receipt.Logs = logs
	metricTxExecuted().AddWithLabel(1, map[string]string{"result": "failed"})
	logger.Debug("tx failed", "tx", trx.Hash(), "exit", code, "err", runErr)
	return receipt, nil
}

// chargeFailure pays fee from the sender to the block producer and increases the sender nonce.
func (rt *Runtime) chargeFailure(sender uint32, fee builtin.Fee) ([]*tx.Log, error) {
	var logs []*tx.Log
	if !fee.IsZero() {
		hash, err := rt.state.GetScriptHash(sender)
		if err != nil {
			return nil, err
		}
		payer, exist, err := rt.state.GetRegistryAddressByScriptHash(fee.RegistryID, hash)
		if err != nil {
			return nil, err
		}
		if !exist {
			return nil, txError(ErrInsufficientBalance, "fee payer of account %d not registered", sender)
		}
		producer := rt.blockInfo.BlockProducer
		if err := rt.state.TransferSUDT(gw.CKBSUDTAccountID, payer, producer, fee.Amount); err != nil {
			if state.IsAmountOverflow(err) {
				return nil, txError(ErrInsufficientBalance, "fee %v", fee.Amount)
			}
			return nil, err
		}
		logs = append(logs, &tx.Log{
			AccountID:   gw.CKBSUDTAccountID,
			ServiceFlag: tx.LogSUDTPayFee,
			Data:        (&sudt.Log{From: payer, To: producer, Amount: fee.Amount}).Bytes(),
		})
	}
	if err := rt.increaseNonce(sender); err != nil {
		return nil, err
	}
	return logs, nil
}

func (rt *Runtime) increaseNonce(id uint32) error {
	nonce, err := rt.state.GetNonce(id)
	if err != nil {
		return err
	}
	if nonce == ^uint32(0) {
		return txError(ErrNonceOverflow, "account %d", id)
	}
	rt.state.SetNonce(id, nonce+1)
	return nil
}
