// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"bytes"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/builtin/sudt"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/state"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

// ValidateDeposit checks the fields a deposit lock cannot enforce.
func ValidateDeposit(cfg *gw.Config, d *tx.Deposit) error {
	if !bytes.HasPrefix(d.Script.Args, cfg.RollupScriptHash[:]) {
		return errors.New("deposit script args must start with the rollup script hash")
	}
	if d.RegistryID != gw.ETHRegistryID {
		return errors.Errorf("unsupported registry %d", d.RegistryID)
	}
	if d.SUDTScriptHash.IsZero() && d.Amount != nil && !d.Amount.IsZero() {
		return errors.New("sudt amount without sudt script")
	}
	return nil
}

// accountOf returns the id of the account of script, creating it if missing.
func (rt *Runtime) accountOf(script *gw.Script) (uint32, error) {
	hash := script.Hash()
	id, exist, err := rt.state.GetAccountIDByScriptHash(hash)
	if err != nil || exist {
		return id, err
	}
	rt.state.InsertScript(script)
	return rt.state.CreateAccount(hash)
}

// ApplyDeposit credits a deposit. The depositor account and the sUDT account are created on the
// first deposit, and EOA accounts get their ethereum address registered.
func (rt *Runtime) ApplyDeposit(d *tx.Deposit) error {
	if err := ValidateDeposit(rt.config, d); err != nil {
		return err
	}
	if _, err := rt.accountOf(&d.Script); err != nil {
		return err
	}
	hash := d.Script.Hash()

	addr, exist, err := rt.state.GetRegistryAddressByScriptHash(d.RegistryID, hash)
	if err != nil {
		return err
	}
	if !exist {
		owner, ok := d.Script.EOAAddress()
		if d.Script.CodeHash != rt.config.EOACodeHash || !ok {
			return errors.Errorf("deposit to %v without registry address", hash)
		}
		addr = gw.NewRegistryAddress(d.RegistryID, owner[:])
		if err := rt.state.MappingRegistryAddress(addr, hash); err != nil {
			return errors.WithMessage(err, "register depositor")
		}
	}

	if err := rt.state.MintSUDT(gw.CKBSUDTAccountID, addr, uint256.NewInt(d.Capacity)); err != nil {
		return errors.WithMessage(err, "mint ckb")
	}
	if d.SUDTScriptHash.IsZero() || d.Amount == nil || d.Amount.IsZero() {
		return nil
	}
	sudtID, err := rt.accountOf(sudt.Script(rt.config, d.SUDTScriptHash))
	if err != nil {
		return err
	}
	return errors.WithMessage(rt.state.MintSUDT(sudtID, addr, d.Amount), "mint sudt")
}

// VerifyWithdrawal checks the chain id, nonce, signature and balances of a withdrawal.
func (rt *Runtime) VerifyWithdrawal(w *tx.Withdrawal) error {
	raw := w.Raw()
	if raw.ChainID != rt.config.ChainID {
		return txError(ErrInvalidChainID, "%d", raw.ChainID)
	}
	id, exist, err := rt.state.GetAccountIDByScriptHash(raw.AccountScriptHash)
	if err != nil {
		return err
	}
	if !exist {
		return txError(ErrScriptHashNotFound, "account %v", raw.AccountScriptHash)
	}
	nonce, err := rt.state.GetNonce(id)
	if err != nil {
		return err
	}
	if nonce != raw.Nonce {
		return &TransactionError{Kind: ErrNonce, Expected: nonce, Actual: raw.Nonce}
	}
	return verifyOwner(rt.config, rt.state, id, tx.SigningMessage(rt.config.RollupScriptHash, w.Hash()), w.Signature())
}

// ApplyWithdrawal verifies and applies a withdrawal: the fee goes to the block producer, capacity
// and amount are burned and the nonce is increased. On error the state is untouched.
func (rt *Runtime) ApplyWithdrawal(w *tx.Withdrawal) (err error) {
	if err := rt.VerifyWithdrawal(w); err != nil {
		return err
	}
	revision := rt.state.NewCheckpoint()
	defer func() {
		if err != nil {
			rt.state.RevertTo(revision)
		}
	}()

	raw := w.Raw()
	id, _, err := rt.state.GetAccountIDByScriptHash(raw.AccountScriptHash)
	if err != nil {
		return err
	}
	addr, exist, err := rt.state.GetRegistryAddressByScriptHash(raw.RegistryID, raw.AccountScriptHash)
	if err != nil {
		return err
	}
	if !exist {
		return txError(ErrInsufficientBalance, "account %d has no registry address", id)
	}

	insufficient := func(err error, what string) error {
		if state.IsAmountOverflow(err) {
			return txError(ErrInsufficientBalance, "%s", what)
		}
		return err
	}
	if !raw.Fee.IsZero() {
		if err := rt.state.TransferSUDT(gw.CKBSUDTAccountID, addr, rt.blockInfo.BlockProducer, raw.Fee); err != nil {
			return insufficient(err, "fee")
		}
	}
	if err := rt.state.BurnSUDT(gw.CKBSUDTAccountID, addr, uint256.NewInt(raw.Capacity)); err != nil {
		return insufficient(err, "capacity")
	}
	if !raw.SUDTScriptHash.IsZero() && !raw.Amount.IsZero() {
		sudtID, exist, err := rt.state.GetAccountIDByScriptHash(sudt.Script(rt.config, raw.SUDTScriptHash).Hash())
		if err != nil {
			return err
		}
		if !exist {
			return txError(ErrInsufficientBalance, "sudt %v", raw.SUDTScriptHash)
		}
		if err := rt.state.BurnSUDT(sudtID, addr, raw.Amount); err != nil {
			return insufficient(err, "amount")
		}
	}
	return rt.increaseNonce(id)
}
