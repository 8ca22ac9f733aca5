// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package testchain

import (
	"github.com/holiman/uint256"

	"github.com/godwokenrises/godwoken-sub004/builtin"
	"github.com/godwokenrises/godwoken-sub004/genesis"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

// Fee paid by the requests built here, in CKB.
const Fee = 1_000_000

// WithdrawalOwnerLockHash is the owner lock hash of built withdrawals.
var WithdrawalOwnerLockHash = gw.Blake2b([]byte("owner"))

// RegAddr returns the ETH registry address of addr.
func RegAddr(addr gw.Address) gw.RegistryAddress {
	return gw.NewRegistryAddress(gw.ETHRegistryID, addr[:])
}

// AccountID returns the account id of the dev account at index.
func AccountID(index int) uint32 {
	return uint32(3 + index)
}

// EOAScript returns the EOA script of addr.
func (c *Chain) EOAScript(addr gw.Address) gw.Script {
	return *gw.NewEOAScript(c.config.EOACodeHash, c.config.RollupScriptHash, addr)
}

// Transfer builds a CKB transfer from the dev account at index from.
func (c *Chain) Transfer(from int, nonce uint32, to gw.Address, amount uint64) *tx.Transaction {
	trx := tx.NewBuilder(c.config.ChainID).
		From(AccountID(from)).
		To(gw.CKBSUDTAccountID).
		Nonce(nonce).
		Args(builtin.EncodeArgs(&builtin.SUDTTransfer{
			To:     RegAddr(to),
			Amount: uint256.NewInt(amount),
			Fee:    builtin.NewFee(gw.ETHRegistryID, Fee),
		})).
		Build()
	return tx.MustSign(trx, c.config.RollupScriptHash, genesis.DevAccounts()[from].PrivateKey)
}

// Withdrawal builds a CKB withdrawal of the dev account at index from.
func (c *Chain) Withdrawal(from int, nonce uint32, capacity uint64) *tx.Withdrawal {
	acc := genesis.DevAccounts()[from]
	script := c.EOAScript(acc.Address)
	w, err := tx.SignWithdrawal(tx.NewWithdrawal(tx.RawWithdrawal{
		Nonce:             nonce,
		ChainID:           c.config.ChainID,
		Capacity:          capacity,
		Amount:            new(uint256.Int),
		AccountScriptHash: script.Hash(),
		RegistryID:        gw.ETHRegistryID,
		OwnerLockHash:     WithdrawalOwnerLockHash,
		Fee:               uint256.NewInt(Fee),
	}), c.config.RollupScriptHash, acc.PrivateKey)
	if err != nil {
		panic(err)
	}
	return w
}

// Deposit builds a CKB deposit to the EOA of addr.
func (c *Chain) Deposit(to gw.Address, capacity uint64) *tx.Deposit {
	return &tx.Deposit{
		Capacity:   capacity,
		Amount:     new(uint256.Int),
		Script:     c.EOAScript(to),
		RegistryID: gw.ETHRegistryID,
	}
}
