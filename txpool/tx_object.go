// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package txpool

import (
	"github.com/holiman/uint256"

	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

// txObject a pooled transaction or withdrawal with its fee rate.
type txObject struct {
	tx         *tx.Transaction
	withdrawal *tx.Withdrawal

	hash        gw.Bytes32
	sender      uint32
	nonce       uint32
	feeRate     *uint256.Int
	cyclesLimit uint64
	order       uint64 // arrival sequence
	dropped     string // reason of removal from the pool
}

func newTxObject(trx *tx.Transaction, feeRate *uint256.Int, cyclesLimit uint64) *txObject {
	return &txObject{
		tx:          trx,
		hash:        trx.Hash(),
		sender:      trx.FromID(),
		nonce:       trx.Nonce(),
		feeRate:     feeRate,
		cyclesLimit: cyclesLimit,
	}
}

func newWithdrawalObject(w *tx.Withdrawal, sender uint32, feeRate *uint256.Int, cyclesLimit uint64) *txObject {
	return &txObject{
		withdrawal:  w,
		hash:        w.Hash(),
		sender:      sender,
		nonce:       w.Nonce(),
		feeRate:     feeRate,
		cyclesLimit: cyclesLimit,
	}
}

func (o *txObject) isWithdrawal() bool {
	return o.withdrawal != nil
}

func (o *txObject) kind() string {
	if o.isWithdrawal() {
		return "withdrawal"
	}
	return "tx"
}

// prior reports whether o is fetched before other: higher fee rate, then lower cycles limit,
// then lower nonce, then earlier arrival.
func (o *txObject) prior(other *txObject) bool {
	if c := o.feeRate.Cmp(other.feeRate); c != 0 {
		return c > 0
	}
	if o.cyclesLimit != other.cyclesLimit {
		return o.cyclesLimit < other.cyclesLimit
	}
	if o.nonce != other.nonce {
		return o.nonce < other.nonce
	}
	return o.order < other.order
}

// feeRate returns fee / cyclesLimit.
func feeRate(fee *uint256.Int, cyclesLimit uint64) *uint256.Int {
	if fee == nil || cyclesLimit == 0 {
		return new(uint256.Int)
	}
	return new(uint256.Int).Div(fee, uint256.NewInt(cyclesLimit))
}
