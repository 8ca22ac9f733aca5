// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package blocks

import (
	"github.com/godwokenrises/godwoken-sub004/api/types"
)

// JSONExpandedBlock a block with bodies and receipts.
type JSONExpandedBlock struct {
	*types.Block
	Transactions []*JSONEmbeddedTx   `json:"transactions"`
	Withdrawals  []*types.Withdrawal `json:"withdrawals"`
}

// JSONEmbeddedTx a transaction with its receipt.
type JSONEmbeddedTx struct {
	*types.Transaction
	Receipt *types.Receipt `json:"receipt"`
}

// JSONLastSynced the last block confirmed by the base chain.
type JSONLastSynced struct {
	Number uint64 `json:"number"`
}
