// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accounts

import (
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/godwokenrises/godwoken-sub004/gw"
)

// Balance for marshal sUDT balance.
type Balance struct {
	AccountID uint32                `json:"accountId"`
	Address   string                `json:"address"`
	SUDTID    uint32                `json:"sudtId"`
	Balance   *math.HexOrDecimal256 `json:"balance"`
}

// Nonce for marshal account nonce.
type Nonce struct {
	AccountID uint32 `json:"accountId"`
	Nonce     uint32 `json:"nonce"`
}

// ScriptHash for marshal account script hash.
type ScriptHash struct {
	AccountID  uint32     `json:"accountId"`
	ScriptHash gw.Bytes32 `json:"scriptHash"`
}

// Storage for marshal account storage value.
type Storage struct {
	Value gw.Bytes32 `json:"value"`
}
