// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/txpool"
)

// BlockMessage block piped by websocket. Obsolete is set when a previously sent block is reverted.
type BlockMessage struct {
	Number          uint64     `json:"number"`
	Hash            gw.Bytes32 `json:"hash"`
	ParentHash      gw.Bytes32 `json:"parentHash"`
	Timestamp       uint64     `json:"timestamp"`
	PostStateRoot   gw.Bytes32 `json:"postStateRoot"`
	DepositCount    uint32     `json:"depositCount"`
	TxCount         uint32     `json:"txCount"`
	WithdrawalCount uint32     `json:"withdrawalCount"`
	Obsolete        bool       `json:"obsolete"`
}

func convertBlock(summary *chain.BlockSummary) *BlockMessage {
	header := summary.Header
	return &BlockMessage{
		Number:          header.Number(),
		Hash:            header.Hash(),
		ParentHash:      header.ParentHash(),
		Timestamp:       header.Timestamp(),
		PostStateRoot:   header.PostAccount().MerkleRoot,
		DepositCount:    uint32(len(summary.Deposits)),
		TxCount:         uint32(len(summary.Txs)),
		WithdrawalCount: uint32(len(summary.Withdrawals)),
	}
}

func obsoleteBlock(number uint64, hash gw.Bytes32) *BlockMessage {
	return &BlockMessage{Number: number, Hash: hash, Obsolete: true}
}

// PendingMessage request accepted by the pool.
type PendingMessage struct {
	Hash gw.Bytes32 `json:"hash"`
	Kind string     `json:"kind"`
	From uint32     `json:"from,omitempty"`
}

func convertPending(ev *txpool.TxEvent) *PendingMessage {
	if ev.Tx != nil {
		return &PendingMessage{Hash: ev.Tx.Hash(), Kind: "transaction", From: ev.Tx.FromID()}
	}
	return &PendingMessage{Hash: ev.Withdrawal.Hash(), Kind: "withdrawal"}
}
