// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package types

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/holiman/uint256"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

// Script for marshal script.
type Script struct {
	CodeHash gw.Bytes32    `json:"codeHash"`
	HashType byte          `json:"hashType"`
	Args     hexutil.Bytes `json:"args"`
}

// ConvertScript converts a script into its json form.
func ConvertScript(s *gw.Script) *Script {
	return &Script{s.CodeHash, s.HashType, s.Args}
}

// Deposit for marshal deposit.
type Deposit struct {
	Hash           gw.Bytes32            `json:"hash"`
	Capacity       uint64                `json:"capacity"`
	Amount         *math.HexOrDecimal256 `json:"amount"`
	SUDTScriptHash gw.Bytes32            `json:"sudtScriptHash"`
	Script         *Script               `json:"script"`
	RegistryID     uint32                `json:"registryId"`
}

// ConvertDeposit converts a deposit into its json form.
func ConvertDeposit(d *tx.Deposit) *Deposit {
	amount := d.Amount
	if amount == nil {
		amount = new(uint256.Int)
	}
	return &Deposit{
		Hash:           d.Hash(),
		Capacity:       d.Capacity,
		Amount:         (*math.HexOrDecimal256)(amount.ToBig()),
		SUDTScriptHash: d.SUDTScriptHash,
		Script:         ConvertScript(&d.Script),
		RegistryID:     d.RegistryID,
	}
}

// Block for marshal block summary.
type Block struct {
	Number                 uint64                `json:"number"`
	Hash                   gw.Bytes32            `json:"hash"`
	ParentHash             gw.Bytes32            `json:"parentHash"`
	Timestamp              uint64                `json:"timestamp"`
	BlockProducer          string                `json:"blockProducer"`
	StakeCellOwnerLockHash gw.Bytes32            `json:"stakeCellOwnerLockHash"`
	PrevAccount            gw.AccountMerkleState `json:"prevAccount"`
	PostAccount            gw.AccountMerkleState `json:"postAccount"`
	StateCheckpoints       []gw.Bytes32          `json:"stateCheckpoints"`
	TxWitnessRoot          gw.Bytes32            `json:"txWitnessRoot"`
	WithdrawalWitnessRoot  gw.Bytes32            `json:"withdrawalWitnessRoot"`
	Size                   uint64                `json:"size"`
	Finalized              bool                  `json:"isFinalized"`
	Deposits               []*Deposit            `json:"deposits"`
	Transactions           []gw.Bytes32          `json:"transactions"`
	Withdrawals            []gw.Bytes32          `json:"withdrawals"`
}

// ConvertBlockSummary converts a block summary into its json form.
func ConvertBlockSummary(summary *chain.BlockSummary, finalized bool) *Block {
	header := summary.Header
	deposits := make([]*Deposit, 0, len(summary.Deposits))
	for _, d := range summary.Deposits {
		deposits = append(deposits, ConvertDeposit(d))
	}
	return &Block{
		Number:                 header.Number(),
		Hash:                   header.Hash(),
		ParentHash:             header.ParentHash(),
		Timestamp:              header.Timestamp(),
		BlockProducer:          header.BlockProducer().String(),
		StakeCellOwnerLockHash: header.StakeCellOwnerLockHash(),
		PrevAccount:            header.PrevAccount(),
		PostAccount:            header.PostAccount(),
		StateCheckpoints:       nonNil(header.StateCheckpoints()),
		TxWitnessRoot:          header.SubmitTransactions().TxWitnessRoot,
		WithdrawalWitnessRoot:  header.SubmitWithdrawals().WithdrawalWitnessRoot,
		Size:                   summary.Size,
		Finalized:              finalized,
		Deposits:               deposits,
		Transactions:           nonNil(summary.Txs),
		Withdrawals:            nonNil(summary.Withdrawals),
	}
}

func nonNil(hashes []gw.Bytes32) []gw.Bytes32 {
	if hashes == nil {
		return []gw.Bytes32{}
	}
	return hashes
}

// GlobalState for marshal global state.
type GlobalState struct {
	block.GlobalState
	Status string `json:"status"`
}

// ConvertGlobalState converts a global state into its json form.
func ConvertGlobalState(gs *block.GlobalState) *GlobalState {
	return &GlobalState{*gs, gs.Status.String()}
}
