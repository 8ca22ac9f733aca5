// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package types

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/pkg/errors"
	"github.com/spacemeshos/go-scale"

	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/codec"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

// RawTx the scale encoded form of a signed transaction or withdrawal.
type RawTx struct {
	Raw string `json:"raw"`
}

func (rtx *RawTx) bytes() ([]byte, error) {
	if rtx.Raw == "" {
		return nil, errors.New("empty raw")
	}
	return hexutil.Decode(rtx.Raw)
}

// DecodeTransaction decodes the raw transaction.
func (rtx *RawTx) DecodeTransaction() (*tx.Transaction, error) {
	data, err := rtx.bytes()
	if err != nil {
		return nil, err
	}
	var trx tx.Transaction
	if err := codec.Decode(data, &trx); err != nil {
		return nil, err
	}
	return &trx, nil
}

// DecodeWithdrawal decodes the raw withdrawal.
func (rtx *RawTx) DecodeWithdrawal() (*tx.Withdrawal, error) {
	data, err := rtx.bytes()
	if err != nil {
		return nil, err
	}
	var w tx.Withdrawal
	if err := codec.Decode(data, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// EncodeRaw returns the raw form of a transaction or withdrawal.
func EncodeRaw(v scale.Encodable) *RawTx {
	return &RawTx{hexutil.Encode(codec.MustEncode(v))}
}

// Location where a committed transaction or withdrawal is, nil when pending.
type Location struct {
	BlockNumber uint64 `json:"blockNumber"`
	Index       uint32 `json:"index"`
}

func convertLocation(loc *chain.Location) *Location {
	if loc == nil {
		return nil
	}
	return &Location{loc.BlockNumber, loc.Index}
}

// Transaction for marshal transaction.
type Transaction struct {
	Hash        gw.Bytes32    `json:"hash"`
	WitnessHash gw.Bytes32    `json:"witnessHash"`
	ChainID     uint64        `json:"chainId"`
	From        uint32        `json:"from"`
	To          uint32        `json:"to"`
	Nonce       uint32        `json:"nonce"`
	Args        hexutil.Bytes `json:"args"`
	Signature   hexutil.Bytes `json:"signature"`
	Size        uint32        `json:"size"`
	Location    *Location     `json:"location"`
}

// ConvertTransaction converts a transaction into its json form.
func ConvertTransaction(trx *tx.Transaction, loc *chain.Location) *Transaction {
	return &Transaction{
		Hash:        trx.Hash(),
		WitnessHash: trx.WitnessHash(),
		ChainID:     trx.ChainID(),
		From:        trx.FromID(),
		To:          trx.ToID(),
		Nonce:       trx.Nonce(),
		Args:        trx.Args(),
		Signature:   trx.Signature(),
		Size:        uint32(trx.Size()),
		Location:    convertLocation(loc),
	}
}

// Withdrawal for marshal withdrawal.
type Withdrawal struct {
	Hash              gw.Bytes32            `json:"hash"`
	Nonce             uint32                `json:"nonce"`
	ChainID           uint64                `json:"chainId"`
	Capacity          uint64                `json:"capacity"`
	Amount            *math.HexOrDecimal256 `json:"amount"`
	SUDTScriptHash    gw.Bytes32            `json:"sudtScriptHash"`
	AccountScriptHash gw.Bytes32            `json:"accountScriptHash"`
	RegistryID        uint32                `json:"registryId"`
	OwnerLockHash     gw.Bytes32            `json:"ownerLockHash"`
	Fee               *math.HexOrDecimal256 `json:"fee"`
	Signature         hexutil.Bytes         `json:"signature"`
	Location          *Location             `json:"location"`
}

// ConvertWithdrawal converts a withdrawal into its json form.
func ConvertWithdrawal(w *tx.Withdrawal, loc *chain.Location) *Withdrawal {
	raw := w.Raw()
	return &Withdrawal{
		Hash:              w.Hash(),
		Nonce:             raw.Nonce,
		ChainID:           raw.ChainID,
		Capacity:          raw.Capacity,
		Amount:            (*math.HexOrDecimal256)(raw.Amount.ToBig()),
		SUDTScriptHash:    raw.SUDTScriptHash,
		AccountScriptHash: raw.AccountScriptHash,
		RegistryID:        raw.RegistryID,
		OwnerLockHash:     raw.OwnerLockHash,
		Fee:               (*math.HexOrDecimal256)(raw.Fee.ToBig()),
		Signature:         w.Signature(),
		Location:          convertLocation(loc),
	}
}

// Log for marshal receipt log.
type Log struct {
	AccountID   uint32        `json:"accountId"`
	ServiceFlag byte          `json:"serviceFlag"`
	Data        hexutil.Bytes `json:"data"`
}

// Receipt for marshal receipt.
type Receipt struct {
	TxWitnessHash  gw.Bytes32            `json:"txWitnessHash"`
	PostState      gw.AccountMerkleState `json:"postState"`
	ReadDataHashes []gw.Bytes32          `json:"readDataHashes"`
	Logs           []*Log                `json:"logs"`
	ExitCode       int8                  `json:"exitCode"`
	Failed         bool                  `json:"failed"`
	Cycles         uint64                `json:"cycles"`
	ReturnData     hexutil.Bytes         `json:"returnData"`
	Pending        bool                  `json:"pending"`
}

// ConvertReceipt converts a receipt into its json form.
func ConvertReceipt(r *tx.Receipt, pending bool) *Receipt {
	logs := make([]*Log, 0, len(r.Logs))
	for _, l := range r.Logs {
		logs = append(logs, &Log{l.AccountID, l.ServiceFlag, l.Data})
	}
	hashes := r.ReadDataHashes
	if hashes == nil {
		hashes = []gw.Bytes32{}
	}
	return &Receipt{
		TxWitnessHash:  r.TxWitnessHash,
		PostState:      r.PostState,
		ReadDataHashes: hashes,
		Logs:           logs,
		ExitCode:       r.ExitCode,
		Failed:         r.Failed(),
		Cycles:         r.Cycles,
		ReturnData:     r.ReturnData,
		Pending:        pending,
	}
}
