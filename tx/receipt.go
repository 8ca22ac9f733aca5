// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"github.com/spacemeshos/go-scale"

	"github.com/godwokenrises/godwoken-sub004/codec"
	"github.com/godwokenrises/godwoken-sub004/gw"
)

// service flags of log items.
const (
	LogSUDTTransfer    byte = 0
	LogSUDTPayFee      byte = 1
	LogPolyjuiceSystem byte = 2
	LogPolyjuiceUser   byte = 3
)

// max log items per receipt.
const MaxLogs = 1024

// Log is emitted by a backend during execution.
type Log struct {
	AccountID   uint32 `json:"accountId"`
	ServiceFlag byte   `json:"serviceFlag"`
	Data        []byte `json:"data"`
}

// EncodeScale implements scale codec interface.
func (l *Log) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeUint32(e, l.AccountID)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByte(e, l.ServiceFlag)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteSliceWithLimit(e, l.Data, codec.MaxBytes)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (l *Log) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		field, n, err := scale.DecodeUint32(d)
		if err != nil {
			return total, err
		}
		total += n
		l.AccountID = field
	}
	{
		field, n, err := scale.DecodeByte(d)
		if err != nil {
			return total, err
		}
		total += n
		l.ServiceFlag = field
	}
	{
		field, n, err := scale.DecodeByteSliceWithLimit(d, codec.MaxBytes)
		if err != nil {
			return total, err
		}
		total += n
		l.Data = field
	}
	return total, nil
}

// Receipt is the outcome of executing a transaction.
type Receipt struct {
	TxWitnessHash  gw.Bytes32
	PostState      gw.AccountMerkleState
	ReadDataHashes []gw.Bytes32
	Logs           []*Log
	// ExitCode is zero on success.
	ExitCode   int8
	Cycles     uint64
	ReturnData []byte
}

// Failed reports whether the execution failed.
func (r *Receipt) Failed() bool {
	return r.ExitCode != 0
}

// Receipts slice of receipts.
type Receipts []*Receipt

// EncodeScale implements scale codec interface.
func (r *Receipt) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := r.TxWitnessHash.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := r.PostState.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := codec.EncodeHashes(e, r.ReadDataHashes, codec.MaxItems)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := codec.EncodeSlice(e, r.Logs, MaxLogs)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByte(e, byte(r.ExitCode))
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeUint64(e, r.Cycles)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteSliceWithLimit(e, r.ReturnData, gw.MaxExternalReturnDataSize)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (r *Receipt) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		n, err := r.TxWitnessHash.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := r.PostState.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := codec.DecodeHashes[gw.Bytes32](d, codec.MaxItems)
		if err != nil {
			return total, err
		}
		total += n
		r.ReadDataHashes = field
	}
	{
		field, n, err := codec.DecodeSlice[Log](d, MaxLogs)
		if err != nil {
			return total, err
		}
		total += n
		r.Logs = field
	}
	{
		field, n, err := scale.DecodeByte(d)
		if err != nil {
			return total, err
		}
		total += n
		r.ExitCode = int8(field)
	}
	{
		field, n, err := scale.DecodeUint64(d)
		if err != nil {
			return total, err
		}
		total += n
		r.Cycles = field
	}
	{
		field, n, err := scale.DecodeByteSliceWithLimit(d, gw.MaxExternalReturnDataSize)
		if err != nil {
			return total, err
		}
		total += n
		r.ReturnData = field
	}
	return total, nil
}
