// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package logdb

import (
	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

// Log is a tx.Log with its location.
type Log struct {
	BlockHash   gw.Bytes32
	BlockNumber uint64
	// Index is the position of the log in its block.
	Index       uint32
	BlockTime   uint64
	TxHash      gw.Bytes32
	TxIndex     uint32
	AccountID   uint32
	ServiceFlag byte
	Data        []byte
}

func newLog(header *block.Header, index uint32, txHash gw.Bytes32, txIndex uint32, l *tx.Log) *Log {
	return &Log{
		BlockHash:   header.Hash(),
		BlockNumber: header.Number(),
		Index:       index,
		BlockTime:   header.Timestamp(),
		TxHash:      txHash,
		TxIndex:     txIndex,
		AccountID:   l.AccountID,
		ServiceFlag: l.ServiceFlag,
		Data:        l.Data,
	}
}

type Order string

const (
	ASC  Order = "asc"
	DESC Order = "desc"
)

// Range is an inclusive range of block numbers.
type Range struct {
	From uint64
	To   uint64
}

type Options struct {
	Offset uint64
	Limit  uint64
}

// LogCriteria matches logs by emitting account and service flag. Nil fields match any.
type LogCriteria struct {
	AccountID   *uint32
	ServiceFlag *byte
}

// LogFilter selects logs matching any of CriteriaSet.
type LogFilter struct {
	TxHash      *gw.Bytes32
	CriteriaSet []*LogCriteria
	Range       *Range
	Options     *Options
	Order       Order // default asc
}
