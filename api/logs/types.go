// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package logs

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/logdb"
)

// Meta locates a log in the chain.
type Meta struct {
	BlockHash   gw.Bytes32 `json:"blockHash"`
	BlockNumber uint64     `json:"blockNumber"`
	BlockTime   uint64     `json:"blockTimestamp"`
	TxHash      gw.Bytes32 `json:"txHash"`
	TxIndex     uint32     `json:"txIndex"`
	LogIndex    uint32     `json:"logIndex"`
}

// FilteredLog for marshal a log with its location.
type FilteredLog struct {
	AccountID   uint32        `json:"accountId"`
	ServiceFlag byte          `json:"serviceFlag"`
	Data        hexutil.Bytes `json:"data"`
	Meta        Meta          `json:"meta"`
}

func convertLog(l *logdb.Log) *FilteredLog {
	return &FilteredLog{
		AccountID:   l.AccountID,
		ServiceFlag: l.ServiceFlag,
		Data:        l.Data,
		Meta: Meta{
			BlockHash:   l.BlockHash,
			BlockNumber: l.BlockNumber,
			BlockTime:   l.BlockTime,
			TxHash:      l.TxHash,
			TxIndex:     l.TxIndex,
			LogIndex:    l.Index,
		},
	}
}

// Range an inclusive range of block numbers, To nil means no upper bound.
type Range struct {
	From uint64  `json:"from"`
	To   *uint64 `json:"to"`
}

type Options struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

type Criteria struct {
	AccountID   *uint32 `json:"accountId"`
	ServiceFlag *byte   `json:"serviceFlag"`
}

// FilterRequest the body of a log filter.
type FilterRequest struct {
	TxHash      *gw.Bytes32 `json:"txHash"`
	CriteriaSet []*Criteria `json:"criteriaSet"`
	Range       *Range      `json:"range"`
	Options     *Options    `json:"options"`
	Order       logdb.Order `json:"order"`
}
