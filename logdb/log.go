// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package logdb

import "fmt"

func (l *Log) String() string {
	return fmt.Sprintf(`
		Log(
			blockHash:   %v,
			blockNumber: %v,
			index:       %v,
			blockTime:   %v,
			txHash:      %v,
			txIndex:     %v,
			accountID:   %v,
			serviceFlag: %v,
			data:        0x%x)`,
		l.BlockHash,
		l.BlockNumber,
		l.Index,
		l.BlockTime,
		l.TxHash,
		l.TxIndex,
		l.AccountID,
		l.ServiceFlag,
		l.Data)
}
