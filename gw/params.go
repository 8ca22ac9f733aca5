// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package gw

// builtin accounts created at genesis.
const (
	MetaContractAccountID uint32 = 0
	CKBSUDTAccountID      uint32 = 1
	ETHRegistryAccountID  uint32 = 2
)

// ETHRegistryID is the registry id of ethereum addresses, equal to the id of the registry account.
const ETHRegistryID = ETHRegistryAccountID

// execution limits.
const (
	MaxReturnDataSize         = 24 * 1024
	MaxExternalReturnDataSize = 128 * 1024
	MaxTxArgsSize             = 128 * 1024
	MaxReadDataBytes          = 2 * 1024 * 1024
	MaxWriteDataBytes         = 25 * 1024
	MaxTxSize                 = 50000
	MaxWithdrawalSize         = 50000
)

// mem-pool limits.
const (
	MaxInPoolTxs         = 6000
	MaxInPoolWithdrawals = 3000
	MaxFeeQueueSize      = 100000
	FeeQueueDropSize     = 100
)

// MaxRevertedBlocks bounds the number of blocks a single revert can roll back.
const MaxRevertedBlocks = 128

// SUDTTotalSupplyKey is the kv key of the total supply inside a sUDT account.
var SUDTTotalSupplyKey = Bytes32{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}
