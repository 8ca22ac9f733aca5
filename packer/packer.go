// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package packer

import (
	"github.com/godwokenrises/godwoken-sub004/builtin"
	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/runtime"
	"github.com/godwokenrises/godwoken-sub004/state"
	"github.com/godwokenrises/godwoken-sub004/xenv"
)

// Limits caps the content of a block.
type Limits struct {
	MaxTxs         int    `yaml:"max_txs"`
	MaxDeposits    int    `yaml:"max_deposits"`
	MaxWithdrawals int    `yaml:"max_withdrawals"`
	BlockCycles    uint64 `yaml:"block_cycles"`
}

// DefaultLimits returns the default block caps.
func DefaultLimits() Limits {
	return Limits{
		MaxTxs:         1000,
		MaxDeposits:    50,
		MaxWithdrawals: 50,
		BlockCycles:    2_800_000_000,
	}
}

// Packer to pack requests and build new blocks.
type Packer struct {
	repo               *chain.Repository
	stater             *state.Stater
	backends           *builtin.Manager
	config             *gw.Config
	producer           gw.RegistryAddress
	stakeOwnerLockHash gw.Bytes32
	limits             Limits
}

// New create a new Packer instance.
func New(
	repo *chain.Repository,
	stater *state.Stater,
	backends *builtin.Manager,
	config *gw.Config,
	producer gw.RegistryAddress,
	stakeOwnerLockHash gw.Bytes32,
	limits Limits,
) *Packer {
	return &Packer{
		repo:               repo,
		stater:             stater,
		backends:           backends,
		config:             config,
		producer:           producer,
		stakeOwnerLockHash: stakeOwnerLockHash,
		limits:             limits,
	}
}

// Producer returns the registry address receiving fees.
func (p *Packer) Producer() gw.RegistryAddress {
	return p.producer
}

// Schedule starts the flow of a block on parent. Timestamps are milliseconds; a timestamp not
// after the tip timestamp of the parent global state is bumped past it. The global state keeps
// the timestamp of reverted blocks.
func (p *Packer) Schedule(parent *chain.Tip, timestamp uint64) *Flow {
	header := parent.Block.Header()
	if last := max(header.Timestamp(), parent.GlobalState.TipBlockTimestamp); timestamp <= last {
		timestamp = last + 1
	}
	blockInfo := &xenv.BlockInfo{
		Number:        header.Number() + 1,
		Timestamp:     timestamp,
		BlockProducer: p.producer,
	}
	st := p.stater.NewState(parent.GlobalState.Account)
	return newFlow(p, parent, runtime.New(p.config, p.backends, st, blockInfo))
}
