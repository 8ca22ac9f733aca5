// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package gw

import (
	"io"

	"github.com/pkg/errors"
	"github.com/spacemeshos/go-scale"
)

// Config is the rollup configuration. Its hash is committed in every global state, so both the
// node and the base chain validators agree on the parameters.
type Config struct {
	ChainID uint64 `yaml:"chain_id"`
	// RollupScriptHash is the type hash of the rollup cell, prefixed to every lock args.
	RollupScriptHash Bytes32 `yaml:"rollup_script_hash"`

	FinalityBlocks          uint64 `yaml:"finality_blocks"`
	ChallengeMaturityBlocks uint64 `yaml:"challenge_maturity_blocks"`
	// RewardBurnRate is the percent burned out of a forfeited stake or challenge, the rest
	// goes to the party that won the dispute.
	RewardBurnRate            uint8  `yaml:"reward_burn_rate"`
	RequiredStakingCapacity   uint64 `yaml:"required_staking_capacity"`
	RequiredChallengeCapacity uint64 `yaml:"required_challenge_capacity"`
	MaxCycles                 uint64 `yaml:"max_cycles"`
	// OnchainMaxCycles bounds the replay of a challenged transaction by the base chain.
	OnchainMaxCycles uint64 `yaml:"onchain_max_cycles"`

	// layer2 backends and account locks
	MetaContractCodeHash Bytes32 `yaml:"meta_contract_code_hash"`
	L2SUDTCodeHash       Bytes32 `yaml:"l2_sudt_code_hash"`
	ETHRegistryCodeHash  Bytes32 `yaml:"eth_registry_code_hash"`
	EOACodeHash          Bytes32 `yaml:"eoa_code_hash"`

	// base chain scripts
	CustodianScriptTypeHash  Bytes32 `yaml:"custodian_script_type_hash"`
	DepositScriptTypeHash    Bytes32 `yaml:"deposit_script_type_hash"`
	WithdrawalScriptTypeHash Bytes32 `yaml:"withdrawal_script_type_hash"`
	ChallengeScriptTypeHash  Bytes32 `yaml:"challenge_script_type_hash"`
	StakeScriptTypeHash      Bytes32 `yaml:"stake_script_type_hash"`
	L1SUDTScriptTypeHash     Bytes32 `yaml:"l1_sudt_script_type_hash"`
	BurnLockHash             Bytes32 `yaml:"burn_lock_hash"`
}

// DefaultConfig returns a devnet configuration. Script hashes are derived from names.
func DefaultConfig() Config {
	name := func(s string) Bytes32 { return Blake2b([]byte(s)) }
	return Config{
		ChainID:                   71400,
		RollupScriptHash:          name("rollup"),
		FinalityBlocks:            16,
		ChallengeMaturityBlocks:   100,
		RewardBurnRate:            50,
		RequiredStakingCapacity:   1000_0000_0000,
		RequiredChallengeCapacity: 300_0000_0000,
		MaxCycles:                 500_000_000,
		OnchainMaxCycles:          70_000_000,
		MetaContractCodeHash:      name("meta-contract"),
		L2SUDTCodeHash:            name("l2-sudt"),
		ETHRegistryCodeHash:       name("eth-addr-reg"),
		EOACodeHash:               name("eth-account-lock"),
		CustodianScriptTypeHash:   name("custodian-lock"),
		DepositScriptTypeHash:     name("deposit-lock"),
		WithdrawalScriptTypeHash:  name("withdrawal-lock"),
		ChallengeScriptTypeHash:   name("challenge-lock"),
		StakeScriptTypeHash:       name("stake-lock"),
		L1SUDTScriptTypeHash:      name("l1-sudt"),
		BurnLockHash:              name("burn-lock"),
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.RewardBurnRate > 100 {
		return errors.New("reward_burn_rate exceeds 100")
	}
	if c.OnchainMaxCycles == 0 || c.MaxCycles == 0 {
		return errors.New("cycle budgets must be positive")
	}
	if c.RequiredChallengeCapacity == 0 {
		return errors.New("required_challenge_capacity must be positive")
	}
	if c.RollupScriptHash.IsZero() {
		return errors.New("rollup_script_hash required")
	}
	return nil
}

// Hash returns the config hash committed in global states.
func (c *Config) Hash() Bytes32 {
	return Blake2bFn(func(w io.Writer) {
		c.EncodeScale(scale.NewEncoder(w))
	})
}

// IsFinalized reports whether block number is finalized when lastFinalized is the last finalized
// block number of the rollup.
func IsFinalized(blockNumber, lastFinalized uint64) bool {
	return blockNumber <= lastFinalized
}

// LastFinalizedBlockNumber returns tip - finality, saturating at zero.
func (c *Config) LastFinalizedBlockNumber(tip uint64) uint64 {
	if tip < c.FinalityBlocks {
		return 0
	}
	return tip - c.FinalityBlocks
}

// BurnShare splits capacity into the burned part by the reward burn rate and the rest.
func (c *Config) BurnShare(capacity uint64) (burn, rest uint64) {
	rate := uint64(c.RewardBurnRate)
	burn = capacity/100*rate + capacity%100*rate/100
	return burn, capacity - burn
}

// EncodeScale implements scale codec interface.
func (c *Config) EncodeScale(e *scale.Encoder) (total int, err error) {
	for _, v := range []uint64{
		c.ChainID, c.FinalityBlocks, c.ChallengeMaturityBlocks, uint64(c.RewardBurnRate),
		c.RequiredStakingCapacity, c.RequiredChallengeCapacity, c.MaxCycles, c.OnchainMaxCycles,
	} {
		n, err := scale.EncodeUint64(e, v)
		if err != nil {
			return total, err
		}
		total += n
	}
	for _, h := range []*Bytes32{
		&c.RollupScriptHash,
		&c.MetaContractCodeHash, &c.L2SUDTCodeHash, &c.ETHRegistryCodeHash, &c.EOACodeHash,
		&c.CustodianScriptTypeHash, &c.DepositScriptTypeHash, &c.WithdrawalScriptTypeHash,
		&c.ChallengeScriptTypeHash, &c.StakeScriptTypeHash, &c.L1SUDTScriptTypeHash, &c.BurnLockHash,
	} {
		n, err := h.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
