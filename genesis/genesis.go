// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/builtin/sudt"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/smt"
	"github.com/godwokenrises/godwoken-sub004/state"
)

// Builder helper to build genesis block.
type Builder struct {
	config     *gw.Config
	timestamp  uint64
	stateProcs []func(st *state.State) error
}

// NewBuilder creates a builder for the rollup of cfg.
func NewBuilder(cfg *gw.Config) *Builder {
	return &Builder{config: cfg}
}

// Timestamp set timestamp.
func (b *Builder) Timestamp(t uint64) *Builder {
	b.timestamp = t
	return b
}

// State add a state process, run after the builtin accounts are created.
func (b *Builder) State(proc func(st *state.State) error) *Builder {
	b.stateProcs = append(b.stateProcs, proc)
	return b
}

// Alloc creates an EOA account for addr holding ckb.
func (b *Builder) Alloc(addr gw.Address, ckb uint64) *Builder {
	return b.State(func(st *state.State) error {
		script := gw.NewEOAScript(b.config.EOACodeHash, b.config.RollupScriptHash, addr)
		hash := st.InsertScript(script)
		if _, err := st.CreateAccount(hash); err != nil {
			return err
		}
		regAddr := gw.NewRegistryAddress(gw.ETHRegistryID, addr[:])
		if err := st.MappingRegistryAddress(regAddr, hash); err != nil {
			return err
		}
		return st.MintSUDT(gw.CKBSUDTAccountID, regAddr, uint256.NewInt(ckb))
	})
}

// BuiltinScripts returns the scripts of the meta contract, the CKB sUDT and the ETH registry
// accounts, in account id order.
func BuiltinScripts(cfg *gw.Config) []*gw.Script {
	return []*gw.Script{
		{CodeHash: cfg.MetaContractCodeHash, HashType: gw.HashTypeType, Args: cfg.RollupScriptHash.Bytes()},
		sudt.Script(cfg, gw.Bytes32{}),
		{CodeHash: cfg.ETHRegistryCodeHash, HashType: gw.HashTypeType, Args: cfg.RollupScriptHash.Bytes()},
	}
}

// Build builds the genesis state and commits it through stater, then returns the genesis block
// and the initial global state.
func (b *Builder) Build(stater *state.Stater) (*block.Block, *block.GlobalState, error) {
	st := stater.NewState(gw.AccountMerkleState{})
	for i, script := range BuiltinScripts(b.config) {
		id, err := st.CreateAccount(st.InsertScript(script))
		if err != nil {
			return nil, nil, errors.Wrap(err, "builtin account")
		}
		if id != uint32(i) {
			return nil, nil, errors.Errorf("builtin account %d created as %d", i, id)
		}
	}
	for _, proc := range b.stateProcs {
		if err := proc(st); err != nil {
			return nil, nil, errors.Wrap(err, "state process")
		}
	}

	stage, err := st.Stage()
	if err != nil {
		return nil, nil, err
	}
	bulk := stater.Store().Bulk()
	if err := stage.Commit(bulk); err != nil {
		return nil, nil, errors.Wrap(err, "commit state")
	}
	if err := bulk.Write(); err != nil {
		return nil, nil, errors.Wrap(err, "commit state")
	}

	account := stage.Account()
	blk := new(block.Builder).
		Timestamp(b.timestamp).
		PrevAccount(account).
		PostAccount(account).
		PrevStateCheckpoint(account.Checkpoint()).
		Build()

	blockTree := smt.NewMemTree()
	if err := blockTree.Update(block.BlockSMTKey(0), blk.Hash()); err != nil {
		return nil, nil, err
	}
	gs := &block.GlobalState{
		RollupConfigHash:  b.config.Hash(),
		Account:           account,
		Block:             gw.BlockMerkleState{MerkleRoot: blockTree.Root(), Count: 1},
		TipBlockHash:      blk.Hash(),
		TipBlockTimestamp: b.timestamp,
		Status:            block.StatusRunning,
		Version:           block.GlobalStateVersion,
	}
	return blk, gs, nil
}
