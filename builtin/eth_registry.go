// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package builtin

import (
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/xenv"
)

// ethRegistry maps ethereum addresses to script hashes of EOA accounts.
type ethRegistry struct{}

func (ethRegistry) Name() string { return "eth-addr-reg" }
func (ethRegistry) backend()     {}

func (ethRegistry) Fee(args []byte) Fee { return feeOf(args, newRegistryMessage) }

func (ethRegistry) Handle(env *xenv.Environment, args []byte) error {
	if env.AccountID() != gw.ETHRegistryAccountID {
		return xenv.Exit(xenv.ExitFatalInvalidContext, "eth registry called at account %d", env.AccountID())
	}
	msg, err := decodeArgs(args, newRegistryMessage)
	if err != nil {
		return err
	}

	switch m := msg.(type) {
	case *EthToGw:
		hash, err := env.GetScriptHashByRegistryAddress(gw.NewRegistryAddress(gw.ETHRegistryID, m.Address[:]))
		if err != nil {
			return err
		}
		if err := env.SetReturnData(hash[:]); err != nil {
			return err
		}
	case *GwToEth:
		addr, err := env.GetRegistryAddressByScriptHash(m.ScriptHash, gw.ETHRegistryID)
		if err != nil {
			return err
		}
		if err := env.SetReturnData(addr.Serialize()); err != nil {
			return err
		}
	case *SetMapping:
		if err := payFee(env, m.Fee); err != nil {
			return err
		}
		if err := registerEOA(env, m.ScriptHash); err != nil {
			return err
		}
	case *BatchSetMapping:
		if err := payFee(env, m.Fee); err != nil {
			return err
		}
		for _, hash := range m.ScriptHashes {
			if err := registerEOA(env, hash); err != nil {
				return err
			}
		}
	}
	return env.Finalize()
}

// registerEOA maps the ethereum address carried by the script of an EOA account to its hash.
func registerEOA(env *xenv.Environment, hash gw.Bytes32) error {
	id, err := env.LoadAccountIDByScriptHash(hash)
	if err != nil {
		return err
	}
	script, err := env.LoadAccountScript(id)
	if err != nil {
		return err
	}
	if script.CodeHash != env.Config().EOACodeHash {
		return xenv.Exit(xenv.ExitErrorInvalidAccountScript, "account %d is not an EOA", id)
	}
	addr, ok := script.EOAAddress()
	if !ok {
		return xenv.Exit(xenv.ExitErrorInvalidAccountScript, "invalid EOA args of account %d", id)
	}
	return env.MapRegistryAddress(gw.NewRegistryAddress(gw.ETHRegistryID, addr[:]), hash)
}
