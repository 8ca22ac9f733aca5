// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package builtin

import (
	"encoding/binary"

	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/xenv"
)

// metaContract creates accounts.
type metaContract struct {
	known func(codeHash gw.Bytes32) bool
}

func (*metaContract) Name() string { return "meta-contract" }
func (*metaContract) backend()     {}

func (*metaContract) Fee(args []byte) Fee { return feeOf(args, newMetaMessage) }

func (b *metaContract) Handle(env *xenv.Environment, args []byte) error {
	if env.AccountID() != gw.MetaContractAccountID {
		return xenv.Exit(xenv.ExitFatalInvalidContext, "meta contract called at account %d", env.AccountID())
	}
	msg, err := decodeArgs(args, newMetaMessage)
	if err != nil {
		return err
	}

	var ids []uint32
	switch m := msg.(type) {
	case *CreateAccount:
		if err := payFee(env, m.Fee); err != nil {
			return err
		}
		if !b.known(m.Script.CodeHash) {
			return xenv.Exit(xenv.ExitErrorUnknownScriptCodeHash, "code hash %v", m.Script.CodeHash)
		}
		id, err := env.Create(&m.Script)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	case *BatchCreateEOA:
		if err := payFee(env, m.Fee); err != nil {
			return err
		}
		for _, script := range m.Scripts {
			if script.CodeHash != env.Config().EOACodeHash {
				return xenv.Exit(xenv.ExitErrorInvalidAccountScript, "not an EOA script")
			}
			addr, ok := script.EOAAddress()
			if !ok {
				return xenv.Exit(xenv.ExitErrorInvalidAccountScript, "invalid EOA args")
			}
			id, err := env.Create(script)
			if err != nil {
				return err
			}
			regAddr := gw.NewRegistryAddress(gw.ETHRegistryID, addr[:])
			if err := env.MapRegistryAddress(regAddr, script.Hash()); err != nil {
				return err
			}
			ids = append(ids, id)
		}
	}

	out := make([]byte, 4*len(ids))
	for i, id := range ids {
		binary.LittleEndian.PutUint32(out[i*4:], id)
	}
	if err := env.SetReturnData(out); err != nil {
		return err
	}
	return env.Finalize()
}
