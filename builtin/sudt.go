// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package builtin

import (
	"github.com/godwokenrises/godwoken-sub004/builtin/sudt"
	"github.com/godwokenrises/godwoken-sub004/state"
	"github.com/godwokenrises/godwoken-sub004/xenv"
)

// sudtBackend serves every layer2 sUDT account. The ledger is the called account.
type sudtBackend struct{}

func (sudtBackend) Name() string { return "l2-sudt" }
func (sudtBackend) backend()     {}

func (sudtBackend) Fee(args []byte) Fee { return feeOf(args, newSUDTMessage) }

func (sudtBackend) Handle(env *xenv.Environment, args []byte) error {
	msg, err := decodeArgs(args, newSUDTMessage)
	if err != nil {
		return err
	}
	ledger := sudt.New(env.AccountID(), env)

	switch m := msg.(type) {
	case *SUDTQuery:
		balance, err := ledger.GetBalance(m.Address)
		if err != nil {
			return err
		}
		v := state.U256ToBytes32(balance)
		if err := env.SetReturnData(v[:]); err != nil {
			return err
		}
	case *SUDTTransfer:
		if err := payFee(env, m.Fee); err != nil {
			return err
		}
		hash, err := env.LoadScriptHashByAccountID(env.Sender())
		if err != nil {
			return err
		}
		from, err := env.GetRegistryAddressByScriptHash(hash, m.To.RegistryID)
		if err != nil {
			return err
		}
		if err := ledger.Transfer(from, m.To, m.Amount); err != nil {
			return err
		}
	}
	return env.Finalize()
}
