// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package sudt implements the layer2 simple UDT ledger on top of a backend environment.
// Every read and write is a metered syscall.
package sudt

import (
	"bytes"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/spacemeshos/go-scale"

	"github.com/godwokenrises/godwoken-sub004/codec"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/state"
	"github.com/godwokenrises/godwoken-sub004/tx"
	"github.com/godwokenrises/godwoken-sub004/xenv"
)

// SUDT is the ledger kept by the sUDT account id.
type SUDT struct {
	id  uint32
	env *xenv.Environment
}

// New creates a ledger handle.
func New(id uint32, env *xenv.Environment) *SUDT {
	return &SUDT{id, env}
}

// Script returns the script of the layer2 account mirroring the base chain sUDT l1TypeHash.
// The CKB account uses the zero hash.
func Script(cfg *gw.Config, l1TypeHash gw.Bytes32) *gw.Script {
	return &gw.Script{
		CodeHash: cfg.L2SUDTCodeHash,
		HashType: gw.HashTypeType,
		Args:     append(cfg.RollupScriptHash.Bytes(), l1TypeHash[:]...),
	}
}

func checkAddress(addr gw.RegistryAddress) error {
	if len(addr.Address) != gw.AddressLength {
		return xenv.Exit(xenv.ExitSUDTInvalidAddress, "address %v", addr)
	}
	return nil
}

// GetBalance returns the balance of addr.
func (s *SUDT) GetBalance(addr gw.RegistryAddress) (*uint256.Int, error) {
	if err := checkAddress(addr); err != nil {
		return nil, err
	}
	v, err := s.env.LoadValue(s.id, state.SUDTBalanceKey(addr))
	if err != nil {
		return nil, err
	}
	return state.U256FromBytes32(v), nil
}

// GetTotalSupply returns the total supply.
func (s *SUDT) GetTotalSupply() (*uint256.Int, error) {
	v, err := s.env.LoadValue(s.id, gw.SUDTTotalSupplyKey[:])
	if err != nil {
		return nil, err
	}
	return state.U256FromBytes32(v), nil
}

func (s *SUDT) setBalance(addr gw.RegistryAddress, v *uint256.Int) error {
	return s.env.StoreValue(s.id, state.SUDTBalanceKey(addr), state.U256ToBytes32(v))
}

func (s *SUDT) move(from, to gw.RegistryAddress, amount *uint256.Int) error {
	if err := checkAddress(to); err != nil {
		return err
	}
	fromBal, err := s.GetBalance(from)
	if err != nil {
		return err
	}
	if fromBal.Lt(amount) {
		return xenv.Exit(xenv.ExitSUDTInsufficientBalance, "balance of %v is %v, need %v", from, fromBal, amount)
	}
	if err := s.setBalance(from, fromBal.Sub(fromBal, amount)); err != nil {
		return err
	}
	toBal, err := s.GetBalance(to)
	if err != nil {
		return err
	}
	if _, overflow := toBal.AddOverflow(toBal, amount); overflow {
		return xenv.Exit(xenv.ExitSUDTAmountOverflow, "balance of %v overflows", to)
	}
	return s.setBalance(to, toBal)
}

// Transfer moves amount from one address to another and emits a transfer log.
func (s *SUDT) Transfer(from, to gw.RegistryAddress, amount *uint256.Int) error {
	if err := s.move(from, to, amount); err != nil {
		return err
	}
	return s.env.Log(s.id, tx.LogSUDTTransfer, (&Log{from, to, amount}).Bytes())
}

// PayFee moves amount from payer to the block producer and emits a pay fee log.
func (s *SUDT) PayFee(payer gw.RegistryAddress, amount *uint256.Int) error {
	producer := s.env.BlockInfo().BlockProducer
	if err := s.move(payer, producer, amount); err != nil {
		return err
	}
	return s.env.Log(s.id, tx.LogSUDTPayFee, (&Log{payer, producer, amount}).Bytes())
}

// Log is the data of transfer and pay fee logs.
type Log struct {
	From   gw.RegistryAddress
	To     gw.RegistryAddress
	Amount *uint256.Int
}

// Bytes returns from.Serialize() | to.Serialize() | amount as 32 bytes little-endian.
func (l *Log) Bytes() []byte {
	var buf bytes.Buffer
	buf.Write(l.From.Serialize())
	buf.Write(l.To.Serialize())
	if _, err := codec.EncodeU256(scale.NewEncoder(&buf), l.Amount); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// ParseLog parses log data written by Log.Bytes.
func ParseLog(data []byte) (*Log, error) {
	from, rest, err := gw.ParseRegistryAddress(data)
	if err != nil {
		return nil, err
	}
	to, rest, err := gw.ParseRegistryAddress(rest)
	if err != nil {
		return nil, err
	}
	if len(rest) != 32 {
		return nil, errors.Errorf("sudt log: amount of %d bytes", len(rest))
	}
	return &Log{from, to, codec.U128FromLE(rest)}, nil
}
