// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"slices"

	"github.com/holiman/uint256"

	"github.com/godwokenrises/godwoken-sub004/gw"
)

// U256FromBytes32 decodes a little-endian tree value.
func U256FromBytes32(v gw.Bytes32) *uint256.Int {
	slices.Reverse(v[:])
	return new(uint256.Int).SetBytes32(v[:])
}

// U256ToBytes32 encodes n as a little-endian tree value.
func U256ToBytes32(n *uint256.Int) gw.Bytes32 {
	v := gw.Bytes32(n.Bytes32())
	slices.Reverse(v[:])
	return v
}

// GetRegistryAddressByScriptHash returns the address the registry maps scriptHash to.
func (s *State) GetRegistryAddressByScriptHash(registryID uint32, scriptHash gw.Bytes32) (gw.RegistryAddress, bool, error) {
	v, err := s.GetValue(registryID, ScriptHashToRegistryKey(scriptHash))
	if err != nil {
		return gw.RegistryAddress{}, false, err
	}
	if v.IsZero() {
		return gw.RegistryAddress{}, false, nil
	}
	addr, _, err := gw.ParseRegistryAddress(v[:])
	if err != nil {
		return gw.RegistryAddress{}, false, &Error{err}
	}
	return addr, true, nil
}

// GetScriptHashByRegistryAddress returns the script hash addr is mapped to.
func (s *State) GetScriptHashByRegistryAddress(addr gw.RegistryAddress) (gw.Bytes32, bool, error) {
	v, err := s.GetValue(addr.RegistryID, RegistryToScriptHashKey(addr))
	if err != nil {
		return gw.Bytes32{}, false, err
	}
	return v, !v.IsZero(), nil
}

// MappingRegistryAddress creates the bi-direction mapping between addr and scriptHash.
// Mapping either side twice fails with an ordinary error.
func (s *State) MappingRegistryAddress(addr gw.RegistryAddress, scriptHash gw.Bytes32) error {
	if len(addr.Address) != gw.AddressLength || scriptHash.IsZero() || addr.RegistryID != gw.ETHRegistryID {
		return errInvalidArgs
	}
	if _, exist, err := s.GetRegistryAddressByScriptHash(addr.RegistryID, scriptHash); err != nil {
		return err
	} else if exist {
		return errDuplicatedRegistryAddress
	}
	if _, exist, err := s.GetScriptHashByRegistryAddress(addr); err != nil {
		return err
	} else if exist {
		return errDuplicatedRegistryAddress
	}

	var value gw.Bytes32
	copy(value[:], addr.Serialize())
	if err := s.UpdateValue(addr.RegistryID, ScriptHashToRegistryKey(scriptHash), value); err != nil {
		return err
	}
	return s.UpdateValue(addr.RegistryID, RegistryToScriptHashKey(addr), scriptHash)
}

// GetSUDTBalance returns the balance of addr in the sUDT account sudtID.
func (s *State) GetSUDTBalance(sudtID uint32, addr gw.RegistryAddress) (*uint256.Int, error) {
	v, err := s.GetValue(sudtID, SUDTBalanceKey(addr))
	if err != nil {
		return nil, err
	}
	return U256FromBytes32(v), nil
}

// GetSUDTTotalSupply returns the total supply of the sUDT account sudtID.
func (s *State) GetSUDTTotalSupply(sudtID uint32) (*uint256.Int, error) {
	v, err := s.GetValue(sudtID, gw.SUDTTotalSupplyKey[:])
	if err != nil {
		return nil, err
	}
	return U256FromBytes32(v), nil
}

// MintSUDT credits amount to addr and the total supply.
func (s *State) MintSUDT(sudtID uint32, addr gw.RegistryAddress, amount *uint256.Int) error {
	return s.adjustSUDT(sudtID, addr, amount, false)
}

// BurnSUDT debits amount from addr and the total supply.
func (s *State) BurnSUDT(sudtID uint32, addr gw.RegistryAddress, amount *uint256.Int) error {
	return s.adjustSUDT(sudtID, addr, amount, true)
}

func (s *State) adjustSUDT(sudtID uint32, addr gw.RegistryAddress, amount *uint256.Int, burn bool) error {
	apply := func(key []byte) error {
		v, err := s.GetValue(sudtID, key)
		if err != nil {
			return err
		}
		var (
			n        = U256FromBytes32(v)
			overflow bool
		)
		if burn {
			_, overflow = n.SubOverflow(n, amount)
		} else {
			_, overflow = n.AddOverflow(n, amount)
		}
		if overflow {
			return errAmountOverflow
		}
		return s.UpdateValue(sudtID, key, U256ToBytes32(n))
	}
	if err := apply(SUDTBalanceKey(addr)); err != nil {
		return err
	}
	return apply(gw.SUDTTotalSupplyKey[:])
}

// TransferSUDT moves amount from one address to another inside sUDT account sudtID.
func (s *State) TransferSUDT(sudtID uint32, from, to gw.RegistryAddress, amount *uint256.Int) error {
	fromBal, err := s.GetSUDTBalance(sudtID, from)
	if err != nil {
		return err
	}
	if fromBal.Lt(amount) {
		return errAmountOverflow
	}
	fromBal.Sub(fromBal, amount)
	if err := s.UpdateValue(sudtID, SUDTBalanceKey(from), U256ToBytes32(fromBal)); err != nil {
		return err
	}
	toBal, err := s.GetSUDTBalance(sudtID, to)
	if err != nil {
		return err
	}
	if _, overflow := toBal.AddOverflow(toBal, amount); overflow {
		return errAmountOverflow
	}
	return s.UpdateValue(sudtID, SUDTBalanceKey(to), U256ToBytes32(toBal))
}
