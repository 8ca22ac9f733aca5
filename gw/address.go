// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package gw

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spacemeshos/go-scale"
)

// AddressLength length of an ethereum style address in bytes.
const AddressLength = common.AddressLength

// Address is a 20 bytes ethereum style address.
type Address common.Address

// String implements the stringer interface
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Bytes returns byte slice form of address.
func (a Address) Bytes() []byte {
	return a[:]
}

// ParseAddress convert string presented address into Address type.
func ParseAddress(s string) (Address, error) {
	if len(s) == AddressLength*2 {
	} else if len(s) == AddressLength*2+2 {
		if strings.ToLower(s[:2]) != "0x" {
			return Address{}, errors.New("invalid prefix")
		}
		s = s[2:]
	} else {
		return Address{}, errors.New("invalid length")
	}
	var addr Address
	if _, err := hex.Decode(addr[:], []byte(s)); err != nil {
		return Address{}, err
	}
	return addr, nil
}

// BytesToAddress converts bytes slice into address, cropping or extending from the left.
func BytesToAddress(b []byte) Address {
	return Address(common.BytesToAddress(b))
}

// RegistryAddress is an address in a foreign address format, qualified by the id of the
// registry account that maintains the mapping.
type RegistryAddress struct {
	RegistryID uint32
	Address    []byte
}

// NewRegistryAddress creates a registry address.
func NewRegistryAddress(registryID uint32, addr []byte) RegistryAddress {
	return RegistryAddress{registryID, append([]byte(nil), addr...)}
}

// Serialize returns reg_id LE4 | len LE4 | address.
func (a RegistryAddress) Serialize() []byte {
	out := make([]byte, 8+len(a.Address))
	binary.LittleEndian.PutUint32(out[:4], a.RegistryID)
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(a.Address)))
	copy(out[8:], a.Address)
	return out
}

// IsEmpty reports whether the address is unset.
func (a RegistryAddress) IsEmpty() bool {
	return a.RegistryID == 0 && len(a.Address) == 0
}

func (a RegistryAddress) String() string {
	return fmt.Sprintf("%d:0x%x", a.RegistryID, a.Address)
}

// ParseRegistryAddress parses the serialized form. Extra bytes after the address are returned.
func ParseRegistryAddress(b []byte) (RegistryAddress, []byte, error) {
	if len(b) < 8 {
		return RegistryAddress{}, nil, errors.New("registry address: too short")
	}
	id := binary.LittleEndian.Uint32(b[:4])
	n := binary.LittleEndian.Uint32(b[4:8])
	if uint64(len(b)-8) < uint64(n) {
		return RegistryAddress{}, nil, errors.New("registry address: truncated")
	}
	return NewRegistryAddress(id, b[8:8+n]), b[8+n:], nil
}

// EncodeScale implements scale codec interface.
func (a *RegistryAddress) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeUint32(e, a.RegistryID)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteSliceWithLimit(e, a.Address, 64)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (a *RegistryAddress) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		field, n, err := scale.DecodeUint32(d)
		if err != nil {
			return total, err
		}
		total += n
		a.RegistryID = field
	}
	{
		field, n, err := scale.DecodeByteSliceWithLimit(d, 64)
		if err != nil {
			return total, err
		}
		total += n
		a.Address = field
	}
	return total, nil
}
