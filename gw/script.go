// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package gw

import (
	"bytes"
	"io"

	"github.com/spacemeshos/go-scale"
)

// Script hash types.
const (
	HashTypeData byte = 0
	HashTypeType byte = 1
)

// MaxScriptArgs limits script args size.
const MaxScriptArgs = 1024

// Script identifies the logic bound to an account or a base chain cell.
type Script struct {
	CodeHash Bytes32
	HashType byte
	Args     []byte
}

// Hash returns blake2b of the encoded script.
func (s *Script) Hash() Bytes32 {
	return Blake2bFn(func(w io.Writer) {
		s.EncodeScale(scale.NewEncoder(w))
	})
}

// Equal compares two scripts.
func (s *Script) Equal(o *Script) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.CodeHash == o.CodeHash && s.HashType == o.HashType && bytes.Equal(s.Args, o.Args)
}

// EncodeScale implements scale codec interface.
func (s *Script) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeByteArray(e, s.CodeHash[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByte(e, s.HashType)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteSliceWithLimit(e, s.Args, MaxScriptArgs)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (s *Script) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		n, err := scale.DecodeByteArray(d, s.CodeHash[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeByte(d)
		if err != nil {
			return total, err
		}
		total += n
		s.HashType = field
	}
	{
		field, n, err := scale.DecodeByteSliceWithLimit(d, MaxScriptArgs)
		if err != nil {
			return total, err
		}
		total += n
		s.Args = field
	}
	return total, nil
}

// EOA script args are rollup_script_hash | eth_address.
const eoaArgsLen = 32 + AddressLength

// NewEOAScript builds the script of an externally owned account.
func NewEOAScript(codeHash, rollupScriptHash Bytes32, addr Address) *Script {
	args := make([]byte, 0, eoaArgsLen)
	args = append(args, rollupScriptHash[:]...)
	args = append(args, addr[:]...)
	return &Script{CodeHash: codeHash, HashType: HashTypeType, Args: args}
}

// EOAAddress extracts the ethereum address from EOA script args.
func (s *Script) EOAAddress() (Address, bool) {
	if len(s.Args) != eoaArgsLen {
		return Address{}, false
	}
	return BytesToAddress(s.Args[32:]), true
}
