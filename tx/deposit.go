// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"io"

	"github.com/holiman/uint256"
	"github.com/spacemeshos/go-scale"

	"github.com/godwokenrises/godwoken-sub004/codec"
	"github.com/godwokenrises/godwoken-sub004/gw"
)

// Deposit is a request to credit base chain assets to a layer2 account. The account is created on
// the first deposit to its script.
type Deposit struct {
	// Capacity is the amount of base chain native token, credited as CKB.
	Capacity uint64
	Amount   *uint256.Int
	// SUDTScriptHash is the type hash of the base chain sUDT, zero for pure CKB deposits.
	SUDTScriptHash gw.Bytes32
	Script         gw.Script
	RegistryID     uint32
}

// Hash returns blake2b of the encoded deposit.
func (d *Deposit) Hash() gw.Bytes32 {
	return gw.Blake2bFn(func(w io.Writer) {
		d.EncodeScale(scale.NewEncoder(w))
	})
}

// Deposits a slice of deposits.
type Deposits []*Deposit

// EncodeScale implements scale codec interface.
func (d *Deposit) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeUint64(e, d.Capacity)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := codec.EncodeU128(e, d.Amount)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := d.SUDTScriptHash.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := d.Script.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeUint32(e, d.RegistryID)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (d *Deposit) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		field, n, err := scale.DecodeUint64(dec)
		if err != nil {
			return total, err
		}
		total += n
		d.Capacity = field
	}
	{
		field, n, err := codec.DecodeU128(dec)
		if err != nil {
			return total, err
		}
		total += n
		d.Amount = field
	}
	{
		n, err := d.SUDTScriptHash.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := d.Script.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeUint32(dec)
		if err != nil {
			return total, err
		}
		total += n
		d.RegistryID = field
	}
	return total, nil
}
