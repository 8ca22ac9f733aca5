// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package gw

import (
	"encoding/binary"
	"io"

	"github.com/spacemeshos/go-scale"
)

// AccountMerkleState commits the account tree root together with the account count.
type AccountMerkleState struct {
	MerkleRoot Bytes32 `json:"merkleRoot"`
	Count      uint32  `json:"count"`
}

// Checkpoint returns blake2b(merkle_root | count LE4).
func (s AccountMerkleState) Checkpoint() Bytes32 {
	return Blake2bFn(func(w io.Writer) {
		var c [4]byte
		binary.LittleEndian.PutUint32(c[:], s.Count)
		w.Write(s.MerkleRoot[:])
		w.Write(c[:])
	})
}

// EncodeScale implements scale codec interface.
func (s *AccountMerkleState) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeByteArray(e, s.MerkleRoot[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeUint32(e, s.Count)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (s *AccountMerkleState) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		n, err := scale.DecodeByteArray(d, s.MerkleRoot[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeUint32(d)
		if err != nil {
			return total, err
		}
		total += n
		s.Count = field
	}
	return total, nil
}

// BlockMerkleState commits the block tree root together with the block count.
type BlockMerkleState struct {
	MerkleRoot Bytes32 `json:"merkleRoot"`
	Count      uint64  `json:"count"`
}

// EncodeScale implements scale codec interface.
func (s *BlockMerkleState) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeByteArray(e, s.MerkleRoot[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeUint64(e, s.Count)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (s *BlockMerkleState) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		n, err := scale.DecodeByteArray(d, s.MerkleRoot[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeUint64(d)
		if err != nil {
			return total, err
		}
		total += n
		s.Count = field
	}
	return total, nil
}
