// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"github.com/spacemeshos/go-scale"

	"github.com/godwokenrises/godwoken-sub004/block"
	"github.com/godwokenrises/godwoken-sub004/codec"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/kv"
	"github.com/godwokenrises/godwoken-sub004/tx"
)

const (
	summaryStoreName = "chain.sum"   // number -> block summary
	hashStoreName    = "chain.hash"  // block hash -> number
	bodyStoreName    = "chain.body"  // (number | kind | index) -> txs, withdrawals and receipts
	txIndexStoreName = "chain.txi"   // tx or withdrawal hash -> location
	stateStoreName   = "chain.gs"    // number -> global state after the block
	propStoreName    = "chain.props" // tip and sync markers

	// BlockTreeName is the bucket of block SMT nodes.
	BlockTreeName = "chain.bsmt"
	// RevertedTreeName is the bucket of reverted block SMT nodes.
	RevertedTreeName = "chain.rsmt"
)

// kinds of body entries.
const (
	KindTransaction byte = 0
	KindWithdrawal  byte = 1
	kindReceipt     byte = 2
)

var (
	tipKey        = []byte("tip")
	lastSyncedKey = []byte("last-synced")
)

// Location locates a transaction or withdrawal in the chain.
type Location struct {
	BlockNumber uint64
	Kind        byte
	Index       uint32
}

// BlockSummary presents block summary. Bodies of transactions and withdrawals are stored apart.
type BlockSummary struct {
	Header      *block.Header
	Deposits    tx.Deposits
	Txs         []gw.Bytes32
	Withdrawals []gw.Bytes32
	Size        uint64
}

// EncodeScale implements scale codec interface.
func (s *BlockSummary) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := s.Header.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := codec.EncodeSlice(e, s.Deposits, codec.MaxItems)
		if err != nil {
			return total, err
		}
		total += n
	}
	for _, hashes := range [][]gw.Bytes32{s.Txs, s.Withdrawals} {
		n, err := codec.EncodeHashes(e, hashes, codec.MaxItems)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeUint64(e, s.Size)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (s *BlockSummary) DecodeScale(d *scale.Decoder) (total int, err error) {
	s.Header = new(block.Header)
	{
		n, err := s.Header.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := codec.DecodeSlice[tx.Deposit](d, codec.MaxItems)
		if err != nil {
			return total, err
		}
		total += n
		s.Deposits = field
	}
	for _, hashes := range []*[]gw.Bytes32{&s.Txs, &s.Withdrawals} {
		field, n, err := codec.DecodeHashes[gw.Bytes32](d, codec.MaxItems)
		if err != nil {
			return total, err
		}
		total += n
		*hashes = field
	}
	{
		field, n, err := scale.DecodeUint64(d)
		if err != nil {
			return total, err
		}
		total += n
		s.Size = field
	}
	return total, nil
}

func numberKey(n uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, n)
}

// bodyKey is (number BE8 | kind | index BE4).
func bodyKey(n uint64, kind byte, index uint32) []byte {
	key := make([]byte, 0, 13)
	key = binary.BigEndian.AppendUint64(key, n)
	key = append(key, kind)
	return binary.BigEndian.AppendUint32(key, index)
}

// saveScale writes the snappy compressed encoding of val.
func saveScale(w kv.Putter, key []byte, val scale.Encodable) error {
	data, err := codec.Encode(val)
	if err != nil {
		return err
	}
	return w.Put(key, snappy.Encode(nil, data))
}

func loadScale(r kv.Getter, key []byte, val scale.Decodable) error {
	data, err := r.Get(key)
	if err != nil {
		return err
	}
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return errors.Wrap(err, "decompress")
	}
	return codec.Decode(raw, val)
}

func saveRLP(w kv.Putter, key []byte, val any) error {
	data, err := rlp.EncodeToBytes(val)
	if err != nil {
		return err
	}
	return w.Put(key, data)
}

func loadRLP(r kv.Getter, key []byte, val any) error {
	data, err := r.Get(key)
	if err != nil {
		return err
	}
	return rlp.DecodeBytes(data, val)
}

func saveNumber(w kv.Putter, key []byte, n uint64) error {
	return w.Put(key, numberKey(n))
}

func loadNumber(r kv.Getter, key []byte) (uint64, error) {
	data, err := r.Get(key)
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, errors.Errorf("invalid number of %d bytes", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}
