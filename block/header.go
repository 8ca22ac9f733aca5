// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package block

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/spacemeshos/go-scale"

	"github.com/godwokenrises/godwoken-sub004/codec"
	"github.com/godwokenrises/godwoken-sub004/gw"
)

// SubmitTransactions commits the transactions of a block.
type SubmitTransactions struct {
	TxWitnessRoot gw.Bytes32
	TxCount       uint32
	// PrevStateCheckpoint is the checkpoint after deposits, before the first tx or withdrawal.
	PrevStateCheckpoint gw.Bytes32
}

// SubmitWithdrawals commits the withdrawals of a block.
type SubmitWithdrawals struct {
	WithdrawalWitnessRoot gw.Bytes32
	WithdrawalCount       uint32
}

// Raw is the content of a header.
type Raw struct {
	Number                 uint64
	BlockProducer          gw.RegistryAddress
	ParentHash             gw.Bytes32
	StakeCellOwnerLockHash gw.Bytes32
	Timestamp              uint64
	PrevAccount            gw.AccountMerkleState
	PostAccount            gw.AccountMerkleState
	// StateCheckpoints holds the checkpoint after each tx then after each withdrawal.
	StateCheckpoints   []gw.Bytes32
	SubmitTransactions SubmitTransactions
	SubmitWithdrawals  SubmitWithdrawals
}

// Header is the committed part of a layer2 block. It's immutable.
type Header struct {
	body Raw

	cache struct {
		hash atomic.Pointer[gw.Bytes32]
	}
}

// NewHeader creates a header.
func NewHeader(raw Raw) *Header {
	raw.StateCheckpoints = append([]gw.Bytes32(nil), raw.StateCheckpoints...)
	raw.BlockProducer = gw.NewRegistryAddress(raw.BlockProducer.RegistryID, raw.BlockProducer.Address)
	return &Header{body: raw}
}

// Raw returns a copy of the header content.
func (h *Header) Raw() Raw {
	raw := h.body
	raw.StateCheckpoints = h.StateCheckpoints()
	raw.BlockProducer = h.BlockProducer()
	return raw
}

// Number returns the block number.
func (h *Header) Number() uint64 { return h.body.Number }

// ParentHash returns the parent block hash.
func (h *Header) ParentHash() gw.Bytes32 { return h.body.ParentHash }

// Timestamp returns the block timestamp in milliseconds.
func (h *Header) Timestamp() uint64 { return h.body.Timestamp }

// BlockProducer returns the registry address of the producer.
func (h *Header) BlockProducer() gw.RegistryAddress {
	return gw.NewRegistryAddress(h.body.BlockProducer.RegistryID, h.body.BlockProducer.Address)
}

// StakeCellOwnerLockHash returns the owner lock of the stake backing this block.
func (h *Header) StakeCellOwnerLockHash() gw.Bytes32 { return h.body.StakeCellOwnerLockHash }

// PrevAccount returns the account state before the block.
func (h *Header) PrevAccount() gw.AccountMerkleState { return h.body.PrevAccount }

// PostAccount returns the account state after the block.
func (h *Header) PostAccount() gw.AccountMerkleState { return h.body.PostAccount }

// StateCheckpoints returns a copy of the checkpoint list.
func (h *Header) StateCheckpoints() []gw.Bytes32 {
	return append([]gw.Bytes32(nil), h.body.StateCheckpoints...)
}

// SubmitTransactions returns the tx commitment.
func (h *Header) SubmitTransactions() SubmitTransactions { return h.body.SubmitTransactions }

// SubmitWithdrawals returns the withdrawal commitment.
func (h *Header) SubmitWithdrawals() SubmitWithdrawals { return h.body.SubmitWithdrawals }

// PrevCheckpointOf returns the checkpoint before the operation at index of the checkpoint list,
// where txs come first and withdrawals follow.
func (h *Header) PrevCheckpointOf(index int) gw.Bytes32 {
	if index == 0 {
		return h.body.SubmitTransactions.PrevStateCheckpoint
	}
	return h.body.StateCheckpoints[index-1]
}

// Hash returns blake2b of the encoded header.
func (h *Header) Hash() gw.Bytes32 {
	if cached := h.cache.hash.Load(); cached != nil {
		return *cached
	}
	hash := gw.Blake2bFn(func(w io.Writer) {
		h.body.EncodeScale(scale.NewEncoder(w))
	})
	h.cache.hash.Store(&hash)
	return hash
}

func (h *Header) String() string {
	return fmt.Sprintf(`Header(%v):
	Number:           %v
	ParentHash:       %v
	Timestamp:        %v
	Producer:         %v
	PrevAccount:      %v/%v
	PostAccount:      %v/%v
	TxCount:          %v
	WithdrawalCount:  %v`, h.Hash(), h.body.Number, h.body.ParentHash, h.body.Timestamp,
		h.body.BlockProducer, h.body.PrevAccount.MerkleRoot, h.body.PrevAccount.Count,
		h.body.PostAccount.MerkleRoot, h.body.PostAccount.Count,
		h.body.SubmitTransactions.TxCount, h.body.SubmitWithdrawals.WithdrawalCount)
}

// EncodeScale implements scale codec interface.
func (h *Header) EncodeScale(e *scale.Encoder) (int, error) {
	return h.body.EncodeScale(e)
}

// DecodeScale implements scale codec interface.
func (h *Header) DecodeScale(d *scale.Decoder) (int, error) {
	var raw Raw
	n, err := raw.DecodeScale(d)
	if err != nil {
		return n, err
	}
	*h = Header{body: raw}
	return n, nil
}

// EncodeScale implements scale codec interface.
func (r *Raw) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeUint64(e, r.Number)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := r.BlockProducer.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	for _, h := range []*gw.Bytes32{&r.ParentHash, &r.StakeCellOwnerLockHash} {
		n, err := h.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeUint64(e, r.Timestamp)
		if err != nil {
			return total, err
		}
		total += n
	}
	for _, s := range []*gw.AccountMerkleState{&r.PrevAccount, &r.PostAccount} {
		n, err := s.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := codec.EncodeHashes(e, r.StateCheckpoints, codec.MaxItems)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := r.SubmitTransactions.TxWitnessRoot.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeUint32(e, r.SubmitTransactions.TxCount)
		if err != nil {
			return total, err
		}
		total += n
	}
	for _, h := range []*gw.Bytes32{&r.SubmitTransactions.PrevStateCheckpoint, &r.SubmitWithdrawals.WithdrawalWitnessRoot} {
		n, err := h.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeUint32(e, r.SubmitWithdrawals.WithdrawalCount)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (r *Raw) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		field, n, err := scale.DecodeUint64(d)
		if err != nil {
			return total, err
		}
		total += n
		r.Number = field
	}
	{
		n, err := r.BlockProducer.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	for _, h := range []*gw.Bytes32{&r.ParentHash, &r.StakeCellOwnerLockHash} {
		n, err := h.DecodeScale(d)
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
		r.Timestamp = field
	}
	for _, s := range []*gw.AccountMerkleState{&r.PrevAccount, &r.PostAccount} {
		n, err := s.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := codec.DecodeHashes[gw.Bytes32](d, codec.MaxItems)
		if err != nil {
			return total, err
		}
		total += n
		r.StateCheckpoints = field
	}
	{
		n, err := r.SubmitTransactions.TxWitnessRoot.DecodeScale(d)
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
		r.SubmitTransactions.TxCount = field
	}
	for _, h := range []*gw.Bytes32{&r.SubmitTransactions.PrevStateCheckpoint, &r.SubmitWithdrawals.WithdrawalWitnessRoot} {
		n, err := h.DecodeScale(d)
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
		r.SubmitWithdrawals.WithdrawalCount = field
	}
	return total, nil
}
