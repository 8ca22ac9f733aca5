// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"crypto/ecdsa"
	"io"
	"sync/atomic"

	"github.com/holiman/uint256"
	"github.com/spacemeshos/go-scale"

	"github.com/godwokenrises/godwoken-sub004/codec"
	"github.com/godwokenrises/godwoken-sub004/gw"
)

// RawWithdrawal is the signed part of a withdrawal request.
type RawWithdrawal struct {
	Nonce             uint32
	ChainID           uint64
	Capacity          uint64
	Amount            *uint256.Int
	SUDTScriptHash    gw.Bytes32
	AccountScriptHash gw.Bytes32
	RegistryID        uint32
	// OwnerLockHash is the base chain lock receiving the withdrawn assets.
	OwnerLockHash gw.Bytes32
	Fee           *uint256.Int
}

// Withdrawal moves assets from a layer2 account back to the base chain.
type Withdrawal struct {
	raw       RawWithdrawal
	signature []byte

	cache struct {
		hash        atomic.Pointer[gw.Bytes32]
		witnessHash atomic.Pointer[gw.Bytes32]
	}
}

// NewWithdrawal creates an unsigned withdrawal.
func NewWithdrawal(raw RawWithdrawal) *Withdrawal {
	raw.Amount = copyU128(raw.Amount)
	raw.Fee = copyU128(raw.Fee)
	return &Withdrawal{raw: raw}
}

func copyU128(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

// Raw returns a copy of the signed fields.
func (w *Withdrawal) Raw() RawWithdrawal {
	raw := w.raw
	raw.Amount = copyU128(w.raw.Amount)
	raw.Fee = copyU128(w.raw.Fee)
	return raw
}

// Nonce returns the account nonce consumed by the withdrawal.
func (w *Withdrawal) Nonce() uint32 { return w.raw.Nonce }

// AccountScriptHash returns the script hash of the withdrawing account.
func (w *Withdrawal) AccountScriptHash() gw.Bytes32 { return w.raw.AccountScriptHash }

// Signature returns a copy of the signature.
func (w *Withdrawal) Signature() []byte {
	return append([]byte(nil), w.signature...)
}

// WithSignature returns a copy of w with sig set.
func (w *Withdrawal) WithSignature(sig []byte) *Withdrawal {
	return &Withdrawal{raw: w.Raw(), signature: append([]byte(nil), sig...)}
}

// Hash returns blake2b of the encoded raw withdrawal.
func (w *Withdrawal) Hash() gw.Bytes32 {
	if cached := w.cache.hash.Load(); cached != nil {
		return *cached
	}
	h := gw.Blake2bFn(func(wr io.Writer) {
		w.raw.EncodeScale(scale.NewEncoder(wr))
	})
	w.cache.hash.Store(&h)
	return h
}

// WitnessHash returns blake2b of the encoded withdrawal including the signature.
func (w *Withdrawal) WitnessHash() gw.Bytes32 {
	if cached := w.cache.witnessHash.Load(); cached != nil {
		return *cached
	}
	h := gw.Blake2bFn(func(wr io.Writer) {
		w.EncodeScale(scale.NewEncoder(wr))
	})
	w.cache.witnessHash.Store(&h)
	return h
}

// Size returns the encoded size.
func (w *Withdrawal) Size() int {
	return len(codec.MustEncode(w))
}

// SignWithdrawal signs w with pk.
func SignWithdrawal(w *Withdrawal, rollupScriptHash gw.Bytes32, pk *ecdsa.PrivateKey) (*Withdrawal, error) {
	sig, err := SignMessage(SigningMessage(rollupScriptHash, w.Hash()), pk)
	if err != nil {
		return nil, err
	}
	return w.WithSignature(sig), nil
}

// Withdrawals a slice of withdrawals.
type Withdrawals []*Withdrawal

// WitnessRoot returns the root of the witness hashes keyed by index.
func (ws Withdrawals) WitnessRoot() gw.Bytes32 {
	hashes := make([]gw.Bytes32, len(ws))
	for i, w := range ws {
		hashes[i] = w.WitnessHash()
	}
	return WitnessRoot(hashes)
}

// EncodeScale implements scale codec interface.
func (w *Withdrawal) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := w.raw.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteSliceWithLimit(e, w.signature, SignatureLength)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (w *Withdrawal) DecodeScale(d *scale.Decoder) (total int, err error) {
	var raw RawWithdrawal
	{
		n, err := raw.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeByteSliceWithLimit(d, SignatureLength)
		if err != nil {
			return total, err
		}
		total += n
		*w = Withdrawal{raw: raw, signature: field}
	}
	return total, nil
}

// EncodeScale implements scale codec interface.
func (r *RawWithdrawal) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeUint32(e, r.Nonce)
		if err != nil {
			return total, err
		}
		total += n
	}
	for _, v := range []uint64{r.ChainID, r.Capacity} {
		n, err := scale.EncodeUint64(e, v)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := codec.EncodeU128(e, r.Amount)
		if err != nil {
			return total, err
		}
		total += n
	}
	for _, h := range []*gw.Bytes32{&r.SUDTScriptHash, &r.AccountScriptHash} {
		n, err := h.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeUint32(e, r.RegistryID)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := r.OwnerLockHash.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := codec.EncodeU128(e, r.Fee)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (r *RawWithdrawal) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		field, n, err := scale.DecodeUint32(d)
		if err != nil {
			return total, err
		}
		total += n
		r.Nonce = field
	}
	for _, p := range []*uint64{&r.ChainID, &r.Capacity} {
		field, n, err := scale.DecodeUint64(d)
		if err != nil {
			return total, err
		}
		total += n
		*p = field
	}
	{
		field, n, err := codec.DecodeU128(d)
		if err != nil {
			return total, err
		}
		total += n
		r.Amount = field
	}
	for _, h := range []*gw.Bytes32{&r.SUDTScriptHash, &r.AccountScriptHash} {
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
		r.RegistryID = field
	}
	{
		n, err := r.OwnerLockHash.DecodeScale(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := codec.DecodeU128(d)
		if err != nil {
			return total, err
		}
		total += n
		r.Fee = field
	}
	return total, nil
}
