// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/spacemeshos/go-scale"

	"github.com/godwokenrises/godwoken-sub004/codec"
	"github.com/godwokenrises/godwoken-sub004/gw"
)

// SignatureLength is the length of a recoverable secp256k1 signature.
const SignatureLength = 65

// Transaction is an immutable layer2 transaction.
type Transaction struct {
	body body

	cache struct {
		hash        atomic.Pointer[gw.Bytes32]
		witnessHash atomic.Pointer[gw.Bytes32]
		size        atomic.Int64
	}
}

type body struct {
	raw       raw
	signature []byte
}

type raw struct {
	ChainID uint64
	FromID  uint32
	ToID    uint32
	Nonce   uint32
	Args    []byte
}

// ChainID returns the chain id the tx is bound to.
func (t *Transaction) ChainID() uint64 { return t.body.raw.ChainID }

// FromID returns the sender account id.
func (t *Transaction) FromID() uint32 { return t.body.raw.FromID }

// ToID returns the account id of the called backend.
func (t *Transaction) ToID() uint32 { return t.body.raw.ToID }

// Nonce returns the sender nonce.
func (t *Transaction) Nonce() uint32 { return t.body.raw.Nonce }

// Args returns a copy of the call args.
func (t *Transaction) Args() []byte {
	return append([]byte(nil), t.body.raw.Args...)
}

// Signature returns a copy of the signature.
func (t *Transaction) Signature() []byte {
	return append([]byte(nil), t.body.signature...)
}

// Hash returns blake2b of the encoded raw transaction.
func (t *Transaction) Hash() gw.Bytes32 {
	if cached := t.cache.hash.Load(); cached != nil {
		return *cached
	}
	h := gw.Blake2bFn(func(w io.Writer) {
		t.body.raw.EncodeScale(scale.NewEncoder(w))
	})
	t.cache.hash.Store(&h)
	return h
}

// WitnessHash returns blake2b of the encoded transaction including the signature.
func (t *Transaction) WitnessHash() gw.Bytes32 {
	if cached := t.cache.witnessHash.Load(); cached != nil {
		return *cached
	}
	h := gw.Blake2bFn(func(w io.Writer) {
		t.EncodeScale(scale.NewEncoder(w))
	})
	t.cache.witnessHash.Store(&h)
	return h
}

// Size returns the encoded size.
func (t *Transaction) Size() int {
	if size := t.cache.size.Load(); size > 0 {
		return int(size)
	}
	size := len(codec.MustEncode(t))
	t.cache.size.Store(int64(size))
	return size
}

// WithSignature returns a copy of t with sig set.
func (t *Transaction) WithSignature(sig []byte) *Transaction {
	newTx := Transaction{body: t.body}
	newTx.body.signature = append([]byte(nil), sig...)
	return &newTx
}

func (t *Transaction) String() string {
	return fmt.Sprintf(`Tx(%v)
	ChainID: %v
	From:    %v
	To:      %v
	Nonce:   %v
	Args:    0x%x
	Sig:     0x%x`, t.Hash(), t.body.raw.ChainID, t.body.raw.FromID, t.body.raw.ToID,
		t.body.raw.Nonce, t.body.raw.Args, t.body.signature)
}

// EncodeScale implements scale codec interface.
func (t *Transaction) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := t.body.raw.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteSliceWithLimit(e, t.body.signature, SignatureLength)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (t *Transaction) DecodeScale(d *scale.Decoder) (total int, err error) {
	var b body
	{
		n, err := b.raw.DecodeScale(d)
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
		b.signature = field
	}
	*t = Transaction{body: b}
	return total, nil
}

// EncodeScale implements scale codec interface.
func (r *raw) EncodeScale(e *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeUint64(e, r.ChainID)
		if err != nil {
			return total, err
		}
		total += n
	}
	for _, v := range []uint32{r.FromID, r.ToID, r.Nonce} {
		n, err := scale.EncodeUint32(e, v)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteSliceWithLimit(e, r.Args, gw.MaxTxArgsSize)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (r *raw) DecodeScale(d *scale.Decoder) (total int, err error) {
	{
		field, n, err := scale.DecodeUint64(d)
		if err != nil {
			return total, err
		}
		total += n
		r.ChainID = field
	}
	for _, p := range []*uint32{&r.FromID, &r.ToID, &r.Nonce} {
		field, n, err := scale.DecodeUint32(d)
		if err != nil {
			return total, err
		}
		total += n
		*p = field
	}
	{
		field, n, err := scale.DecodeByteSliceWithLimit(d, gw.MaxTxArgsSize)
		if err != nil {
			return total, err
		}
		total += n
		r.Args = field
	}
	return total, nil
}
