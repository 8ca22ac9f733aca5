// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package codec is the binary schema shared by the rollup node, the base chain validators and the
// gateway. Integers are fixed-width little-endian, vectors are length prefixed and unions carry a
// leading tag byte.
package codec

import (
	"bytes"
	"sync"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/spacemeshos/go-scale"
)

// Limits for length prefixed fields.
const (
	MaxBytes    = 1 << 20 // generic byte vector
	MaxArgs     = 128 * 1024
	MaxItems    = 1 << 16 // generic vector of structs
	MaxScriptSz = 1024
)

var errU128Overflow = errors.New("u128 overflow")

var bufPool = sync.Pool{
	New: func() any {
		b := new(bytes.Buffer)
		b.Grow(128)
		return b
	},
}

// Encode value to a new byte slice.
func Encode(value scale.Encodable) ([]byte, error) {
	b := bufPool.Get().(*bytes.Buffer)
	defer func() {
		b.Reset()
		bufPool.Put(b)
	}()
	if _, err := value.EncodeScale(scale.NewEncoder(b)); err != nil {
		return nil, errors.Wrap(err, "encode")
	}
	out := make([]byte, b.Len())
	copy(out, b.Bytes())
	return out, nil
}

// MustEncode is like Encode but panics on error. Only for values that can not fail, e.g. fixed
// size structs or ones already validated.
func MustEncode(value scale.Encodable) []byte {
	data, err := Encode(value)
	if err != nil {
		panic(err)
	}
	return data
}

// Decode value from buf. Trailing bytes are rejected.
func Decode(buf []byte, value scale.Decodable) error {
	r := bytes.NewReader(buf)
	if _, err := value.DecodeScale(scale.NewDecoder(r)); err != nil {
		return errors.Wrap(err, "decode")
	}
	if r.Len() != 0 {
		return errors.Errorf("decode: %d trailing bytes", r.Len())
	}
	return nil
}

// EncodeU128 writes v as a 16-byte little-endian array.
func EncodeU128(e *scale.Encoder, v *uint256.Int) (int, error) {
	var buf [16]byte
	if v != nil {
		var err error
		if buf, err = U128ToLE(v); err != nil {
			return 0, err
		}
	}
	return scale.EncodeByteArray(e, buf[:])
}

// DecodeU128 reads a 16-byte little-endian array.
func DecodeU128(d *scale.Decoder) (*uint256.Int, int, error) {
	var buf [16]byte
	n, err := scale.DecodeByteArray(d, buf[:])
	if err != nil {
		return nil, n, err
	}
	return U128FromLE(buf[:]), n, nil
}

// EncodeU256 writes v as a 32-byte little-endian array.
func EncodeU256(e *scale.Encoder, v *uint256.Int) (int, error) {
	var buf [32]byte
	if v != nil {
		be := v.Bytes32()
		for i := range buf {
			buf[i] = be[31-i]
		}
	}
	return scale.EncodeByteArray(e, buf[:])
}

// DecodeU256 reads a 32-byte little-endian array.
func DecodeU256(d *scale.Decoder) (*uint256.Int, int, error) {
	var buf [32]byte
	n, err := scale.DecodeByteArray(d, buf[:])
	if err != nil {
		return nil, n, err
	}
	return U128FromLE(buf[:]), n, nil
}

// U128FromLE converts little-endian bytes (at most 32) into an integer.
func U128FromLE(le []byte) *uint256.Int {
	be := make([]byte, len(le))
	for i := range le {
		be[len(le)-1-i] = le[i]
	}
	return new(uint256.Int).SetBytes(be)
}

// U128ToLE converts v into 16 little-endian bytes. v must fit in 128 bits.
func U128ToLE(v *uint256.Int) ([16]byte, error) {
	var out [16]byte
	if v[2] != 0 || v[3] != 0 {
		return out, errU128Overflow
	}
	be := v.Bytes32()
	for i := 0; i < 16; i++ {
		out[i] = be[31-i]
	}
	return out, nil
}

// IsU128 reports whether v fits in 128 bits.
func IsU128(v *uint256.Int) bool {
	return v[2] == 0 && v[3] == 0
}

// EncodeSlice writes a length prefixed vector of encodable items.
func EncodeSlice[T scale.Encodable](e *scale.Encoder, items []T, limit uint32) (int, error) {
	if uint64(len(items)) > uint64(limit) {
		return 0, errors.Errorf("vector of %d items exceeds limit %d", len(items), limit)
	}
	total, err := scale.EncodeCompact32(e, uint32(len(items)))
	if err != nil {
		return total, err
	}
	for _, item := range items {
		n, err := item.EncodeScale(e)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeSlice reads a vector written by EncodeSlice.
func DecodeSlice[T any, P interface {
	*T
	scale.Decodable
}](d *scale.Decoder, limit uint32) ([]*T, int, error) {
	count, total, err := scale.DecodeCompact32(d)
	if err != nil {
		return nil, total, err
	}
	if count > limit {
		return nil, total, errors.Errorf("vector of %d items exceeds limit %d", count, limit)
	}
	if count == 0 {
		return nil, total, nil
	}
	items := make([]*T, count)
	for i := range items {
		item := new(T)
		n, err := P(item).DecodeScale(d)
		if err != nil {
			return nil, total, err
		}
		total += n
		items[i] = item
	}
	return items, total, nil
}

// EncodeHashes writes a length prefixed vector of 32 byte hashes.
func EncodeHashes[H ~[32]byte](e *scale.Encoder, hashes []H, limit uint32) (int, error) {
	if uint64(len(hashes)) > uint64(limit) {
		return 0, errors.Errorf("vector of %d hashes exceeds limit %d", len(hashes), limit)
	}
	total, err := scale.EncodeCompact32(e, uint32(len(hashes)))
	if err != nil {
		return total, err
	}
	for i := range hashes {
		n, err := scale.EncodeByteArray(e, hashes[i][:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeHashes reads a vector written by EncodeHashes.
func DecodeHashes[H ~[32]byte](d *scale.Decoder, limit uint32) ([]H, int, error) {
	count, total, err := scale.DecodeCompact32(d)
	if err != nil {
		return nil, total, err
	}
	if count > limit {
		return nil, total, errors.Errorf("vector of %d hashes exceeds limit %d", count, limit)
	}
	if count == 0 {
		return nil, total, nil
	}
	hashes := make([]H, count)
	for i := range hashes {
		n, err := scale.DecodeByteArray(d, hashes[i][:])
		if err != nil {
			return nil, total, err
		}
		total += n
	}
	return hashes, total, nil
}
