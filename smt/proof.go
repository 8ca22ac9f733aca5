// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package smt

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/gw"
)

var (
	errEmptyKeys     = errors.New("smt: empty key set")
	errDuplicatedKey = errors.New("smt: duplicated key")
	errBadProof      = errors.New("smt: malformed proof")
)

// Proof is a compiled multi-key merkle proof.
//
// Walking the tree from the root, each node whose keys all fall on one side needs the hash of the
// other side. The proof lists those sibling hashes in walk order:
//
//	uvarint(count) | bitmap(count bits, lsb first) | non-zero siblings
//
// A set bit marks a non-zero sibling. Padding bits must be zero and no byte may be left over.
type Proof []byte

func encodeProof(siblings []gw.Bytes32) Proof {
	var (
		count  = len(siblings)
		out    = binary.AppendUvarint(nil, uint64(count))
		bitmap = make([]byte, (count+7)/8)
		hashes []byte
	)
	for i := range siblings {
		if !siblings[i].IsZero() {
			bitmap[i/8] |= 1 << uint(i%8)
			hashes = append(hashes, siblings[i][:]...)
		}
	}
	out = append(out, bitmap...)
	return append(out, hashes...)
}

func decodeProof(p Proof) ([]gw.Bytes32, error) {
	count, n := binary.Uvarint(p)
	if n <= 0 || n != len(binary.AppendUvarint(nil, count)) {
		return nil, errBadProof
	}
	p = p[n:]
	// each sibling needs at least one bitmap bit
	if count > uint64(len(p))*8 {
		return nil, errBadProof
	}
	bitmapLen := int((count + 7) / 8)
	bitmap, hashes := p[:bitmapLen], p[bitmapLen:]
	if rem := count % 8; rem != 0 && bitmap[bitmapLen-1]>>rem != 0 {
		return nil, errBadProof
	}

	siblings := make([]gw.Bytes32, count)
	for i := range siblings {
		if bitmap[i/8]&(1<<uint(i%8)) == 0 {
			continue
		}
		if len(hashes) < 32 {
			return nil, errBadProof
		}
		copy(siblings[i][:], hashes[:32])
		if siblings[i].IsZero() {
			return nil, errBadProof
		}
		hashes = hashes[32:]
	}
	if len(hashes) != 0 {
		return nil, errBadProof
	}
	return siblings, nil
}

type pair struct {
	key, value gw.Bytes32
}

func sortedKeys(keys []gw.Bytes32) ([]gw.Bytes32, error) {
	if len(keys) == 0 {
		return nil, errEmptyKeys
	}
	sorted := append([]gw.Bytes32(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i][:], sorted[j][:]) < 0 })
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return nil, errDuplicatedKey
		}
	}
	return sorted, nil
}

func sortedPairs(keys, values []gw.Bytes32) ([]pair, error) {
	if len(keys) != len(values) {
		return nil, errors.New("smt: keys and values length mismatch")
	}
	if len(keys) == 0 {
		return nil, errEmptyKeys
	}
	pairs := make([]pair, len(keys))
	for i := range keys {
		pairs[i] = pair{keys[i], values[i]}
	}
	sort.Slice(pairs, func(i, j int) bool { return bytes.Compare(pairs[i].key[:], pairs[j].key[:]) < 0 })
	for i := 1; i < len(pairs); i++ {
		if pairs[i].key == pairs[i-1].key {
			return nil, errDuplicatedKey
		}
	}
	return pairs, nil
}

// MerkleProof returns the compiled proof of keys against the current root.
func (t *Tree) MerkleProof(keys []gw.Bytes32) (Proof, error) {
	sorted, err := sortedKeys(keys)
	if err != nil {
		return nil, err
	}
	var siblings []gw.Bytes32
	if err := t.prove(storedRef(t.root), 0, sorted, &siblings); err != nil {
		return nil, err
	}
	return encodeProof(siblings), nil
}

func (t *Tree) prove(r ref, d int, keys []gw.Bytes32, siblings *[]gw.Bytes32) error {
	if d == Depth {
		return nil
	}
	left, right, err := t.children(r, d)
	if err != nil {
		return err
	}
	i := sort.Search(len(keys), func(i int) bool { return bit(&keys[i], d) == 1 })
	switch {
	case i == 0:
		*siblings = append(*siblings, left.hashAt(d+1))
		return t.prove(right, d+1, keys, siblings)
	case i == len(keys):
		*siblings = append(*siblings, right.hashAt(d+1))
		return t.prove(left, d+1, keys, siblings)
	default:
		if err := t.prove(left, d+1, keys[:i], siblings); err != nil {
			return err
		}
		return t.prove(right, d+1, keys[i:], siblings)
	}
}

type rootComputer struct {
	siblings []gw.Bytes32
	pos      int
}

func (c *rootComputer) compute(d int, pairs []pair) (gw.Bytes32, error) {
	if d == Depth {
		return leafHash(&pairs[0].key, &pairs[0].value), nil
	}
	i := sort.Search(len(pairs), func(i int) bool { return bit(&pairs[i].key, d) == 1 })
	if i > 0 && i < len(pairs) {
		l, err := c.compute(d+1, pairs[:i])
		if err != nil {
			return gw.Bytes32{}, err
		}
		r, err := c.compute(d+1, pairs[i:])
		if err != nil {
			return gw.Bytes32{}, err
		}
		return merge(&l, &r), nil
	}

	if c.pos >= len(c.siblings) {
		return gw.Bytes32{}, errBadProof
	}
	sibling := c.siblings[c.pos]
	c.pos++
	child, err := c.compute(d+1, pairs)
	if err != nil {
		return gw.Bytes32{}, err
	}
	if i == 0 {
		return merge(&sibling, &child), nil
	}
	return merge(&child, &sibling), nil
}

func computeRoot(pairs []pair, siblings []gw.Bytes32) (gw.Bytes32, error) {
	c := rootComputer{siblings: siblings}
	root, err := c.compute(0, pairs)
	if err != nil {
		return gw.Bytes32{}, err
	}
	if c.pos != len(siblings) {
		return gw.Bytes32{}, errBadProof
	}
	return root, nil
}

// ComputeRoot returns the root of the tree proven by proof with keys set to values. Keys outside
// the proof keep the values they had when the proof was generated.
func ComputeRoot(keys, values []gw.Bytes32, proof Proof) (gw.Bytes32, error) {
	pairs, err := sortedPairs(keys, values)
	if err != nil {
		return gw.Bytes32{}, err
	}
	siblings, err := decodeProof(proof)
	if err != nil {
		return gw.Bytes32{}, err
	}
	return computeRoot(pairs, siblings)
}

// Verify reports whether proof shows that keys hold values under root.
func Verify(root gw.Bytes32, keys, values []gw.Bytes32, proof Proof) bool {
	computed, err := ComputeRoot(keys, values, proof)
	return err == nil && computed == root
}
