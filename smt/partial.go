// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package smt

import (
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/gw"
)

// ErrKeyNotProven is returned when a PartialTree is accessed outside its proven keys.
var ErrKeyNotProven = errors.New("smt: key not proven")

// PartialTree is a tree known only at the keys of a verified proof. Values of proven keys can be
// read and changed and the root follows.
type PartialTree struct {
	pairs    []pair
	index    map[gw.Bytes32]int
	siblings []gw.Bytes32
	root     gw.Bytes32
	stale    bool
}

// NewPartialTree verifies that keys hold values under root and returns the partial tree.
func NewPartialTree(root gw.Bytes32, keys, values []gw.Bytes32, proof Proof) (*PartialTree, error) {
	pairs, err := sortedPairs(keys, values)
	if err != nil {
		return nil, err
	}
	siblings, err := decodeProof(proof)
	if err != nil {
		return nil, err
	}
	computed, err := computeRoot(pairs, siblings)
	if err != nil {
		return nil, err
	}
	if computed != root {
		return nil, errors.Errorf("smt: proof root %v, want %v", computed, root)
	}
	index := make(map[gw.Bytes32]int, len(pairs))
	for i := range pairs {
		index[pairs[i].key] = i
	}
	return &PartialTree{pairs, index, siblings, root, false}, nil
}

// Get returns the value of a proven key.
func (p *PartialTree) Get(key gw.Bytes32) (gw.Bytes32, error) {
	i, ok := p.index[key]
	if !ok {
		return gw.Bytes32{}, errors.WithMessagef(ErrKeyNotProven, "get %v", key)
	}
	return p.pairs[i].value, nil
}

// Update changes the value of a proven key.
func (p *PartialTree) Update(key, value gw.Bytes32) error {
	i, ok := p.index[key]
	if !ok {
		return errors.WithMessagef(ErrKeyNotProven, "update %v", key)
	}
	if p.pairs[i].value != value {
		p.pairs[i].value = value
		p.stale = true
	}
	return nil
}

// Root returns the root with the current values.
func (p *PartialTree) Root() gw.Bytes32 {
	if p.stale {
		root, err := computeRoot(p.pairs, p.siblings)
		if err != nil {
			// the walk only depends on the keys, which were checked at creation
			panic(err)
		}
		p.root = root
		p.stale = false
	}
	return p.root
}

// Keys returns the proven keys in tree order.
func (p *PartialTree) Keys() []gw.Bytes32 {
	keys := make([]gw.Bytes32, len(p.pairs))
	for i := range p.pairs {
		keys[i] = p.pairs[i].key
	}
	return keys
}
