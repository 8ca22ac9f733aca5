// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package smt

import (
	"io"

	"github.com/godwokenrises/godwoken-sub004/gw"
)

// Depth is the number of levels between the root and the leaves.
const Depth = 256

const (
	leafPrefix   byte = 0x00
	branchPrefix byte = 0x01
)

// bit returns the bit of key that selects the child of a node at depth d. Bits are taken most
// significant first, so sorted keys are also sorted leaves.
func bit(key *gw.Bytes32, d int) int {
	return int(key[d>>3]>>(7-uint(d&7))) & 1
}

// leafHash returns the hash of a leaf, zero for an absent value.
func leafHash(key, value *gw.Bytes32) gw.Bytes32 {
	if value.IsZero() {
		return gw.Bytes32{}
	}
	return gw.Blake2bFn(func(w io.Writer) {
		w.Write([]byte{leafPrefix})
		w.Write(key[:])
		w.Write(value[:])
	})
}

// merge returns the hash of a node from its children. Empty subtrees stay empty.
func merge(left, right *gw.Bytes32) gw.Bytes32 {
	if left.IsZero() && right.IsZero() {
		return gw.Bytes32{}
	}
	return gw.Blake2bFn(func(w io.Writer) {
		w.Write([]byte{branchPrefix})
		w.Write(left[:])
		w.Write(right[:])
	})
}

// shortcutHash returns the hash of the node at depth d whose subtree holds the single leaf
// key=value.
func shortcutHash(key, value *gw.Bytes32, d int) gw.Bytes32 {
	var (
		h    = leafHash(key, value)
		zero gw.Bytes32
	)
	for i := Depth - 1; i >= d; i-- {
		if bit(key, i) == 0 {
			h = merge(&h, &zero)
		} else {
			h = merge(&zero, &h)
		}
	}
	return h
}
