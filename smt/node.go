// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package smt

import (
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/gw"
)

const (
	recordBranch   byte = 0x01
	recordShortcut byte = 0x02

	recordSize = 1 + 64
)

// record is the persisted form of a node. A branch keeps the hashes of both children, a
// shortcut keeps the only leaf of its subtree.
type record struct {
	shortcut bool
	a, b     gw.Bytes32 // left/right or key/value
}

func (r *record) encode() []byte {
	buf := make([]byte, recordSize)
	if r.shortcut {
		buf[0] = recordShortcut
	} else {
		buf[0] = recordBranch
	}
	copy(buf[1:33], r.a[:])
	copy(buf[33:], r.b[:])
	return buf
}

func decodeRecord(data []byte) (*record, error) {
	if len(data) != recordSize {
		return nil, errors.Errorf("smt: bad record size %d", len(data))
	}
	var r record
	switch data[0] {
	case recordBranch:
	case recordShortcut:
		r.shortcut = true
	default:
		return nil, errors.Errorf("smt: bad record tag %d", data[0])
	}
	copy(r.a[:], data[1:33])
	copy(r.b[:], data[33:])
	return &r, nil
}

type refKind byte

const (
	refEmpty  refKind = iota
	refStored         // persisted or pending node, kind unknown until loaded
	refBranch         // persisted or pending branch
	refShort          // single leaf subtree, not yet materialized at this depth
)

// ref points to a subtree while walking the tree.
type ref struct {
	kind       refKind
	hash       gw.Bytes32 // refStored, refBranch
	key, value gw.Bytes32 // refShort
}

func storedRef(h gw.Bytes32) ref {
	if h.IsZero() {
		return ref{}
	}
	return ref{kind: refStored, hash: h}
}

func shortRef(key, value gw.Bytes32) ref {
	return ref{kind: refShort, key: key, value: value}
}

// hashAt returns the hash of the subtree when rooted at depth d.
func (r *ref) hashAt(d int) gw.Bytes32 {
	switch r.kind {
	case refShort:
		return shortcutHash(&r.key, &r.value, d)
	case refEmpty:
		return gw.Bytes32{}
	default:
		return r.hash
	}
}
