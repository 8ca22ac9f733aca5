// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package smt implements the sparse merkle tree holding the layer2 state.
//
// The tree is the canonical binary tree of depth 256 keyed by 32 bytes. Subtrees with a single
// leaf are persisted as shortcut records, so a tree with n leaves stores O(n log n) records at
// most while roots stay identical to the full tree.
package smt

import (
	"maps"

	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/kv"
)

// Tree is a mutable view of the tree at some root. Modifications stay in memory until Commit.
type Tree struct {
	db    *Database
	root  gw.Bytes32
	dirty map[gw.Bytes32]*record
}

// Root returns the current root hash.
func (t *Tree) Root() gw.Bytes32 {
	return t.root
}

// Copy returns an independent copy sharing the database.
func (t *Tree) Copy() *Tree {
	return &Tree{
		db:    t.db,
		root:  t.root,
		dirty: maps.Clone(t.dirty),
	}
}

func (t *Tree) load(h gw.Bytes32) (*record, error) {
	if rec, ok := t.dirty[h]; ok {
		return rec, nil
	}
	return t.db.load(h)
}

// expand resolves a stored ref into a short ref or a branch with its record.
func (t *Tree) expand(r ref) (ref, *record, error) {
	if r.kind != refStored && r.kind != refBranch {
		return r, nil, nil
	}
	rec, err := t.load(r.hash)
	if err != nil {
		return ref{}, nil, err
	}
	if rec.shortcut {
		return shortRef(rec.a, rec.b), nil, nil
	}
	return ref{kind: refBranch, hash: r.hash}, rec, nil
}

// children returns both children of the node r at depth d.
func (t *Tree) children(r ref, d int) (ref, ref, error) {
	r, rec, err := t.expand(r)
	if err != nil {
		return ref{}, ref{}, err
	}
	switch r.kind {
	case refEmpty:
		return ref{}, ref{}, nil
	case refShort:
		if bit(&r.key, d) == 0 {
			return r, ref{}, nil
		}
		return ref{}, r, nil
	default:
		return storedRef(rec.a), storedRef(rec.b), nil
	}
}

// Get returns the value of key, zero if absent.
func (t *Tree) Get(key gw.Bytes32) (gw.Bytes32, error) {
	var (
		r   = storedRef(t.root)
		rec *record
		err error
	)
	for d := 0; ; d++ {
		if r, rec, err = t.expand(r); err != nil {
			return gw.Bytes32{}, err
		}
		switch r.kind {
		case refEmpty:
			return gw.Bytes32{}, nil
		case refShort:
			if r.key == key {
				return r.value, nil
			}
			return gw.Bytes32{}, nil
		}
		if bit(&key, d) == 0 {
			r = storedRef(rec.a)
		} else {
			r = storedRef(rec.b)
		}
	}
}

// Update sets key to value. A zero value deletes the key.
func (t *Tree) Update(key, value gw.Bytes32) error {
	r, err := t.update(storedRef(t.root), 0, &key, &value)
	if err != nil {
		return err
	}
	t.root = t.materialize(r, 0)
	return nil
}

func (t *Tree) update(r ref, d int, key, value *gw.Bytes32) (ref, error) {
	r, rec, err := t.expand(r)
	if err != nil {
		return ref{}, err
	}
	switch r.kind {
	case refEmpty:
		if value.IsZero() {
			return ref{}, nil
		}
		return shortRef(*key, *value), nil
	case refShort:
		if r.key == *key {
			if value.IsZero() {
				return ref{}, nil
			}
			return shortRef(*key, *value), nil
		}
		if value.IsZero() {
			return r, nil
		}
		return t.fork(r, shortRef(*key, *value), d)
	}

	left, right := storedRef(rec.a), storedRef(rec.b)
	if bit(key, d) == 0 {
		left, err = t.update(left, d+1, key, value)
	} else {
		right, err = t.update(right, d+1, key, value)
	}
	if err != nil {
		return ref{}, err
	}
	return t.join(left, right, d)
}

// fork builds the subtree at depth d holding two single leaf subtrees with distinct keys.
func (t *Tree) fork(a, b ref, d int) (ref, error) {
	ba, bb := bit(&a.key, d), bit(&b.key, d)
	if ba != bb {
		if ba == 0 {
			return t.join(a, b, d)
		}
		return t.join(b, a, d)
	}
	child, err := t.fork(a, b, d+1)
	if err != nil {
		return ref{}, err
	}
	if ba == 0 {
		return t.join(child, ref{}, d)
	}
	return t.join(ref{}, child, d)
}

// join creates the node at depth d from its children. A single leaf subtree next to an empty one
// moves up instead of creating a branch.
func (t *Tree) join(left, right ref, d int) (ref, error) {
	if left.kind == refEmpty || right.kind == refEmpty {
		other := left
		if other.kind == refEmpty {
			other = right
		}
		if other.kind == refEmpty {
			return ref{}, nil
		}
		other, _, err := t.expand(other)
		if err != nil {
			return ref{}, err
		}
		if other.kind == refShort {
			return other, nil
		}
	}
	rec := &record{
		a: t.materialize(left, d+1),
		b: t.materialize(right, d+1),
	}
	h := merge(&rec.a, &rec.b)
	t.dirty[h] = rec
	return ref{kind: refBranch, hash: h}, nil
}

// materialize returns the hash of r at depth d, recording shortcut nodes on the way.
func (t *Tree) materialize(r ref, d int) gw.Bytes32 {
	if r.kind != refShort {
		return r.hashAt(d)
	}
	h := shortcutHash(&r.key, &r.value, d)
	t.dirty[h] = &record{shortcut: true, a: r.key, b: r.value}
	return h
}

// Commit writes nodes reachable from the current root to w and clears pending writes.
func (t *Tree) Commit(w kv.Putter) error {
	var walk func(h gw.Bytes32) error
	walk = func(h gw.Bytes32) error {
		rec, ok := t.dirty[h]
		if !ok {
			return nil
		}
		if err := w.Put(h[:], rec.encode()); err != nil {
			return err
		}
		t.db.cache.Add(h, rec)
		if rec.shortcut {
			return nil
		}
		if err := walk(rec.a); err != nil {
			return err
		}
		return walk(rec.b)
	}
	if err := walk(t.root); err != nil {
		return err
	}
	t.dirty = make(map[gw.Bytes32]*record)
	return nil
}
