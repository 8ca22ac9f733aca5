// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package stackedmap provides a layered map with snapshot and revert.
package stackedmap

// StackedMap is a stack of maps. Reads fall through from the top level down to the source,
// writes go to the top level, and popping a level discards its writes.
type StackedMap[K comparable, V any] struct {
	src    Source[K, V]
	levels []*level[K, V]
	// key -> indexes of the levels holding it, ascending
	revs map[K][]int
}

type level[K comparable, V any] struct {
	kvs     map[K]V
	journal []JournalEntry[K, V]
}

// JournalEntry records one Put.
type JournalEntry[K comparable, V any] struct {
	Key   K
	Value V
}

// Source loads values missing from every level.
type Source[K comparable, V any] func(key K) (value V, exist bool, err error)

// New creates a StackedMap with one level.
func New[K comparable, V any](src Source[K, V]) *StackedMap[K, V] {
	sm := &StackedMap[K, V]{src: src, revs: make(map[K][]int)}
	sm.Push()
	return sm
}

// Depth returns the number of levels.
func (sm *StackedMap[K, V]) Depth() int {
	return len(sm.levels)
}

// Push adds a level and returns the depth before pushing.
func (sm *StackedMap[K, V]) Push() int {
	sm.levels = append(sm.levels, &level[K, V]{kvs: make(map[K]V)})
	return len(sm.levels) - 1
}

// Pop removes the top level with all its writes.
func (sm *StackedMap[K, V]) Pop() {
	n := len(sm.levels) - 1
	for key := range sm.levels[n].kvs {
		revs := sm.revs[key]
		if len(revs) == 1 {
			delete(sm.revs, key)
		} else {
			sm.revs[key] = revs[:len(revs)-1]
		}
	}
	sm.levels = sm.levels[:n]
}

// PopTo pops levels until depth is reached.
func (sm *StackedMap[K, V]) PopTo(depth int) {
	for len(sm.levels) > depth {
		sm.Pop()
	}
}

// Get returns the latest value of key.
func (sm *StackedMap[K, V]) Get(key K) (V, bool, error) {
	if revs, ok := sm.revs[key]; ok {
		return sm.levels[revs[len(revs)-1]].kvs[key], true, nil
	}
	return sm.src(key)
}

// Put writes key into the top level.
func (sm *StackedMap[K, V]) Put(key K, value V) {
	i := len(sm.levels) - 1
	top := sm.levels[i]
	if _, ok := top.kvs[key]; !ok {
		sm.revs[key] = append(sm.revs[key], i)
	}
	top.kvs[key] = value
	top.journal = append(top.journal, JournalEntry[K, V]{key, value})
}

// Journal calls cb for every Put still in the map, in write order, until cb returns false.
func (sm *StackedMap[K, V]) Journal(cb func(key K, value V) bool) {
	for _, lvl := range sm.levels {
		for _, e := range lvl.journal {
			if !cb(e.Key, e.Value) {
				return
			}
		}
	}
}
