// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package smt

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/kv"
	"github.com/godwokenrises/godwoken-sub004/metrics"
)

var metricNodeCache = metrics.LazyLoadCounterVec("smt_node_cache_count", []string{"event"})

// Database loads tree nodes from a kv store. It is safe for concurrent use; trees opened from it
// are not.
type Database struct {
	store kv.Getter
	cache *lru.Cache
}

// NewDatabase creates a Database over store caching up to cacheSize node records.
func NewDatabase(store kv.Getter, cacheSize int) *Database {
	if cacheSize < 1 {
		cacheSize = 1
	}
	cache, _ := lru.New(cacheSize)
	return &Database{store, cache}
}

// NewMemTree returns an empty tree living only in memory.
func NewMemTree() *Tree {
	return NewDatabase(nil, 1).NewTree(gw.Bytes32{})
}

// NewTree opens the tree with the given root. A zero root is the empty tree.
func (db *Database) NewTree(root gw.Bytes32) *Tree {
	return &Tree{
		db:    db,
		root:  root,
		dirty: make(map[gw.Bytes32]*record),
	}
}

func (db *Database) load(h gw.Bytes32) (*record, error) {
	if db.store == nil {
		return nil, errors.Errorf("smt: missing node %v", h)
	}
	if cached, ok := db.cache.Get(h); ok {
		metricNodeCache().AddWithLabel(1, map[string]string{"event": "hit"})
		return cached.(*record), nil
	}
	metricNodeCache().AddWithLabel(1, map[string]string{"event": "miss"})

	data, err := db.store.Get(h[:])
	if err != nil {
		if db.store.IsNotFound(err) {
			return nil, errors.Errorf("smt: missing node %v", h)
		}
		return nil, errors.Wrap(err, "smt: load node")
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	db.cache.Add(h, rec)
	return rec, nil
}
