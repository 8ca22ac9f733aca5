// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"encoding/json"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/godwokenrises/godwoken-sub004/gw"
)

// messageCache shares the encoded message of a block among subscribers.
type messageCache struct {
	cache *lru.Cache
	mu    sync.Mutex
}

func newMessageCache(cacheSize uint32) *messageCache {
	cacheSize = min(max(cacheSize, 1), 1000)
	cache, err := lru.New(int(cacheSize))
	if err != nil {
		panic(fmt.Errorf("failed to create message cache: %v", err))
	}
	return &messageCache{
		cache: cache,
	}
}

// GetOrAdd returns the encoded message of the block hash, creating it when missing.
// The second return value indicates whether the message is newly created.
func (mc *messageCache) GetOrAdd(hash gw.Bytes32, create func() (any, error)) (json.RawMessage, bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if msg, ok := mc.cache.Get(hash); ok {
		return msg.(json.RawMessage), false, nil
	}
	v, err := create()
	if err != nil {
		return nil, false, err
	}
	msg, err := json.Marshal(v)
	if err != nil {
		return nil, false, err
	}
	mc.cache.Add(hash, json.RawMessage(msg))
	return msg, true, nil
}
