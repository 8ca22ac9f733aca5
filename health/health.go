// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"sync"
	"time"

	"github.com/godwokenrises/godwoken-sub004/gw"
)

// delayBuffer tolerates a late block on top of the block interval.
const delayBuffer = 5 * time.Second

type BlockProduction struct {
	TipNumber    uint64      `json:"tipNumber"`
	TipHash      *gw.Bytes32 `json:"tipHash"`
	TipTimestamp *time.Time  `json:"tipTimestamp"`
}

type Status struct {
	Healthy         bool             `json:"healthy"`
	BlockProduction *BlockProduction `json:"blockProduction"`
	BaseChainSynced bool             `json:"baseChainSynced"`
}

// Health tracks the liveness of the producer loop.
type Health struct {
	lock          sync.RWMutex
	blockInterval time.Duration
	newTip        time.Time
	tipNumber     uint64
	tipHash       *gw.Bytes32
	synced        bool
}

func New(blockInterval time.Duration) *Health {
	return &Health{blockInterval: blockInterval}
}

// NewTip records a committed tip block.
func (h *Health) NewTip(number uint64, hash gw.Bytes32) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.newTip = time.Now()
	h.tipNumber = number
	h.tipHash = &hash
}

// BaseChainSynced records whether the base chain view caught up.
func (h *Health) BaseChainSynced(synced bool) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.synced = synced
}

// Status reports healthy when synced and the last tip is no older than maxTimeBetweenBlocks,
// or the block interval plus a buffer when zero.
func (h *Health) Status(maxTimeBetweenBlocks time.Duration) *Status {
	h.lock.RLock()
	defer h.lock.RUnlock()

	if maxTimeBetweenBlocks == 0 {
		maxTimeBetweenBlocks = h.blockInterval + delayBuffer
	}
	production := &BlockProduction{
		TipNumber: h.tipNumber,
		TipHash:   h.tipHash,
	}
	if h.tipHash != nil {
		ts := h.newTip
		production.TipTimestamp = &ts
	}
	return &Status{
		Healthy:         h.synced && h.tipHash != nil && time.Since(h.newTip) <= maxTimeBetweenBlocks,
		BlockProduction: production,
		BaseChainSynced: h.synced,
	}
}
