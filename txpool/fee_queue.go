// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package txpool

import (
	"container/heap"
	"sort"
)

const (
	// DefaultQueueLimit max number of queued txs and withdrawals.
	DefaultQueueLimit = 100_000
	// DefaultQueueDrop number of lowest priority items dropped when the queue is over the limit.
	DefaultQueueDrop = 100
)

type feeHeap []*txObject

func (h feeHeap) Len() int           { return len(h) }
func (h feeHeap) Less(i, j int) bool { return h[i].prior(h[j]) }
func (h feeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *feeHeap) Push(x any)        { *h = append(*h, x.(*txObject)) }
func (h *feeHeap) Pop() any {
	old := *h
	n := len(old)
	obj := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return obj
}

// feeQueue orders txs and withdrawals by fee rate.
type feeQueue struct {
	items feeHeap
	limit int
	drop  int
}

func newFeeQueue(limit, drop int) *feeQueue {
	return &feeQueue{limit: limit, drop: drop}
}

func (q *feeQueue) Len() int {
	return q.items.Len()
}

// Add pushes obj. When the queue goes over its limit, the lowest priority items are dropped and
// returned.
func (q *feeQueue) Add(obj *txObject) (dropped []*txObject) {
	heap.Push(&q.items, obj)
	if q.items.Len() <= q.limit {
		return nil
	}
	sort.Slice(q.items, q.items.Less)
	keep := max(q.items.Len()-q.drop, 0)
	dropped = append(dropped, q.items[keep:]...)
	clear(q.items[keep:])
	q.items = q.items[:keep]
	heap.Init(&q.items)
	metricQueueDropped().Add(int64(len(dropped)))
	return dropped
}

// Fetch pops up to count items in priority order, taking only the item carrying the next nonce
// of its sender. nonceOf returns the nonce expected from a sender before this fetch.
//
// Items with a stale nonce are dropped. Items with a future nonce are pushed back when another
// item of the same sender was fetched, and dropped otherwise.
func (q *feeQueue) Fetch(nonceOf func(sender uint32) (uint32, error), count int) (fetched, dropped []*txObject, err error) {
	var (
		next   = make(map[uint32]uint32)
		future []*txObject
	)
	for q.items.Len() > 0 && len(fetched) < count {
		obj := heap.Pop(&q.items).(*txObject)
		nonce, ok := next[obj.sender]
		if !ok {
			if nonce, err = nonceOf(obj.sender); err != nil {
				heap.Push(&q.items, obj)
				break
			}
		}
		switch {
		case obj.nonce == nonce:
			next[obj.sender] = nonce + 1
			fetched = append(fetched, obj)
		case obj.nonce > nonce:
			future = append(future, obj)
		default:
			dropped = append(dropped, obj)
		}
	}
	for _, obj := range future {
		if _, ok := next[obj.sender]; ok {
			dropped = append(dropped, q.Add(obj)...)
		} else {
			dropped = append(dropped, obj)
		}
	}
	return fetched, dropped, err
}

// Remove removes obj from the queue.
func (q *feeQueue) Remove(obj *txObject) bool {
	for i, item := range q.items {
		if item == obj {
			heap.Remove(&q.items, i)
			return true
		}
	}
	return false
}
