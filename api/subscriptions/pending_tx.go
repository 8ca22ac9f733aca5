// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/godwokenrises/godwoken-sub004/txpool"
)

// pendingTx fans pool events out to websocket listeners.
type pendingTx struct {
	txPool    *txpool.TxPool
	listeners map[chan *PendingMessage]struct{}
	mu        sync.RWMutex
	known     *lru.Cache
}

func newPendingTx(txPool *txpool.TxPool) *pendingTx {
	known, _ := lru.New(2000)
	return &pendingTx{
		txPool:    txPool,
		listeners: make(map[chan *PendingMessage]struct{}),
		known:     known,
	}
}

func (p *pendingTx) Subscribe(ch chan *PendingMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.listeners[ch] = struct{}{}
}

func (p *pendingTx) Unsubscribe(ch chan *PendingMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.listeners, ch)
}

func (p *pendingTx) DispatchLoop(done <-chan struct{}) {
	txCh := make(chan *txpool.TxEvent)
	sub := p.txPool.SubscribeTxEvent(txCh)
	defer sub.Unsubscribe()

	for {
		select {
		case ev := <-txCh:
			msg := convertPending(ev)
			if seen, _ := p.known.ContainsOrAdd(msg.Hash, struct{}{}); seen {
				continue
			}
			p.mu.RLock()
			for lsn := range p.listeners {
				select {
				case lsn <- msg:
				default: // slow listeners miss messages
				}
			}
			p.mu.RUnlock()
		case <-sub.Err():
			return
		case <-done:
			return
		}
	}
}
