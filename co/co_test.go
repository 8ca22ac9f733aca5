// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package co_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/godwokenrises/godwoken-sub004/co"
)

func TestSignalBeforeWait(t *testing.T) {
	var sig co.Signal
	sig.Signal()
	<-sig.NewWaiter().C()
}

func TestSignalAfterWait(t *testing.T) {
	var sig co.Signal
	w := sig.NewWaiter()
	sig.Signal()
	<-w.C()
}

func TestBroadcast(t *testing.T) {
	var sig co.Signal

	var ws []co.Waiter
	for range 10 {
		ws = append(ws, sig.NewWaiter())
	}
	sig.Broadcast()
	for _, w := range ws {
		<-w.C()
	}

	// waiters created after a broadcast are not woken by it
	late := sig.NewWaiter()
	select {
	case <-late.C():
		t.Fatal("unexpected wake up")
	default:
	}
}

func TestGoes(t *testing.T) {
	var (
		goes co.Goes
		n    atomic.Int32
	)
	ctx, cancel := context.WithCancel(context.Background())
	goes.GoLoop(ctx, func(ctx context.Context) {
		if n.Add(1) == 3 {
			cancel()
		}
	})
	goes.Go(func() { n.Add(100) })

	select {
	case <-goes.Done():
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
	assert.Equal(t, int32(103), n.Load())
}
