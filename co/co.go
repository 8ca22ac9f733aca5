// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package co contains small concurrency helpers shared by the node services.
package co

import (
	"context"
	"sync"
)

// Goes tracks background goroutines of a service.
type Goes struct {
	wg sync.WaitGroup
}

// Go runs f in a goroutine.
func (g *Goes) Go(f func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		f()
	}()
}

// GoLoop runs f in a goroutine until ctx is done.
func (g *Goes) GoLoop(ctx context.Context, f func(ctx context.Context)) {
	g.Go(func() {
		for ctx.Err() == nil {
			f(ctx)
		}
	})
}

// Wait blocks until all goroutines started by Go return.
func (g *Goes) Wait() {
	g.wg.Wait()
}

// Done returns a channel closed after all goroutines return.
func (g *Goes) Done() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.wg.Wait()
	}()
	return done
}

// Waiter is a one-shot view of a Signal.
type Waiter interface {
	// C returns a channel that receives true on Signal or is closed on Broadcast. Each call
	// rearms the waiter.
	C() <-chan bool
}

// Signal announces events to goroutines that select on channels. The zero value is ready to use.
type Signal struct {
	mu sync.Mutex
	ch chan bool
}

func (s *Signal) current() chan bool {
	if s.ch == nil {
		s.ch = make(chan bool, 1)
	}
	return s.ch
}

// Signal wakes at most one waiter. A signal with no waiter is kept until the next one.
func (s *Signal) Signal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case s.current() <- true:
	default:
	}
}

// Broadcast wakes every waiter.
func (s *Signal) Broadcast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.current())
	s.ch = make(chan bool, 1)
}

// NewWaiter creates a Waiter.
func (s *Signal) NewWaiter() Waiter {
	s.mu.Lock()
	w := &waiter{s: s, ch: s.current()}
	s.mu.Unlock()
	return w
}

type waiter struct {
	s  *Signal
	ch chan bool
}

func (w *waiter) C() <-chan bool {
	ch := w.ch
	w.s.mu.Lock()
	w.ch = w.s.current()
	w.s.mu.Unlock()
	return ch
}
