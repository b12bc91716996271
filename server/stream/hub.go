// Package stream fans a single stream of snapshot updates out to any number of
// websocket clients.
package stream

import (
	"context"
	"sync"
)

// Hub holds the latest snapshot and forwards every new one to its subscribers.
// Subscribers that fall behind only ever see the newest snapshot.
type Hub[T any] struct {
	mu     sync.Mutex
	latest *T
	subs   map[chan T]struct{}
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{
		subs: map[chan T]struct{}{},
	}
}

// Publish replaces the latest snapshot and offers it to each subscriber without blocking.
func (hub *Hub[T]) Publish(update T) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	hub.latest = &update
	for sub := range hub.subs {
		offer(sub, update)
	}
}

// offer puts update into a one-slot chan, evicting a stale snapshot if needed.
func offer[T any](sub chan T, update T) {
	select {
	case sub <- update:
		return
	default:
	}
	select {
	case <-sub:
	default:
	}
	select {
	case sub <- update:
	default:
	}
}

// Latest returns the most recent snapshot, if there is one.
func (hub *Hub[T]) Latest() (latest T, ok bool) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if hub.latest == nil {
		return
	}
	return *hub.latest, true
}

// Subscribe returns a chan of snapshots, beginning with the latest if there is one.
// The subscription ends, and the chan is closed, when ctx is done.
func (hub *Hub[T]) Subscribe(ctx context.Context) <-chan T {
	sub := make(chan T, 1)

	hub.mu.Lock()
	hub.subs[sub] = struct{}{}
	if hub.latest != nil {
		sub <- *hub.latest
	}
	hub.mu.Unlock()

	go func() {
		<-ctx.Done()
		hub.mu.Lock()
		defer hub.mu.Unlock()
		delete(hub.subs, sub)
		close(sub)
	}()

	return sub
}

// Subscribers returns the current subscriber count.
func (hub *Hub[T]) Subscribers() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.subs)
}
