// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package events

import (
	"sync"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/mediaconv/internal/log"
	"github.com/ManuGH/mediaconv/internal/metrics"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

const allJobs = ""

// Bus fans events out to per-job and global subscribers. Progress and log
// events are dropped for a subscriber whose buffer is full; completion
// events block until delivered or the subscriber closes. Delivery happens
// outside the bus lock, so a slow subscriber only stalls the publisher that
// is waiting on it.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	logger zerolog.Logger
}

// NewBus creates a bus whose subscriptions buffer up to buffer events.
func NewBus(buffer int) *Bus {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Bus{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		logger: xglog.WithComponent("events"),
	}
}

// Subscription is a receive side of the bus.
type Subscription struct {
	C <-chan Event

	ch    chan Event
	done  chan struct{}
	key   string
	bus   *Bus
	close sync.Once

	// Senders hold sendMu shared; Close takes it exclusively to close ch.
	sendMu sync.RWMutex
	closed bool
}

// Subscribe returns a subscription for one job.
func (b *Bus) Subscribe(jobID string) *Subscription {
	return b.subscribe(jobID)
}

// SubscribeAll returns a subscription for every job.
func (b *Bus) SubscribeAll() *Subscription {
	return b.subscribe(allJobs)
}

func (b *Bus) subscribe(key string) *Subscription {
	ch := make(chan Event, b.buffer)
	s := &Subscription{C: ch, ch: ch, done: make(chan struct{}), key: key, bus: b}

	b.mu.Lock()
	set, ok := b.subs[key]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[key] = set
	}
	set[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Close detaches the subscription and closes C. Safe to call repeatedly.
func (s *Subscription) Close() {
	s.close.Do(func() {
		// done first: it releases a sender blocked on a completion event.
		close(s.done)

		b := s.bus
		b.mu.Lock()
		if set, ok := b.subs[s.key]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(b.subs, s.key)
			}
		}
		b.mu.Unlock()

		s.sendMu.Lock()
		s.closed = true
		close(s.ch)
		s.sendMu.Unlock()
	})
}

// Publish delivers ev to the job's subscribers and to global subscribers.
func (b *Bus) Publish(ev Event) {
	for _, s := range b.targets(ev.JobID) {
		b.deliver(s, ev)
	}
}

func (b *Bus) targets(jobID string) []*Subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Subscription, 0, len(b.subs[jobID])+len(b.subs[allJobs]))
	for s := range b.subs[jobID] {
		out = append(out, s)
	}
	if jobID != allJobs {
		for s := range b.subs[allJobs] {
			out = append(out, s)
		}
	}
	return out
}

func (b *Bus) deliver(s *Subscription, ev Event) {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed {
		return
	}
	if ev.Kind == KindCompletion {
		select {
		case s.ch <- ev:
		case <-s.done:
		}
		return
	}
	select {
	case s.ch <- ev:
	case <-s.done:
	default:
		metrics.IncEventDrop(string(ev.Kind))
		b.logger.Debug().
			Str(xglog.FieldJobID, ev.JobID).
			Str(xglog.FieldEvent, string(ev.Kind)).
			Msg("subscriber full, event dropped")
	}
}

// Close closes every subscription.
func (b *Bus) Close() {
	b.mu.RLock()
	var all []*Subscription
	for _, set := range b.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	b.mu.RUnlock()
	for _, s := range all {
		s.Close()
	}
}

// Subscribers returns the number of open subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, set := range b.subs {
		n += len(set)
	}
	return n
}
