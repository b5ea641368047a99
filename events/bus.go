/*
Package events is a small in-process publish/subscribe bus.

PURPOSE:
  Lets the outer layers react to changes made elsewhere without knowing
  about each other: the holiday admin tells open ledgers to recompute
  totals, roster seeding tells them to reload, saves are announced.

TOPICS:
  A Topic[P] is a named channel with a fixed payload type. Subscribing
  and publishing are generic functions, so a handler for HolidaysChanged
  can only ever receive a HolidayChange.

DELIVERY:
  Synchronous, in subscription order, on the publisher's goroutine.
  Handlers run without the bus lock held, so they may subscribe or
  unsubscribe. A slow handler slows the publisher.

LIFECYCLE:
  Subscribe returns an unsubscribe function. Calling it more than once is
  harmless. Default() is the process-wide bus; tests use NewBus().

The attendance package does not import this one.
*/
package events

import (
	"sort"
	"sync"

	"github.com/warp/site-attendance/generic"
)

// =============================================================================
// TOPICS
// =============================================================================

// Topic is a named event channel carrying payloads of type P.
type Topic[P any] struct {
	name string
}

func NewTopic[P any](name string) Topic[P] {
	return Topic[P]{name: name}
}

func (t Topic[P]) Name() string { return t.name }

// RosterChange announces that a site's active workers changed.
type RosterChange struct {
	SiteID generic.SiteID
}

// HolidayChange announces that holidays changed. Empty Scope means a
// global holiday, which affects every site.
type HolidayChange struct {
	Scope string
}

// LedgerSave announces a completed save.
type LedgerSave struct {
	SiteID    generic.SiteID
	Month     generic.Month
	Succeeded int
	Deleted   int
	Failed    int
}

var (
	RosterChanged   = NewTopic[RosterChange]("roster.changed")
	HolidaysChanged = NewTopic[HolidayChange]("holidays.changed")
	LedgerSaved     = NewTopic[LedgerSave]("ledger.saved")
)

// =============================================================================
// BUS
// =============================================================================

type subscription struct {
	id uint64
	fn func(any)
}

// Bus holds subscriptions per topic name.
type Bus struct {
	mu   sync.RWMutex
	next uint64
	subs map[string]map[uint64]func(any)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[uint64]func(any))}
}

var (
	defaultBus  *Bus
	defaultOnce sync.Once
)

// Default returns the process-wide bus.
func Default() *Bus {
	defaultOnce.Do(func() { defaultBus = NewBus() })
	return defaultBus
}

// Subscribe registers fn for topic t and returns its unsubscribe function.
func Subscribe[P any](b *Bus, t Topic[P], fn func(P)) func() {
	b.mu.Lock()
	b.next++
	id := b.next
	if b.subs[t.name] == nil {
		b.subs[t.name] = make(map[uint64]func(any))
	}
	b.subs[t.name][id] = func(payload any) { fn(payload.(P)) }
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[t.name], id)
			if len(b.subs[t.name]) == 0 {
				delete(b.subs, t.name)
			}
		})
	}
}

// Publish delivers payload to every current subscriber of t and returns
// how many handlers ran.
func Publish[P any](b *Bus, t Topic[P], payload P) int {
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.subs[t.name]))
	for id, fn := range b.subs[t.name] {
		subs = append(subs, subscription{id: id, fn: fn})
	}
	b.mu.RUnlock()

	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })
	for _, s := range subs {
		s.fn(payload)
	}
	return len(subs)
}

// Subscribers returns the number of handlers registered for a topic name.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
