/*
reaper.go - Idle session eviction

PURPOSE:
  Ledger sessions live in memory until closed. Browsers rarely say
  goodbye, so a background goroutine drops sessions that have been idle
  longer than IdleTimeout and have nothing left to save.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Sessions with dirty cells are never evicted
  - Sessions busy with a request are skipped until the next tick

USAGE:
  reaper := NewSessionReaper(sessions, cfg.Sessions.IdleTimeout, cfg.Sessions.ReapInterval)
  reaper.Start()
  // ... later
  reaper.Stop()
*/
package api

import (
	"log"
	"sync"
	"time"
)

// SessionReaper evicts idle sessions on a ticker.
type SessionReaper struct {
	Sessions      *SessionManager
	IdleTimeout   time.Duration
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewSessionReaper(sessions *SessionManager, idleTimeout, checkInterval time.Duration) *SessionReaper {
	return &SessionReaper{
		Sessions:      sessions,
		IdleTimeout:   idleTimeout,
		CheckInterval: checkInterval,
		Enabled:       true,
		stop:          make(chan struct{}),
	}
}

// Start begins the reaper.
func (sr *SessionReaper) Start() {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if !sr.Enabled {
		log.Println("[Reaper] Disabled, not starting")
		return
	}
	if sr.ticker != nil {
		return
	}

	sr.ticker = time.NewTicker(sr.CheckInterval)
	sr.wg.Add(1)

	go sr.run()

	log.Printf("[Reaper] Started: idle timeout %v, check interval %v", sr.IdleTimeout, sr.CheckInterval)
}

// Stop stops the reaper and waits for the goroutine to exit.
func (sr *SessionReaper) Stop() {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if sr.ticker != nil {
		sr.ticker.Stop()
		close(sr.stop)
		sr.wg.Wait()
		sr.ticker = nil
		log.Println("[Reaper] Stopped")
	}
}

func (sr *SessionReaper) run() {
	defer sr.wg.Done()

	for {
		select {
		case <-sr.ticker.C:
			sr.reap()
		case <-sr.stop:
			return
		}
	}
}

func (sr *SessionReaper) reap() int {
	n := sr.Sessions.EvictIdle(sr.IdleTimeout)
	if n > 0 {
		log.Printf("[Reaper] Evicted %d idle sessions, %d open", n, sr.Sessions.Len())
	}
	return n
}
