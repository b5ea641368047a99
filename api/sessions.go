/*
sessions.go - One in-memory ledger per (site, month)

PURPOSE:
  The attendance ledger is single-writer. The HTTP layer enforces that by
  keeping exactly one Ledger per (site, month) and serializing every
  request on it through the session's mutex.

LIFECYCLE:
  Acquire   creates the session on first use and loads the month.
            The caller holds the session lock until Release.
  Close     drops a session (refused while it has unsaved cells
            unless discard is set).
  EvictIdle drops clean sessions unused for longer than a timeout
            (called by the reaper).

LOCK ORDER:
  SessionManager.mu is never held while waiting on a Session.mu, except
  via TryLock. A session removed from the map is marked closed; anyone
  who was waiting on it retries against the map.

EVENTS:
  Watch subscribes the manager to the bus:
  - HolidaysChanged: recompute totals on sessions in scope
  - RosterChanged:   reload clean sessions of the site; sessions with
                     unsaved cells keep their grid until saved
*/
package api

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/warp/site-attendance/attendance"
	"github.com/warp/site-attendance/events"
	"github.com/warp/site-attendance/generic"
	"github.com/warp/site-attendance/metrics"
	"github.com/warp/site-attendance/store/sqlite"
)

// ErrUnsavedChanges is returned when closing or reloading a session that
// still has dirty cells.
var ErrUnsavedChanges = errors.New("session has unsaved changes")

type sessionKey struct {
	SiteID generic.SiteID
	Month  generic.Month
}

// Session is one open ledger. Its fields are guarded by mu.
type Session struct {
	mu       sync.Mutex
	key      sessionKey
	Ledger   *attendance.Ledger
	lastUsed time.Time
	closed   bool
}

// Release unlocks a session returned by Acquire.
func (s *Session) Release() {
	s.mu.Unlock()
}

// SessionManager owns the open sessions.
type SessionManager struct {
	Store        *sqlite.Store
	RestWeekdays []time.Weekday

	mu       sync.Mutex
	sessions map[sessionKey]*Session
	now      func() time.Time
}

func NewSessionManager(store *sqlite.Store, restWeekdays ...time.Weekday) *SessionManager {
	return &SessionManager{
		Store:        store,
		RestWeekdays: restWeekdays,
		sessions:     make(map[sessionKey]*Session),
		now:          time.Now,
	}
}

// Acquire returns the locked session for (site, month), loading the month
// if the session is new. The caller must Release it.
func (m *SessionManager) Acquire(ctx context.Context, siteID generic.SiteID, month generic.Month) (*Session, error) {
	key := sessionKey{SiteID: siteID, Month: month}
	for {
		m.mu.Lock()
		s, ok := m.sessions[key]
		if !ok {
			cal := generic.NewRestDayCalendar(m.Store, string(siteID), m.RestWeekdays...)
			s = &Session{
				key:    key,
				Ledger: attendance.NewLedger(m.Store, m.Store, m.Store, cal),
			}
			m.sessions[key] = s
			metrics.OpenSessions.Inc()
			log.Printf("[Sessions] Opened %s %s", siteID, month)
		}
		m.mu.Unlock()

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			continue
		}
		s.lastUsed = m.now()

		if !s.Ledger.Loaded() {
			if _, err := s.Ledger.LoadMonth(ctx, siteID, month); err != nil {
				var loadErr *attendance.LoadError
				if errors.As(err, &loadErr) {
					metrics.LoadFailures.WithLabelValues(loadErr.Stage).Inc()
				}
				m.removeLocked(s, "load_failed")
				s.mu.Unlock()
				return nil, err
			}
		}
		return s, nil
	}
}

// Close drops the session for (site, month). It returns ErrUnsavedChanges
// if the ledger has dirty cells and discard is false. Closing a session
// that is not open is not an error.
func (m *SessionManager) Close(siteID generic.SiteID, month generic.Month, discard bool) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionKey{SiteID: siteID, Month: month}]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if dirty := len(s.Ledger.DirtyCells()); dirty > 0 && !discard {
		return ErrUnsavedChanges
	}
	m.removeLocked(s, "closed")
	return nil
}

// EvictIdle drops sessions with no dirty cells that have not been used
// since now-idle. Busy sessions are skipped. Returns how many were dropped.
func (m *SessionManager) EvictIdle(idle time.Duration) int {
	cutoff := m.now().Add(-idle)
	evicted := 0
	for _, s := range m.snapshot() {
		if !s.mu.TryLock() {
			continue
		}
		if !s.closed && s.lastUsed.Before(cutoff) && len(s.Ledger.DirtyCells()) == 0 {
			m.removeLocked(s, "idle")
			evicted++
		}
		s.mu.Unlock()
	}
	return evicted
}

// Len returns the number of open sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Watch subscribes the manager to roster and holiday changes on bus.
func (m *SessionManager) Watch(bus *events.Bus) (unsubscribe func()) {
	offHolidays := events.Subscribe(bus, events.HolidaysChanged, m.onHolidaysChanged)
	offRoster := events.Subscribe(bus, events.RosterChanged, m.onRosterChanged)
	return func() {
		offHolidays()
		offRoster()
	}
}

func (m *SessionManager) onHolidaysChanged(c events.HolidayChange) {
	for _, s := range m.snapshot() {
		if c.Scope != "" && string(s.key.SiteID) != c.Scope {
			continue
		}
		s.mu.Lock()
		if !s.closed && s.Ledger.Loaded() {
			s.Ledger.RecomputeTotals()
		}
		s.mu.Unlock()
	}
}

func (m *SessionManager) onRosterChanged(c events.RosterChange) {
	for _, s := range m.snapshot() {
		if s.key.SiteID != c.SiteID {
			continue
		}
		s.mu.Lock()
		switch {
		case s.closed || !s.Ledger.Loaded():
		case len(s.Ledger.DirtyCells()) > 0:
			log.Printf("[Sessions] Roster changed for %s; %s kept until saved", c.SiteID, s.key.Month)
		default:
			if _, err := s.Ledger.LoadMonth(context.Background(), s.key.SiteID, s.key.Month); err != nil {
				log.Printf("[Sessions] Reload of %s %s after roster change failed: %v", s.key.SiteID, s.key.Month, err)
				m.removeLocked(s, "roster")
			}
		}
		s.mu.Unlock()
	}
}

func (m *SessionManager) snapshot() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// removeLocked drops s from the map. The caller holds s.mu.
func (m *SessionManager) removeLocked(s *Session, reason string) {
	s.closed = true
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[s.key] == s {
		delete(m.sessions, s.key)
		metrics.OpenSessions.Dec()
		metrics.SessionsEvicted.WithLabelValues(reason).Inc()
		log.Printf("[Sessions] Closed %s %s (%s)", s.key.SiteID, s.key.Month, reason)
	}
}
