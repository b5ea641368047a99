package api

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/site-attendance/attendance"
	"github.com/warp/site-attendance/events"
	"github.com/warp/site-attendance/store/sqlite"
)

func fakeClock(m *SessionManager) *time.Time {
	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return &now
}

func TestAcquire_ReturnsSameSession(t *testing.T) {
	ts := setupTestServer(t)
	m := ts.handler.Sessions
	ctx := context.Background()

	a, err := m.Acquire(ctx, "site-1", march)
	require.NoError(t, err)
	a.Release()
	b, err := m.Acquire(ctx, "site-1", march)
	require.NoError(t, err)
	b.Release()

	assert.Same(t, a, b)
	assert.Equal(t, 1, m.Len())

	c, err := m.Acquire(ctx, "site-1", march.Next())
	require.NoError(t, err)
	c.Release()
	assert.Equal(t, 2, m.Len())
}

func TestAcquire_SerializesConcurrentEdits(t *testing.T) {
	ts := setupTestServer(t)
	m := ts.handler.Sessions

	var wg sync.WaitGroup
	for day := 1; day <= 20; day++ {
		wg.Add(1)
		go func(day int) {
			defer wg.Done()
			s, err := m.Acquire(context.Background(), "site-1", march)
			if !assert.NoError(t, err) {
				return
			}
			defer s.Release()
			assert.NoError(t, s.Ledger.SetCell("w-1", day, attendance.StatusPresent, decimal.Zero, ""))
		}(day)
	}
	wg.Wait()

	s, err := m.Acquire(context.Background(), "site-1", march)
	require.NoError(t, err)
	defer s.Release()
	assert.Len(t, s.Ledger.DirtyCells(), 20)
	assert.Equal(t, 1, m.Len())
}

func TestEvictIdle(t *testing.T) {
	// GIVEN: One clean and one dirty session, both last used at 09:00
	ts := setupTestServer(t)
	m := ts.handler.Sessions
	now := fakeClock(m)
	ctx := context.Background()

	clean, err := m.Acquire(ctx, "site-1", march)
	require.NoError(t, err)
	clean.Release()

	dirty, err := m.Acquire(ctx, "site-1", march.Next())
	require.NoError(t, err)
	require.NoError(t, dirty.Ledger.SetCell("w-1", 1, attendance.StatusPresent, decimal.Zero, ""))
	dirty.Release()

	// WHEN: 10 minutes pass with a 30 minute timeout
	*now = now.Add(10 * time.Minute)
	assert.Equal(t, 0, m.EvictIdle(30*time.Minute))

	// WHEN: An hour passes
	*now = now.Add(time.Hour)
	evicted := m.EvictIdle(30 * time.Minute)

	// THEN: Only the clean session is dropped
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, m.Len())
	assert.True(t, clean.closed)
	assert.False(t, dirty.closed)
}

func TestEvictIdle_SkipsBusySession(t *testing.T) {
	ts := setupTestServer(t)
	m := ts.handler.Sessions
	now := fakeClock(m)

	s, err := m.Acquire(context.Background(), "site-1", march)
	require.NoError(t, err)
	*now = now.Add(time.Hour)

	assert.Equal(t, 0, m.EvictIdle(time.Minute), "held sessions are not evicted")
	s.Release()
	assert.Equal(t, 1, m.EvictIdle(time.Minute))
}

func TestAcquire_AfterEvictionOpensFreshSession(t *testing.T) {
	ts := setupTestServer(t)
	m := ts.handler.Sessions
	now := fakeClock(m)
	ctx := context.Background()

	first, err := m.Acquire(ctx, "site-1", march)
	require.NoError(t, err)
	first.Release()

	*now = now.Add(time.Hour)
	require.Equal(t, 1, m.EvictIdle(time.Minute))

	second, err := m.Acquire(ctx, "site-1", march)
	require.NoError(t, err)
	second.Release()
	assert.NotSame(t, first, second)
	assert.True(t, second.Ledger.Loaded())
}

func TestClose(t *testing.T) {
	ts := setupTestServer(t)
	m := ts.handler.Sessions

	assert.NoError(t, m.Close("site-1", march, false), "closing an unopened session")

	s, err := m.Acquire(context.Background(), "site-1", march)
	require.NoError(t, err)
	require.NoError(t, s.Ledger.SetCell("w-2", 4, attendance.StatusAbsent, decimal.Zero, ""))
	s.Release()

	assert.ErrorIs(t, m.Close("site-1", march, false), ErrUnsavedChanges)
	assert.NoError(t, m.Close("site-1", march, true))
	assert.Equal(t, 0, m.Len())
}

func TestRosterChanged_ReloadsOnlyCleanSessions(t *testing.T) {
	// GIVEN: March open and clean, April open with an edit
	ts := setupTestServer(t)
	m := ts.handler.Sessions
	ctx := context.Background()

	clean, err := m.Acquire(ctx, "site-1", march)
	require.NoError(t, err)
	clean.Release()
	dirty, err := m.Acquire(ctx, "site-1", march.Next())
	require.NoError(t, err)
	require.NoError(t, dirty.Ledger.SetCell("w-1", 1, attendance.StatusPresent, decimal.Zero, ""))
	dirty.Release()

	// WHEN: A third worker joins the site
	require.NoError(t, ts.store.SaveWorker(ctx, attendance.Worker{ID: "w-3", Name: "Carla"}))
	require.NoError(t, ts.store.AssignWorker(ctx, "site-1", "w-3", 2, true))
	events.Publish(ts.bus, events.RosterChanged, events.RosterChange{SiteID: "site-1"})

	// THEN: The clean grid shows the new worker, the dirty one keeps its edit
	assert.Len(t, clean.Ledger.Entries(), 3)
	assert.Len(t, dirty.Ledger.Entries(), 2)
	assert.Len(t, dirty.Ledger.DirtyCells(), 1)
}

func TestRosterChanged_OtherSiteIgnored(t *testing.T) {
	ts := setupTestServer(t)
	m := ts.handler.Sessions
	ctx := context.Background()

	s, err := m.Acquire(ctx, "site-1", march)
	require.NoError(t, err)
	s.Release()

	require.NoError(t, ts.store.SaveSite(ctx, sqlite.Site{ID: "site-2", Name: "Obra Dos"}))
	require.NoError(t, ts.store.SaveWorker(ctx, attendance.Worker{ID: "w-3", Name: "Carla"}))
	require.NoError(t, ts.store.AssignWorker(ctx, "site-1", "w-3", 2, true))
	events.Publish(ts.bus, events.RosterChanged, events.RosterChange{SiteID: "site-2"})

	assert.Len(t, s.Ledger.Entries(), 2)
}

func TestSessionReaper_StartStop(t *testing.T) {
	ts := setupTestServer(t)
	m := ts.handler.Sessions

	s, err := m.Acquire(context.Background(), "site-1", march)
	require.NoError(t, err)
	s.Release()

	reaper := NewSessionReaper(m, time.Nanosecond, 5*time.Millisecond)
	reaper.Start()
	reaper.Start()
	defer reaper.Stop()

	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSessionReaper_Disabled(t *testing.T) {
	ts := setupTestServer(t)
	reaper := NewSessionReaper(ts.handler.Sessions, time.Minute, time.Millisecond)
	reaper.Enabled = false

	reaper.Start()
	assert.Nil(t, reaper.ticker)
	reaper.Stop()
}
