package jobs

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpulse/internal/analytics"
	"linkpulse/internal/config"
	"linkpulse/internal/database"
	"linkpulse/internal/realtime"
	"linkpulse/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupJobDB(t *testing.T) (*database.DBManager, *config.Config) {
	t.Helper()

	cfg := &config.Config{
		Environment:        config.Test,
		DatabaseName:       filepath.Join(t.TempDir(), "jobs-test.db"),
		ClickRetentionDays: 180,
	}

	dm := database.NewDBManager(cfg, testLogger())
	require.NoError(t, dm.Init())
	require.NoError(t, dm.MigrateDatabase())
	return dm, cfg
}

func seedClickAt(t *testing.T, store storage.Gateway, code string, at time.Time) {
	t.Helper()
	require.NoError(t, store.ApplyClick(t.Context(), code, storage.ClickDelta{
		Impressions: 1, Clicks: 1,
		Device: "Mobile", Browser: "Chrome", Referrer: "Unknown",
		Event: &storage.ClickEvent{ShortCode: code, Timestamp: at},
	}))
}

func TestRetentionJobPrunesOldEvents(t *testing.T) {
	dm, cfg := setupJobDB(t)
	store := storage.NewSQLiteStore(dm.GetConnection(), testLogger())

	require.NoError(t, store.CreateLink(t.Context(), &storage.Link{
		ShortCode: "aged123", TargetURL: "https://example.com/", CreatedAt: time.Now().UTC(),
	}))

	now := time.Now().UTC()
	seedClickAt(t, store, "aged123", now.AddDate(0, 0, -200))
	seedClickAt(t, store, "aged123", now.AddDate(0, 0, -181))
	seedClickAt(t, store, "aged123", now.AddDate(0, 0, -10))
	seedClickAt(t, store, "aged123", now)

	require.NoError(t, NewRetentionJob(dm, testLogger(), cfg).Run())

	events, err := store.ListClicks(t.Context(), "aged123", time.Time{})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	// Aggregate counters keep the full totals; only raw history is capped.
	view, err := store.GetRecord(t.Context(), "aged123")
	require.NoError(t, err)
	assert.Equal(t, int64(4), view.Clicks)
}

func TestRetentionJobDisabled(t *testing.T) {
	dm, cfg := setupJobDB(t)
	cfg.ClickRetentionDays = 0
	store := storage.NewSQLiteStore(dm.GetConnection(), testLogger())

	require.NoError(t, store.CreateLink(t.Context(), &storage.Link{
		ShortCode: "keep123", TargetURL: "https://example.com/", CreatedAt: time.Now().UTC(),
	}))
	seedClickAt(t, store, "keep123", time.Now().UTC().AddDate(-1, 0, 0))

	require.NoError(t, NewRetentionJob(dm, testLogger(), cfg).Run())

	events, err := store.ListClicks(t.Context(), "keep123", time.Time{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestBroadcastJobPublishesOnlyWithSubscribers(t *testing.T) {
	store := storage.NewMemoryStore()
	rollup := analytics.NewRollup(store, 30, testLogger())
	broker := realtime.NewBroker(testLogger())
	job := NewBroadcastJob(rollup, broker, testLogger())

	// No subscribers: the rollup is skipped entirely.
	require.NoError(t, job.Run())

	updates := make(chan realtime.Envelope, 4)
	unsub := broker.Subscribe(realtime.GlobalTopic, updates)
	defer unsub()

	require.NoError(t, job.Run())

	select {
	case env := <-updates:
		stats, ok := env.Payload.(*analytics.GlobalStats)
		require.True(t, ok)
		assert.Zero(t, stats.TotalClicks)
	case <-time.After(time.Second):
		t.Fatal("expected a global stats broadcast")
	}
}
