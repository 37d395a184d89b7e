package analytics

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpulse/internal/classifier"
	"linkpulse/internal/realtime"
	"linkpulse/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAggregator(t *testing.T) (*Aggregator, *storage.MemoryStore, *realtime.Broker) {
	t.Helper()
	store := storage.NewMemoryStore()
	broker := realtime.NewBroker(testLogger())
	rollup := NewRollup(store, 30, testLogger())
	return NewAggregator(store, broker, rollup, testLogger()), store, broker
}

func seedLink(t *testing.T, store storage.Gateway, code string) {
	t.Helper()
	require.NoError(t, store.CreateLink(t.Context(), &storage.Link{
		ShortCode: code,
		OwnerID:   "user-1",
		TargetURL: "https://example.com/",
		CreatedAt: time.Now().UTC(),
	}))
}

func TestRecordImpression(t *testing.T) {
	agg, store, broker := newTestAggregator(t)
	seedLink(t, store, "abc1234")

	updates := make(chan realtime.Envelope, 8)
	unsub := broker.Subscribe(realtime.CodeTopic("abc1234"), updates)
	defer unsub()

	view, err := agg.RecordImpression(t.Context(), "abc1234")
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.Impressions)
	assert.Zero(t, view.Clicks)

	select {
	case env := <-updates:
		update, ok := env.Payload.(Update)
		require.True(t, ok)
		assert.Equal(t, "impression", update.Type)
		assert.Equal(t, int64(1), update.Data.Impressions)
	case <-time.After(time.Second):
		t.Fatal("expected a realtime update")
	}
}

func TestRecordImpressionNotFound(t *testing.T) {
	agg, _, _ := newTestAggregator(t)

	_, err := agg.RecordImpression(t.Context(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecordClick(t *testing.T) {
	agg, store, broker := newTestAggregator(t)
	seedLink(t, store, "abc1234")

	global := make(chan realtime.Envelope, 8)
	unsub := broker.Subscribe(realtime.GlobalTopic, global)
	defer unsub()

	cls := classifier.Classification{
		Device:   "Mobile",
		Browser:  "Chrome",
		Referrer: "Google",
	}
	loc := classifier.Location{Country: "Germany", City: "Berlin", CountryCode: "DE"}

	require.NoError(t, agg.RecordClick(t.Context(), "abc1234", cls, loc, "test-agent"))

	view, err := store.GetRecord(t.Context(), "abc1234")
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.Impressions)
	assert.Equal(t, int64(1), view.Clicks)
	assert.Zero(t, view.Shares)
	assert.Equal(t, int64(1), view.Devices["Mobile"])
	assert.Equal(t, int64(1), view.Browsers["Chrome"])
	assert.Equal(t, int64(1), view.Referrers["Google"])

	// Exactly one history entry per click.
	events, err := store.ListClicks(t.Context(), "abc1234", time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Berlin", events[0].City)
	assert.Equal(t, "DE", events[0].CountryCode)

	// The global rollup publish happens off the request path.
	select {
	case env := <-global:
		stats, ok := env.Payload.(*GlobalStats)
		require.True(t, ok)
		assert.Equal(t, int64(1), stats.TotalClicks)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a global stats publish")
	}
}

func TestRecordClickShared(t *testing.T) {
	agg, store, _ := newTestAggregator(t)
	seedLink(t, store, "abc1234")

	cls := classifier.Classification{
		Device: "Mobile", Browser: "WhatsApp", Referrer: "Newsletter", IsShared: true,
	}
	require.NoError(t, agg.RecordClick(t.Context(), "abc1234", cls, classifier.Location{}, "agent"))

	view, err := store.GetRecord(t.Context(), "abc1234")
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.Shares)
}

func TestRecordClickNotFound(t *testing.T) {
	agg, _, _ := newTestAggregator(t)

	err := agg.RecordClick(t.Context(), "missing", classifier.Classification{}, classifier.Location{}, "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestImpressionsNeverBelowClicks(t *testing.T) {
	agg, store, _ := newTestAggregator(t)
	seedLink(t, store, "abc1234")

	cls := classifier.Classification{Device: "Desktop", Browser: "Firefox", Referrer: "Unknown"}
	for i := 0; i < 5; i++ {
		require.NoError(t, agg.RecordClick(t.Context(), "abc1234", cls, classifier.Location{}, ""))
		view, err := store.GetRecord(t.Context(), "abc1234")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, view.Impressions, view.Clicks)
	}

	_, err := agg.RecordImpression(t.Context(), "abc1234")
	require.NoError(t, err)

	view, err := store.GetRecord(t.Context(), "abc1234")
	require.NoError(t, err)
	assert.Equal(t, int64(6), view.Impressions)
	assert.Equal(t, int64(5), view.Clicks)
}

func TestGeoBreakdown(t *testing.T) {
	agg, store, _ := newTestAggregator(t)
	seedLink(t, store, "abc1234")

	now := time.Now().UTC()
	addClick := func(country, code, city, device, browser string, at time.Time) {
		require.NoError(t, store.ApplyClick(t.Context(), "abc1234", storage.ClickDelta{
			Impressions: 1, Clicks: 1,
			Device: device, Browser: browser, Referrer: "Unknown",
			Event: &storage.ClickEvent{
				Timestamp: at, DeviceType: device, Browser: browser,
				Country: country, CountryCode: code, City: city,
			},
		}))
	}

	addClick("", "US", "New York", "Mobile", "Chrome", now)
	addClick("", "US", "New York", "Desktop", "Firefox", now)
	addClick("", "DE", "Berlin", "Mobile", "Safari", now)
	addClick("", "", "", "Mobile", "Chrome", now)

	report, err := agg.GeoBreakdown(t.Context(), "abc1234", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), report.TotalClicks)
	require.Len(t, report.Countries, 3)

	top := report.Countries[0]
	assert.Equal(t, "United States", top.Country)
	assert.Equal(t, int64(2), top.Clicks)
	assert.Equal(t, int64(2), top.Cities["New York"])
	assert.Equal(t, int64(1), top.Devices["Mobile"])
	assert.Equal(t, int64(1), top.Browsers["Firefox"])
	assert.NotZero(t, top.Latitude)

	names := []string{report.Countries[0].Country, report.Countries[1].Country, report.Countries[2].Country}
	assert.Contains(t, names, "Germany")
	assert.Contains(t, names, UnknownCountry)
}

func TestGeoBreakdownDateRange(t *testing.T) {
	agg, store, _ := newTestAggregator(t)
	seedLink(t, store, "abc1234")

	now := time.Now().UTC()
	require.NoError(t, store.ApplyClick(t.Context(), "abc1234", storage.ClickDelta{
		Impressions: 1, Clicks: 1, Device: "Mobile", Browser: "Chrome",
		Event: &storage.ClickEvent{Timestamp: now.AddDate(0, 0, -40), CountryCode: "US", DeviceType: "Mobile", Browser: "Chrome"},
	}))
	require.NoError(t, store.ApplyClick(t.Context(), "abc1234", storage.ClickDelta{
		Impressions: 1, Clicks: 1, Device: "Mobile", Browser: "Chrome",
		Event: &storage.ClickEvent{Timestamp: now, CountryCode: "DE", DeviceType: "Mobile", Browser: "Chrome"},
	}))

	report, err := agg.GeoBreakdown(t.Context(), "abc1234", now.AddDate(0, 0, -30), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.TotalClicks)
	require.Len(t, report.Countries, 1)
	assert.Equal(t, "Germany", report.Countries[0].Country)
}

func TestGeoBreakdownUnknownCode(t *testing.T) {
	agg, _, _ := newTestAggregator(t)

	_, err := agg.GeoBreakdown(t.Context(), "missing", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
