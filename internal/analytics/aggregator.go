// Package analytics maintains per-link click aggregates and the global
// cross-link rollup. Counters move only through storage-side atomic
// deltas; this package never reads a counter to write it back.
package analytics

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"linkpulse/internal/classifier"
	"linkpulse/internal/realtime"
	"linkpulse/internal/storage"
)

const maxStoredUserAgent = 256

// Update is the realtime payload published after a counter change.
type Update struct {
	Type      string              `json:"type"`
	ShortCode string              `json:"shortCode"`
	Data      *storage.RecordView `json:"data"`
}

// Aggregator records impressions and clicks against the storage gateway
// and publishes the refreshed aggregates to live subscribers.
type Aggregator struct {
	store  storage.Gateway
	broker *realtime.Broker
	rollup *Rollup
	logger *slog.Logger
}

// NewAggregator wires the aggregation pipeline. rollup drives the global
// publish that follows every recorded click.
func NewAggregator(store storage.Gateway, broker *realtime.Broker, rollup *Rollup, logger *slog.Logger) *Aggregator {
	return &Aggregator{store: store, broker: broker, rollup: rollup, logger: logger}
}

// RecordImpression bumps the impression counter for a short code and
// returns the refreshed record. Impressions carry no click event, so the
// impressions >= clicks invariant holds by construction.
func (a *Aggregator) RecordImpression(ctx context.Context, code string) (*storage.RecordView, error) {
	delta := storage.ClickDelta{Impressions: 1}
	if err := a.store.ApplyClick(ctx, code, delta); err != nil {
		return nil, err
	}
	return a.publishRecord(ctx, code, "impression"), nil
}

// RecordClick registers one resolved redirect: an impression plus a
// click, the classified breakdown labels and an appended click event.
// Realtime publishing is best effort and never fails the redirect.
func (a *Aggregator) RecordClick(ctx context.Context, code string, cls classifier.Classification, loc classifier.Location, userAgent string) error {
	shares := 0
	if cls.IsShared {
		shares = 1
	}

	now := time.Now().UTC()
	delta := storage.ClickDelta{
		Impressions: 1,
		Clicks:      1,
		Shares:      shares,
		Device:      cls.Device,
		Browser:     cls.Browser,
		Referrer:    cls.Referrer,
		Event: &storage.ClickEvent{
			ShortCode:   code,
			Timestamp:   now,
			DeviceType:  cls.Device,
			Browser:     cls.Browser,
			Referrer:    cls.Referrer,
			UserAgent:   truncate(userAgent, maxStoredUserAgent),
			IsShared:    cls.IsShared,
			Country:     loc.Country,
			City:        loc.City,
			Region:      loc.Region,
			CountryCode: loc.CountryCode,
			Latitude:    loc.Latitude,
			Longitude:   loc.Longitude,
			CreatedAt:   now,
		},
	}

	if err := a.store.ApplyClick(ctx, code, delta); err != nil {
		return err
	}

	a.publishRecord(ctx, code, "click")

	// The cross-link rollup scans history; keep it off the redirect path.
	go a.publishGlobal()

	return nil
}

// GetAnalytics returns the aggregate record for one short code.
func (a *Aggregator) GetAnalytics(ctx context.Context, code string) (*storage.RecordView, error) {
	return a.store.GetRecord(ctx, code)
}

// GeoBreakdown folds the link's click history within [from, to] into
// per-country counts with city, device and browser splits.
func (a *Aggregator) GeoBreakdown(ctx context.Context, code string, from, to time.Time) (*GeoReport, error) {
	if _, err := a.store.GetLink(ctx, code); err != nil {
		return nil, err
	}

	events, err := a.store.ListClicks(ctx, code, from)
	if err != nil {
		return nil, err
	}

	report := &GeoReport{ShortCode: code, From: from, To: to, Countries: []CountryBreakdown{}}
	buckets := make(map[string]*CountryBreakdown)

	for _, event := range events {
		if !to.IsZero() && event.Timestamp.After(to) {
			continue
		}
		report.TotalClicks++

		name, code2, lat, lng := a.rollup.resolveCountry(event)
		bucket, ok := buckets[name]
		if !ok {
			bucket = &CountryBreakdown{
				Country:     name,
				CountryCode: code2,
				Latitude:    lat,
				Longitude:   lng,
				Cities:      make(map[string]int64),
				Devices:     make(map[string]int64),
				Browsers:    make(map[string]int64),
			}
			buckets[name] = bucket
		}

		bucket.Clicks++
		bucket.Cities[cityLabel(event.City)]++
		bucket.Devices[event.DeviceType]++
		bucket.Browsers[event.Browser]++
	}

	for _, bucket := range buckets {
		report.Countries = append(report.Countries, *bucket)
	}
	sort.Slice(report.Countries, func(i, j int) bool {
		if report.Countries[i].Clicks != report.Countries[j].Clicks {
			return report.Countries[i].Clicks > report.Countries[j].Clicks
		}
		return report.Countries[i].Country < report.Countries[j].Country
	})

	return report, nil
}

// publishRecord re-reads the aggregate and pushes it to the link's
// topic. A read failure downgrades to a log line; the counters are
// already committed.
func (a *Aggregator) publishRecord(ctx context.Context, code, updateType string) *storage.RecordView {
	view, err := a.store.GetRecord(ctx, code)
	if err != nil {
		a.logger.Warn("Failed to read record for realtime publish",
			slog.String("short_code", code), slog.Any("error", err))
		return nil
	}

	a.broker.Publish(realtime.CodeTopic(code), Update{
		Type:      updateType,
		ShortCode: code,
		Data:      view,
	})
	return view
}

func (a *Aggregator) publishGlobal() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stats, err := a.rollup.ComputeGlobalStats(ctx)
	if err != nil {
		a.logger.Warn("Failed to compute global stats for realtime publish", slog.Any("error", err))
		return
	}
	a.broker.Publish(realtime.GlobalTopic, stats)
}

// GeoReport is the per-link geographic breakdown over a date range.
type GeoReport struct {
	ShortCode   string             `json:"shortCode"`
	From        time.Time          `json:"from"`
	To          time.Time          `json:"to"`
	TotalClicks int64              `json:"totalClicks"`
	Countries   []CountryBreakdown `json:"countries"`
}

// CountryBreakdown is one country's slice of a link's clicks.
type CountryBreakdown struct {
	Country     string           `json:"country"`
	CountryCode string           `json:"countryCode,omitempty"`
	Clicks      int64            `json:"clicks"`
	Latitude    float64          `json:"latitude"`
	Longitude   float64          `json:"longitude"`
	Cities      map[string]int64 `json:"cities"`
	Devices     map[string]int64 `json:"devices"`
	Browsers    map[string]int64 `json:"browsers"`
}

func cityLabel(city string) string {
	if city == "" {
		return "Unknown"
	}
	return city
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
