package analytics

import (
	"context"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"linkpulse/internal/storage"
)

// ConversionProbability is the per-click chance used by the synthetic
// conversion estimator. There is no purchase funnel wired in, so the
// conversion figure is a simulated demo metric, not a measurement.
const ConversionProbability = 0.1043

// UnknownCountry buckets clicks with no usable geo data.
const UnknownCountry = "Unknown"

// GlobalStats is the cross-link rollup over the trailing window.
type GlobalStats struct {
	TotalClicks          int64            `json:"totalClicks"`
	EstimatedConversions int64            `json:"estimatedConversions"`
	WindowDays           int              `json:"windowDays"`
	Countries            []CountryStat    `json:"countries"`
	Cities               []CityStat       `json:"cities"`
	Devices              map[string]int64 `json:"devices"`
	Browsers             map[string]int64 `json:"browsers"`
	GeneratedAt          time.Time        `json:"generatedAt"`
	Demo                 bool             `json:"demo,omitempty"`
}

// CountryStat is one country's share of the global rollup.
type CountryStat struct {
	Name        string  `json:"name"`
	CountryCode string  `json:"countryCode,omitempty"`
	Clicks      int64   `json:"clicks"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// CityStat is one city's share of the global rollup.
type CityStat struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Clicks    int64   `json:"clicks"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Rollup recomputes global statistics from click history. The country
// reference data resolves display names and map coordinates for events
// whose proxy headers carried only a country code.
type Rollup struct {
	store      storage.Gateway
	windowDays int
	logger     *slog.Logger
	countries  *gountries.Query
	caser      cases.Caser

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRollup creates a rollup over the trailing windowDays of history.
func NewRollup(store storage.Gateway, windowDays int, logger *slog.Logger) *Rollup {
	return &Rollup{
		store:      store,
		windowDays: windowDays,
		logger:     logger,
		countries:  gountries.New(),
		caser:      cases.Upper(language.AmericanEnglish),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetRand replaces the conversion estimator's randomness source.
// Intended for tests that need deterministic estimates.
func (r *Rollup) SetRand(rng *rand.Rand) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rng = rng
}

// ComputeGlobalStats scans click history inside the window and folds it
// into country, city, device and browser totals plus the simulated
// conversion estimate.
func (r *Rollup) ComputeGlobalStats(ctx context.Context) (*GlobalStats, error) {
	since := time.Now().UTC().AddDate(0, 0, -r.windowDays)
	events, err := r.store.ListAllClicks(ctx, since)
	if err != nil {
		return nil, err
	}

	stats := &GlobalStats{
		WindowDays:  r.windowDays,
		Countries:   []CountryStat{},
		Cities:      []CityStat{},
		Devices:     make(map[string]int64),
		Browsers:    make(map[string]int64),
		GeneratedAt: time.Now().UTC(),
	}

	countryBuckets := make(map[string]*CountryStat)
	cityBuckets := make(map[string]*CityStat)

	for _, event := range events {
		stats.TotalClicks++
		stats.Devices[event.DeviceType]++
		stats.Browsers[event.Browser]++

		name, code, lat, lng := r.resolveCountry(event)
		country, ok := countryBuckets[name]
		if !ok {
			country = &CountryStat{Name: name, CountryCode: code, Latitude: lat, Longitude: lng}
			countryBuckets[name] = country
		}
		country.Clicks++

		city := cityLabel(event.City)
		cityKey := name + "|" + city
		bucket, ok := cityBuckets[cityKey]
		if !ok {
			bucket = &CityStat{Name: city, Country: name, Latitude: event.Latitude, Longitude: event.Longitude}
			cityBuckets[cityKey] = bucket
		}
		bucket.Clicks++
	}

	stats.EstimatedConversions = r.simulateConversions(stats.TotalClicks)

	for _, country := range countryBuckets {
		stats.Countries = append(stats.Countries, *country)
	}
	sort.Slice(stats.Countries, func(i, j int) bool {
		if stats.Countries[i].Clicks != stats.Countries[j].Clicks {
			return stats.Countries[i].Clicks > stats.Countries[j].Clicks
		}
		return stats.Countries[i].Name < stats.Countries[j].Name
	})

	for _, city := range cityBuckets {
		stats.Cities = append(stats.Cities, *city)
	}
	sort.Slice(stats.Cities, func(i, j int) bool {
		if stats.Cities[i].Clicks != stats.Cities[j].Clicks {
			return stats.Cities[i].Clicks > stats.Cities[j].Clicks
		}
		return stats.Cities[i].Name < stats.Cities[j].Name
	})

	return stats, nil
}

// simulateConversions draws one Bernoulli trial per click.
func (r *Rollup) simulateConversions(clicks int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var conversions int64
	for i := int64(0); i < clicks; i++ {
		if r.rng.Float64() < ConversionProbability {
			conversions++
		}
	}
	return conversions
}

// resolveCountry returns the display name, country code and map
// coordinates for an event. Coordinates reported by the proxy win;
// otherwise the country's reference centroid is used.
func (r *Rollup) resolveCountry(event storage.ClickEvent) (name, code string, lat, lng float64) {
	name = event.Country
	code = event.CountryCode
	lat = event.Latitude
	lng = event.Longitude

	if name == "" && code == "" {
		return UnknownCountry, "", 0, 0
	}

	var resolved gountries.Country
	var err error
	switch {
	case code != "":
		resolved, err = r.countries.FindCountryByAlpha(code)
	default:
		resolved, err = r.countries.FindCountryByName(strings.ToLower(name))
	}
	if err != nil {
		if name == "" {
			name = r.caser.String(code)
		}
		return name, code, lat, lng
	}

	name = resolved.Name.Common
	if code == "" {
		code = resolved.Alpha2
	}
	if lat == 0 && lng == 0 {
		lat = resolved.Coordinates.Latitude
		lng = resolved.Coordinates.Longitude
	}
	return name, code, lat, lng
}
