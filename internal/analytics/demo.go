package analytics

import "time"

// DemoGlobalStats is the fixed sample payload served to unauthenticated
// dashboard visitors and whenever the store cannot be reached. The
// numbers are stable so the landing page map always has something to
// draw.
func DemoGlobalStats(windowDays int) *GlobalStats {
	return &GlobalStats{
		TotalClicks:          6,
		EstimatedConversions: 1,
		WindowDays:           windowDays,
		Countries: []CountryStat{
			{Name: "United States", CountryCode: "US", Clicks: 3, Latitude: 38.0, Longitude: -97.0},
			{Name: "Germany", CountryCode: "DE", Clicks: 2, Latitude: 51.0, Longitude: 9.0},
			{Name: "India", CountryCode: "IN", Clicks: 1, Latitude: 20.0, Longitude: 77.0},
		},
		Cities: []CityStat{
			{Name: "New York", Country: "United States", Clicks: 2, Latitude: 40.7128, Longitude: -74.0060},
			{Name: "Berlin", Country: "Germany", Clicks: 2, Latitude: 52.5200, Longitude: 13.4050},
			{Name: "San Francisco", Country: "United States", Clicks: 1, Latitude: 37.7749, Longitude: -122.4194},
			{Name: "Mumbai", Country: "India", Clicks: 1, Latitude: 19.0760, Longitude: 72.8777},
		},
		Devices:     map[string]int64{"Mobile": 4, "Desktop": 2},
		Browsers:    map[string]int64{"Chrome": 3, "Safari": 2, "Firefox": 1},
		GeneratedAt: time.Now().UTC(),
		Demo:        true,
	}
}
