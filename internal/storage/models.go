package storage

import "time"

// Breakdown dimensions tracked per short code.
const (
	DimensionDevice   = "device"
	DimensionBrowser  = "browser"
	DimensionReferrer = "referrer"
)

// Link maps a short code to its target URL. Immutable once created,
// except for deletion by its owner.
type Link struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ShortCode   string `gorm:"uniqueIndex;size:50;not null"`
	OwnerID     string `gorm:"index;not null"`
	TargetURL   string `gorm:"not null"`
	IsCustom    bool   `gorm:"not null;default:false"`
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	UTMTerm     string
	UTMContent  string
	CreatedAt   time.Time `gorm:"index"`
}

// Record holds the per-link counters. Created together with its Link and
// deleted together with it; impressions >= clicks at all times.
type Record struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ShortCode   string `gorm:"uniqueIndex;size:50;not null"`
	Impressions int64  `gorm:"not null;default:0"`
	Clicks      int64  `gorm:"not null;default:0"`
	Shares      int64  `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BreakdownStat is one label counter inside a per-link breakdown map
// (devices, browsers or referrers). Labels appear lazily on first click.
type BreakdownStat struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ShortCode string `gorm:"uniqueIndex:idx_breakdown_unique;size:50;not null"`
	Dimension string `gorm:"uniqueIndex:idx_breakdown_unique;not null"`
	Label     string `gorm:"uniqueIndex:idx_breakdown_unique;not null"`
	Count     int64  `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClickEvent is one entry of a link's click history. Immutable once appended.
// Location fields arrive verbatim from upstream proxy geo headers.
type ClickEvent struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	ShortCode   string    `gorm:"index:idx_click_code_ts;size:50;not null"`
	Timestamp   time.Time `gorm:"index:idx_click_code_ts;not null"`
	DeviceType  string
	Browser     string
	Referrer    string
	UserAgent   string `gorm:"size:256"`
	IsShared    bool
	Country     string
	City        string
	Region      string
	CountryCode string
	Latitude    float64
	Longitude   float64
	CreatedAt   time.Time
}

// RecordView is a Record assembled together with its breakdown maps.
type RecordView struct {
	ShortCode   string           `json:"shortCode"`
	Impressions int64            `json:"impressions"`
	Clicks      int64            `json:"clicks"`
	Shares      int64            `json:"shares"`
	Devices     map[string]int64 `json:"devices"`
	Browsers    map[string]int64 `json:"browsers"`
	Referrers   map[string]int64 `json:"referrers"`
}

// ClickDelta describes one atomic merge into a link's analytics: counter
// increments, breakdown label bumps, and at most one click-history append.
type ClickDelta struct {
	Impressions int
	Clicks      int
	Shares      int

	// Breakdown labels to increment by one; empty string skips the dimension.
	Device   string
	Browser  string
	Referrer string

	// Event is appended to the click history when non-nil.
	Event *ClickEvent
}
