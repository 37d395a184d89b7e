package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is the in-process fallback Gateway. It exists for the
// process lifetime, is never persisted and is never reconciled back into
// the durable store: a deliberate degraded mode, not a cache.
type MemoryStore struct {
	mu      sync.Mutex
	links   map[string]*Link
	records map[string]*memoryRecord
}

type memoryRecord struct {
	impressions int64
	clicks      int64
	shares      int64
	breakdowns  map[string]map[string]int64
	events      []ClickEvent
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		links:   make(map[string]*Link),
		records: make(map[string]*memoryRecord),
	}
}

var _ Gateway = (*MemoryStore)(nil)

var (
	fallback     *MemoryStore
	fallbackOnce sync.Once
)

// Fallback returns the process-wide in-memory store used when the durable
// store is unavailable.
func Fallback() *MemoryStore {
	fallbackOnce.Do(func() {
		fallback = NewMemoryStore()
	})
	return fallback
}

// ResetFallback replaces the process-wide fallback store; intended for tests.
func ResetFallback() {
	fallbackOnce = sync.Once{}
	fallback = nil
}

func (s *MemoryStore) CreateLink(_ context.Context, link *Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.links[link.ShortCode]; exists {
		return ErrCodeTaken
	}

	stored := *link
	s.links[link.ShortCode] = &stored
	s.records[link.ShortCode] = &memoryRecord{
		breakdowns: map[string]map[string]int64{
			DimensionDevice:   {},
			DimensionBrowser:  {},
			DimensionReferrer: {},
		},
	}
	return nil
}

func (s *MemoryStore) GetLink(_ context.Context, code string) (*Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[code]
	if !ok {
		return nil, ErrNotFound
	}
	found := *link
	return &found, nil
}

func (s *MemoryStore) ListLinksByOwner(_ context.Context, ownerID string) ([]Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var links []Link
	for _, link := range s.links {
		if link.OwnerID == ownerID {
			links = append(links, *link)
		}
	}

	// Maps have no query ordering, so sort client-side: newest first.
	sort.Slice(links, func(i, j int) bool {
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
	return links, nil
}

func (s *MemoryStore) DeleteLink(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[code]; !ok {
		return ErrNotFound
	}
	delete(s.links, code)
	delete(s.records, code)
	return nil
}

func (s *MemoryStore) GetRecord(_ context.Context, code string) (*RecordView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[code]
	if !ok {
		return nil, ErrNotFound
	}

	view := &RecordView{
		ShortCode:   code,
		Impressions: record.impressions,
		Clicks:      record.clicks,
		Shares:      record.shares,
		Devices:     make(map[string]int64),
		Browsers:    make(map[string]int64),
		Referrers:   make(map[string]int64),
	}
	for label, count := range record.breakdowns[DimensionDevice] {
		view.Devices[label] = count
	}
	for label, count := range record.breakdowns[DimensionBrowser] {
		view.Browsers[label] = count
	}
	for label, count := range record.breakdowns[DimensionReferrer] {
		view.Referrers[label] = count
	}
	return view, nil
}

func (s *MemoryStore) ApplyClick(_ context.Context, code string, delta ClickDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[code]
	if !ok {
		return ErrNotFound
	}

	record.impressions += int64(delta.Impressions)
	record.clicks += int64(delta.Clicks)
	record.shares += int64(delta.Shares)

	if delta.Device != "" {
		record.breakdowns[DimensionDevice][delta.Device]++
	}
	if delta.Browser != "" {
		record.breakdowns[DimensionBrowser][delta.Browser]++
	}
	if delta.Referrer != "" {
		record.breakdowns[DimensionReferrer][delta.Referrer]++
	}

	if delta.Event != nil {
		event := *delta.Event
		event.ShortCode = code
		event.CreatedAt = time.Now().UTC()
		record.events = append(record.events, event)
	}

	return nil
}

func (s *MemoryStore) ListClicks(_ context.Context, code string, since time.Time) ([]ClickEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[code]
	if !ok {
		return nil, ErrNotFound
	}

	var events []ClickEvent
	for _, event := range record.events {
		if !event.Timestamp.Before(since) {
			events = append(events, event)
		}
	}
	return events, nil
}

func (s *MemoryStore) ListAllClicks(_ context.Context, since time.Time) ([]ClickEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []ClickEvent
	for _, record := range s.records {
		for _, event := range record.events {
			if !event.Timestamp.Before(since) {
				events = append(events, event)
			}
		}
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, nil
}
