package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// SQLiteStore is the durable Gateway backed by the application database.
// Counter updates run as SQL deltas so concurrent clicks on the same code
// never lose an increment.
type SQLiteStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a durable store on top of an open connection.
func NewSQLiteStore(db *gorm.DB, logger *slog.Logger) *SQLiteStore {
	return &SQLiteStore{db: db, logger: logger}
}

var _ Gateway = (*SQLiteStore)(nil)

func (s *SQLiteStore) CreateLink(ctx context.Context, link *Link) error {
	return sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Link{}).Where("short_code = ?", link.ShortCode).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check short code: %w", err)
		}
		if count > 0 {
			return ErrCodeTaken
		}

		if err := tx.Create(link).Error; err != nil {
			return fmt.Errorf("failed to create link: %w", err)
		}

		now := time.Now().UTC()
		record := &Record{ShortCode: link.ShortCode, CreatedAt: now, UpdatedAt: now}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to create analytics record: %w", err)
		}

		return nil
	})
}

func (s *SQLiteStore) GetLink(ctx context.Context, code string) (*Link, error) {
	var link Link
	err := s.db.WithContext(ctx).Where("short_code = ?", code).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return &link, nil
}

func (s *SQLiteStore) ListLinksByOwner(ctx context.Context, ownerID string) ([]Link, error) {
	var links []Link
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	return links, nil
}

func (s *SQLiteStore) DeleteLink(ctx context.Context, code string) error {
	return sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		result := tx.Where("short_code = ?", code).Delete(&Link{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete link: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		// Analytics mirror the link lifecycle: counters, breakdowns and
		// history all go with it.
		if err := tx.Where("short_code = ?", code).Delete(&Record{}).Error; err != nil {
			return fmt.Errorf("failed to delete analytics record: %w", err)
		}
		if err := tx.Where("short_code = ?", code).Delete(&BreakdownStat{}).Error; err != nil {
			return fmt.Errorf("failed to delete breakdown stats: %w", err)
		}
		if err := tx.Where("short_code = ?", code).Delete(&ClickEvent{}).Error; err != nil {
			return fmt.Errorf("failed to delete click history: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) GetRecord(ctx context.Context, code string) (*RecordView, error) {
	var record Record
	err := s.db.WithContext(ctx).Where("short_code = ?", code).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get analytics record: %w", err)
	}

	var stats []BreakdownStat
	if err := s.db.WithContext(ctx).Where("short_code = ?", code).Find(&stats).Error; err != nil {
		return nil, fmt.Errorf("failed to get breakdown stats: %w", err)
	}

	view := &RecordView{
		ShortCode:   record.ShortCode,
		Impressions: record.Impressions,
		Clicks:      record.Clicks,
		Shares:      record.Shares,
		Devices:     make(map[string]int64),
		Browsers:    make(map[string]int64),
		Referrers:   make(map[string]int64),
	}
	for _, stat := range stats {
		switch stat.Dimension {
		case DimensionDevice:
			view.Devices[stat.Label] = stat.Count
		case DimensionBrowser:
			view.Browsers[stat.Label] = stat.Count
		case DimensionReferrer:
			view.Referrers[stat.Label] = stat.Count
		}
	}
	return view, nil
}

func (s *SQLiteStore) ApplyClick(ctx context.Context, code string, delta ClickDelta) error {
	return sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		now := time.Now().UTC()

		result := tx.Exec(`
			UPDATE records SET
				impressions = impressions + ?,
				clicks = clicks + ?,
				shares = shares + ?,
				updated_at = ?
			WHERE short_code = ?
		`, delta.Impressions, delta.Clicks, delta.Shares, now, code)
		if result.Error != nil {
			return fmt.Errorf("failed to apply counter deltas: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		for _, bump := range []struct {
			dimension string
			label     string
		}{
			{DimensionDevice, delta.Device},
			{DimensionBrowser, delta.Browser},
			{DimensionReferrer, delta.Referrer},
		} {
			if bump.label == "" {
				continue
			}
			if err := upsertBreakdown(tx, code, bump.dimension, bump.label, now); err != nil {
				return err
			}
		}

		if delta.Event != nil {
			event := *delta.Event
			event.ShortCode = code
			event.CreatedAt = now
			if err := tx.Create(&event).Error; err != nil {
				return fmt.Errorf("failed to append click event: %w", err)
			}
		}

		return nil
	})
}

func upsertBreakdown(tx *gorm.DB, code, dimension, label string, now time.Time) error {
	query := `
		INSERT INTO breakdown_stats (short_code, dimension, label, count, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT (short_code, dimension, label) DO UPDATE SET
			count = breakdown_stats.count + 1,
			updated_at = ?
	`
	if err := tx.Exec(query, code, dimension, label, now, now, now).Error; err != nil {
		return fmt.Errorf("failed to upsert %s breakdown: %w", dimension, err)
	}
	return nil
}

func (s *SQLiteStore) ListClicks(ctx context.Context, code string, since time.Time) ([]ClickEvent, error) {
	var events []ClickEvent
	err := s.db.WithContext(ctx).
		Where("short_code = ? AND timestamp >= ?", code, since).
		Order("timestamp ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list clicks: %w", err)
	}
	return events, nil
}

func (s *SQLiteStore) ListAllClicks(ctx context.Context, since time.Time) ([]ClickEvent, error) {
	var events []ClickEvent
	err := s.db.WithContext(ctx).
		Where("timestamp >= ?", since).
		Order("timestamp ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list all clicks: %w", err)
	}
	return events, nil
}
