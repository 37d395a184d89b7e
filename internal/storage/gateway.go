// Package storage abstracts the durable document store behind a Gateway
// interface with two implementations: a sqlite-backed durable store and a
// process-wide in-memory fallback used when the durable store is
// unavailable. Failover between them is a strategy swap, not a branch
// scattered through business logic.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no Link or Record exists for a short code.
	ErrNotFound = errors.New("storage: not found")

	// ErrCodeTaken is returned when a short code is already assigned.
	ErrCodeTaken = errors.New("storage: short code already taken")
)

// Gateway is the capability set every storage backend must provide.
// ApplyClick must be atomic with respect to concurrent callers on the
// same short code: increments are applied as deltas at the store, never
// as a caller-side read-modify-write.
type Gateway interface {
	// CreateLink inserts a Link and its zeroed Record in one transaction.
	// The pair is never split across stores.
	CreateLink(ctx context.Context, link *Link) error

	GetLink(ctx context.Context, code string) (*Link, error)

	// ListLinksByOwner returns the owner's links sorted by creation time,
	// newest first.
	ListLinksByOwner(ctx context.Context, ownerID string) ([]Link, error)

	// DeleteLink removes the Link, its Record, breakdown counters and
	// click history together.
	DeleteLink(ctx context.Context, code string) error

	GetRecord(ctx context.Context, code string) (*RecordView, error)

	// ApplyClick merges one delta into the link's analytics atomically:
	// field increments, breakdown upserts, and at most one history append.
	ApplyClick(ctx context.Context, code string, delta ClickDelta) error

	// ListClicks returns the link's click history at or after since,
	// ordered by timestamp.
	ListClicks(ctx context.Context, code string, since time.Time) ([]ClickEvent, error)

	// ListAllClicks returns every stored click at or after since, across
	// all links, ordered by timestamp.
	ListAllClicks(ctx context.Context, since time.Time) ([]ClickEvent, error)
}
