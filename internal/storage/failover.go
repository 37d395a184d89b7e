package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Failover is a Gateway that prefers the durable store and replays the
// full operation against the in-process fallback when a durable call
// fails. Write paths degrade silently: the user-visible operation still
// succeeds with weaker durability, never a surfaced store error. Reads
// consult the fallback too, so links created during an outage stay
// reachable.
type Failover struct {
	durable  Gateway
	fallback Gateway
	logger   *slog.Logger
}

// NewFailover wraps a durable store with an in-process fallback.
func NewFailover(durable, fallback Gateway, logger *slog.Logger) *Failover {
	return &Failover{durable: durable, fallback: fallback, logger: logger}
}

var _ Gateway = (*Failover)(nil)

// storeFailure reports whether err is an infrastructure failure rather
// than a business outcome like not-found or code-taken.
func storeFailure(err error) bool {
	return err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrCodeTaken)
}

func (f *Failover) CreateLink(ctx context.Context, link *Link) error {
	err := f.durable.CreateLink(ctx, link)
	if !storeFailure(err) {
		return err
	}

	// Link and Record fall back together so the pair is never split
	// across stores.
	f.logger.Warn("Durable store unavailable, creating link in fallback store",
		slog.String("short_code", link.ShortCode), slog.Any("error", err))
	return f.fallback.CreateLink(ctx, link)
}

func (f *Failover) GetLink(ctx context.Context, code string) (*Link, error) {
	link, err := f.durable.GetLink(ctx, code)
	if err == nil {
		return link, nil
	}

	if storeFailure(err) {
		f.logger.Warn("Durable store unavailable, reading link from fallback store",
			slog.String("short_code", code), slog.Any("error", err))
	}
	if link, ferr := f.fallback.GetLink(ctx, code); ferr == nil {
		return link, nil
	}
	if storeFailure(err) {
		return nil, ErrNotFound
	}
	return nil, err
}

func (f *Failover) ListLinksByOwner(ctx context.Context, ownerID string) ([]Link, error) {
	links, err := f.durable.ListLinksByOwner(ctx, ownerID)
	if err == nil {
		return links, nil
	}

	f.logger.Warn("Durable store unavailable, listing links from fallback store",
		slog.String("owner_id", ownerID), slog.Any("error", err))
	return f.fallback.ListLinksByOwner(ctx, ownerID)
}

func (f *Failover) DeleteLink(ctx context.Context, code string) error {
	err := f.durable.DeleteLink(ctx, code)
	if err == nil {
		return nil
	}

	if storeFailure(err) {
		f.logger.Warn("Durable store unavailable, deleting link in fallback store",
			slog.String("short_code", code), slog.Any("error", err))
		return f.fallback.DeleteLink(ctx, code)
	}

	// Not found in the durable store; the link may live only in the
	// fallback if it was created during an outage.
	if ferr := f.fallback.DeleteLink(ctx, code); ferr == nil {
		return nil
	}
	return err
}

func (f *Failover) GetRecord(ctx context.Context, code string) (*RecordView, error) {
	view, err := f.durable.GetRecord(ctx, code)
	if err == nil {
		return view, nil
	}

	if storeFailure(err) {
		f.logger.Warn("Durable store unavailable, reading record from fallback store",
			slog.String("short_code", code), slog.Any("error", err))
	}
	if view, ferr := f.fallback.GetRecord(ctx, code); ferr == nil {
		return view, nil
	}
	if storeFailure(err) {
		return nil, ErrNotFound
	}
	return nil, err
}

func (f *Failover) ApplyClick(ctx context.Context, code string, delta ClickDelta) error {
	err := f.durable.ApplyClick(ctx, code, delta)
	if err == nil {
		return nil
	}

	if storeFailure(err) {
		// Replay the whole merge so the visible counters stay consistent
		// even though persistence is weaker.
		f.logger.Warn("Durable store unavailable, replaying click in fallback store",
			slog.String("short_code", code), slog.Any("error", err))
		return f.fallback.ApplyClick(ctx, code, delta)
	}

	if ferr := f.fallback.ApplyClick(ctx, code, delta); ferr == nil {
		return nil
	}
	return err
}

func (f *Failover) ListClicks(ctx context.Context, code string, since time.Time) ([]ClickEvent, error) {
	events, err := f.durable.ListClicks(ctx, code, since)
	if err == nil {
		return events, nil
	}

	if storeFailure(err) {
		f.logger.Warn("Durable store unavailable, reading clicks from fallback store",
			slog.String("short_code", code), slog.Any("error", err))
	}
	if events, ferr := f.fallback.ListClicks(ctx, code, since); ferr == nil {
		return events, nil
	}
	if storeFailure(err) {
		return nil, ErrNotFound
	}
	return nil, err
}

func (f *Failover) ListAllClicks(ctx context.Context, since time.Time) ([]ClickEvent, error) {
	events, err := f.durable.ListAllClicks(ctx, since)
	if err == nil {
		return events, nil
	}

	f.logger.Warn("Durable store unavailable, reading clicks from fallback store",
		slog.Any("error", err))
	return f.fallback.ListAllClicks(ctx, since)
}
