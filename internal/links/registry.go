// Package links manages short-code to target-URL mappings: creation with
// generated or custom codes, UTM augmentation of the target URL, lookup,
// per-owner listing and owner-checked deletion.
package links

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"regexp"
	"sort"
	"time"

	"linkpulse/internal/storage"
)

var (
	// ErrInvalidURL is returned when the target does not parse as an
	// absolute URL.
	ErrInvalidURL = errors.New("links: invalid URL")

	// ErrInvalidCustomCode is returned when a custom short code violates
	// the length or charset rules.
	ErrInvalidCustomCode = errors.New("links: invalid custom short code")

	// ErrForbidden is returned when a requester is not the link's owner.
	ErrForbidden = errors.New("links: forbidden")
)

const (
	// GeneratedCodeLength is the length of random short codes.
	GeneratedCodeLength = 7

	// codeAlphabet is URL-safe: letters, digits, underscore and hyphen.
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

	// maxGenerateAttempts bounds collision retries. Collisions are
	// negligible at this alphabet and length, but the contract is to
	// detect and regenerate, not to assume uniqueness.
	maxGenerateAttempts = 5
)

var customCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,50}$`)

// UTMParams are campaign attribution tags merged into the target URL.
type UTMParams struct {
	Source   string `json:"source"`
	Medium   string `json:"medium"`
	Campaign string `json:"campaign"`
	Term     string `json:"term"`
	Content  string `json:"content"`
}

// CreateInput describes one shorten request.
type CreateInput struct {
	URL        string
	OwnerID    string
	CustomCode string
	UTM        UTMParams
}

// Registry implements link operations on top of a storage gateway, with
// an optional Redis lookup cache in front of it.
type Registry struct {
	store  storage.Gateway
	cache  *Cache
	logger *slog.Logger
}

// NewRegistry creates a registry. cache may be nil when Redis is not
// configured.
func NewRegistry(store storage.Gateway, cache *Cache, logger *slog.Logger) *Registry {
	return &Registry{store: store, cache: cache, logger: logger}
}

// Create validates the request, augments the target URL with UTM
// parameters and stores the Link together with its zeroed analytics
// record. Custom codes conflict with storage.ErrCodeTaken; generated
// codes retry on collision.
func (r *Registry) Create(ctx context.Context, input CreateInput) (*storage.Link, error) {
	target, err := normalizeTargetURL(input.URL, input.UTM)
	if err != nil {
		return nil, err
	}

	link := &storage.Link{
		OwnerID:     input.OwnerID,
		TargetURL:   target,
		UTMSource:   input.UTM.Source,
		UTMMedium:   input.UTM.Medium,
		UTMCampaign: input.UTM.Campaign,
		UTMTerm:     input.UTM.Term,
		UTMContent:  input.UTM.Content,
		CreatedAt:   time.Now().UTC(),
	}

	if input.CustomCode != "" {
		if !customCodePattern.MatchString(input.CustomCode) {
			return nil, ErrInvalidCustomCode
		}
		link.ShortCode = input.CustomCode
		link.IsCustom = true

		if err := r.store.CreateLink(ctx, link); err != nil {
			return nil, err
		}
		r.cacheSet(ctx, link)
		return link, nil
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code, err := GenerateCode(GeneratedCodeLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate short code: %w", err)
		}
		link.ShortCode = code

		err = r.store.CreateLink(ctx, link)
		if err == nil {
			r.cacheSet(ctx, link)
			return link, nil
		}
		if !errors.Is(err, storage.ErrCodeTaken) {
			return nil, err
		}
		r.logger.Warn("Generated short code collided, regenerating",
			slog.String("short_code", code), slog.Int("attempt", attempt+1))
	}

	return nil, fmt.Errorf("links: exhausted %d short code attempts", maxGenerateAttempts)
}

// Lookup resolves a short code to its Link, consulting the cache first.
func (r *Registry) Lookup(ctx context.Context, code string) (*storage.Link, error) {
	if r.cache != nil {
		if link, err := r.cache.Get(ctx, code); err == nil {
			return link, nil
		} else if !errors.Is(err, ErrCacheMiss) {
			r.logger.Warn("Link cache read failed", slog.Any("error", err))
		}
	}

	link, err := r.store.GetLink(ctx, code)
	if err != nil {
		return nil, err
	}
	r.cacheSet(ctx, link)
	return link, nil
}

// ListByOwner returns the owner's links newest first. The client-side
// sort keeps the ordering even for backends that cannot serve a sorted
// query.
func (r *Registry) ListByOwner(ctx context.Context, ownerID string) ([]storage.Link, error) {
	links, err := r.store.ListLinksByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(links, func(i, j int) bool {
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
	return links, nil
}

// Delete removes a link and its analytics. Only the owner may delete;
// anyone else gets ErrForbidden and the link stays untouched.
func (r *Registry) Delete(ctx context.Context, code, requesterID string) error {
	link, err := r.store.GetLink(ctx, code)
	if err != nil {
		return err
	}
	if link.OwnerID != requesterID {
		return ErrForbidden
	}

	if err := r.store.DeleteLink(ctx, code); err != nil {
		return err
	}
	r.cacheInvalidate(ctx, code)
	return nil
}

func (r *Registry) cacheSet(ctx context.Context, link *storage.Link) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, link); err != nil {
		r.logger.Warn("Failed to cache link", slog.String("short_code", link.ShortCode), slog.Any("error", err))
	}
}

func (r *Registry) cacheInvalidate(ctx context.Context, code string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, code); err != nil {
		r.logger.Warn("Failed to invalidate cached link", slog.String("short_code", code), slog.Any("error", err))
	}
}

// normalizeTargetURL validates the target parses as an absolute URL and
// merges UTM parameters into its query string. Parameters are set by
// name, not appended, so re-shortening an already tagged URL does not
// duplicate them.
func normalizeTargetURL(rawURL string, utm UTMParams) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return "", ErrInvalidURL
	}

	query := parsed.Query()
	for name, value := range map[string]string{
		"utm_source":   utm.Source,
		"utm_medium":   utm.Medium,
		"utm_campaign": utm.Campaign,
		"utm_term":     utm.Term,
		"utm_content":  utm.Content,
	} {
		if value != "" {
			query.Set(name, value)
		}
	}
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}

// GenerateCode returns a random URL-safe short code.
func GenerateCode(length int) (string, error) {
	code := make([]byte, length)
	alphabetLen := big.NewInt(int64(len(codeAlphabet)))

	for i := range code {
		randomIndex, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[randomIndex.Int64()]
	}

	return string(code), nil
}
