// Package http contains the HTTP actions for the shortener and its
// analytics API.
package http

import (
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"linkpulse/internal/analytics"
	"linkpulse/internal/classifier"
	"linkpulse/internal/config"
	"linkpulse/internal/links"
	"linkpulse/internal/realtime"
	"linkpulse/internal/storage"
)

// Services bundles the request-facing components. Built once from the
// first request's context and shared after that; every piece is safe
// for concurrent use.
type Services struct {
	Store      storage.Gateway
	Registry   *links.Registry
	Aggregator *analytics.Aggregator
	Rollup     *analytics.Rollup
}

var (
	servicesOnce sync.Once
	services     *Services
)

func getServices(ctx *cartridge.Context) *Services {
	servicesOnce.Do(func() {
		cfg := config.GetConfig()

		durable := storage.NewSQLiteStore(ctx.DBManager.GetConnection(), ctx.Logger)
		store := storage.NewFailover(durable, storage.Fallback(), ctx.Logger)

		var cache *links.Cache
		if cfg.CacheEnabled() {
			cache = links.NewCache(cfg.RedisAddr, cfg.RedisPassword,
				time.Duration(cfg.CacheTTLSeconds)*time.Second)
		}

		rollup := analytics.NewRollup(store, cfg.RollupWindowDays, ctx.Logger)
		broker := realtime.Default(ctx.Logger)

		services = &Services{
			Store:      store,
			Registry:   links.NewRegistry(store, cache, ctx.Logger),
			Aggregator: analytics.NewAggregator(store, broker, rollup, ctx.Logger),
			Rollup:     rollup,
		}
	})
	return services
}

// ResetServices discards the shared service bundle; intended for tests.
func ResetServices() {
	servicesOnce = sync.Once{}
	services = nil
}

// apiError maps domain errors to their HTTP representation.
func apiError(ctx *cartridge.Context, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "short code not found"})
	case errors.Is(err, storage.ErrCodeTaken):
		return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "short code already taken"})
	case errors.Is(err, links.ErrInvalidURL):
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid URL"})
	case errors.Is(err, links.ErrInvalidCustomCode):
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "custom short code must be 3-50 characters of letters, digits, underscore or hyphen"})
	case errors.Is(err, links.ErrForbidden):
		return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not the link owner"})
	default:
		ctx.Logger.Error("Unhandled API error", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}

// classifierInput builds the classifier input for the current request.
// The utm_source query parameter on the visit wins; the value stored at
// shorten time marks campaign links whose visits are all shares.
func classifierInput(ctx *cartridge.Context, storedUTMSource string) classifier.Input {
	utmSource := ctx.Query("utm_source")
	if utmSource == "" {
		utmSource = storedUTMSource
	}
	return classifier.Input{
		UserAgent: ctx.Get(fiber.HeaderUserAgent),
		Referrer:  ctx.Get(fiber.HeaderReferer),
		UTMSource: utmSource,
	}
}

// locationFromHeaders reads visitor geography from the upstream proxy's
// headers. Values pass through verbatim; missing headers leave the
// fields zero and the aggregation buckets them as Unknown.
func locationFromHeaders(ctx *cartridge.Context) classifier.Location {
	code := ctx.Get("X-Geo-Country-Code")
	if code == "" {
		code = ctx.Get("CF-IPCountry")
	}

	loc := classifier.Location{
		Country:     ctx.Get("X-Geo-Country"),
		City:        ctx.Get("X-Geo-City"),
		Region:      ctx.Get("X-Geo-Region"),
		CountryCode: code,
	}
	if lat, err := strconv.ParseFloat(ctx.Get("X-Geo-Latitude"), 64); err == nil {
		loc.Latitude = lat
	}
	if lng, err := strconv.ParseFloat(ctx.Get("X-Geo-Longitude"), 64); err == nil {
		loc.Longitude = lng
	}
	return loc
}
