package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	"linkpulse/internal/auth"
	"linkpulse/internal/config"
	"linkpulse/internal/http"
	"linkpulse/internal/realtime"
)

// publicCORSConfig is shared by the public endpoints: tracking snippets
// and dashboards call them cross-origin.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,DELETE,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization, Referrer, User-Agent",
}

// MountAppRoutes mounts all application routes using cartridge's route API
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()
	logger := srv.GetLogger()
	verifier := auth.NewJWTVerifier(cfg.AuthSecret)

	// Rate limiting only applies in production; in development and test
	// it would interfere with local iteration and test suites.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// Redirects and tracking carry real visitor traffic; 120/min per IP
	// leaves room for busy link shares while capping abuse.
	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(120),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Link creation is a user action, not visitor traffic.
	shortenRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(30),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// No Sec-Fetch-Site on these: tracking calls come from non-browser
	// clients and the bearer-token endpoints are CSRF-immune already.
	publicConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		EnableSecFetchSite: cartridge.Bool(false),
		CustomMiddleware:   []fiber.Handler{publicRateLimiter},
		CORSConfig:         publicCORSConfig,
	}

	authConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		EnableSecFetchSite: cartridge.Bool(false),
		CustomMiddleware:   []fiber.Handler{auth.RequireAuth(verifier, logger)},
		CORSConfig:         publicCORSConfig,
	}

	shortenConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		EnableSecFetchSite: cartridge.Bool(false),
		CustomMiddleware:   []fiber.Handler{shortenRateLimiter, auth.RequireAuth(verifier, logger)},
		CORSConfig:         publicCORSConfig,
	}

	// Anonymous visitors get the demo payload instead of a 401.
	optionalAuthConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		CustomMiddleware: []fiber.Handler{publicRateLimiter, auth.OptionalAuth(verifier, logger)},
		CORSConfig:       publicCORSConfig,
	}

	// Health check endpoint
	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)

	// === LINK MANAGEMENT ===
	srv.Post("/api/shorten", http.ShortenCreateAction, shortenConfig)
	srv.Options("/api/shorten", func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}, publicConfig)
	srv.Get("/api/user/links", http.UserLinksIndexAction, authConfig)
	srv.Delete("/api/links/:shortCode", http.LinkDeleteAction, authConfig)

	// === ANALYTICS API ===
	// geo/latest must precede geo/:shortCode so "latest" is never read
	// as a short code.
	srv.Get("/api/analytics/geo/latest", http.GeoLatestAction, optionalAuthConfig)
	srv.Get("/api/analytics/geo/:shortCode", http.GeoShowAction, publicConfig)
	srv.Get("/api/analytics/:shortCode", http.AnalyticsShowAction, publicConfig)
	srv.Post("/api/track/impression/:shortCode", http.ImpressionTrackAction, publicConfig)
	srv.Options("/api/track/impression/:shortCode", func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}, publicConfig)

	// === LIVE DASHBOARD ===
	// The websocket route sits on the fiber app directly; upgrade
	// handlers do not flow through cartridge's request wrapper.
	broker := realtime.Default(logger)
	srv.App().Use("/ws/analytics", realtime.UpgradeRequired)
	srv.App().Get("/ws/analytics", realtime.Handler(broker, logger))

	// === REDIRECTS ===
	// Mounted last: /:shortCode swallows every unmatched path.
	srv.Head("/:shortCode", http.PreviewAction, publicConfig)
	srv.Get("/:shortCode", http.RedirectAction, publicConfig)
}
