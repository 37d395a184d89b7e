package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"linkpulse/internal/classifier"
	"linkpulse/internal/storage"
)

// RedirectAction handles GET /:shortCode. The visit is classified and
// recorded before the redirect is issued; a recording failure past the
// failover layer is logged but never turns a resolvable redirect into
// an error page.
func RedirectAction(ctx *cartridge.Context) error {
	code := ctx.Params("shortCode")
	svc := getServices(ctx)

	link, err := svc.Registry.Lookup(ctx.UserContext(), code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "short code not found"})
		}
		return apiError(ctx, err)
	}

	cls := classifier.Classify(classifierInput(ctx, link.UTMSource))
	loc := locationFromHeaders(ctx)

	if err := svc.Aggregator.RecordClick(ctx.UserContext(), code, cls, loc, ctx.Get(fiber.HeaderUserAgent)); err != nil {
		ctx.Logger.Error("Failed to record click",
			slog.String("short_code", code), slog.Any("error", err))
	}

	return ctx.Redirect(link.TargetURL, fiber.StatusFound)
}

// PreviewAction handles HEAD /:shortCode. Link previews fire HEAD
// probes; those count as impressions but never as clicks.
func PreviewAction(ctx *cartridge.Context) error {
	code := ctx.Params("shortCode")
	svc := getServices(ctx)

	if _, err := svc.Aggregator.RecordImpression(ctx.UserContext(), code); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ctx.SendStatus(fiber.StatusNotFound)
		}
		ctx.Logger.Error("Failed to record preview impression",
			slog.String("short_code", code), slog.Any("error", err))
	}

	return ctx.SendStatus(fiber.StatusOK)
}
