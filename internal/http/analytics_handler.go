package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"linkpulse/internal/analytics"
	"linkpulse/internal/auth"
	"linkpulse/internal/config"
	"linkpulse/internal/storage"
	"linkpulse/internal/timeframe"
)

type LinkSummary struct {
	ShortCode string `json:"shortCode"`
	TargetURL string `json:"targetUrl"`
	IsCustom  bool   `json:"isCustom"`
	CreatedAt string `json:"createdAt"`
}

type AnalyticsResponse struct {
	Link      LinkSummary           `json:"link"`
	Analytics *storage.RecordView   `json:"analytics"`
	Geo       *analytics.GeoReport  `json:"geo"`
}

// AnalyticsShowAction handles GET /api/analytics/:shortCode.
func AnalyticsShowAction(ctx *cartridge.Context) error {
	code := ctx.Params("shortCode")
	svc := getServices(ctx)

	link, err := svc.Store.GetLink(ctx.UserContext(), code)
	if err != nil {
		return apiError(ctx, err)
	}

	view, err := svc.Aggregator.GetAnalytics(ctx.UserContext(), code)
	if err != nil {
		return apiError(ctx, err)
	}

	geo, err := svc.Aggregator.GeoBreakdown(ctx.UserContext(), code, time.Time{}, time.Time{})
	if err != nil {
		return apiError(ctx, err)
	}

	return ctx.JSON(AnalyticsResponse{
		Link: LinkSummary{
			ShortCode: link.ShortCode,
			TargetURL: link.TargetURL,
			IsCustom:  link.IsCustom,
			CreatedAt: link.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		},
		Analytics: view,
		Geo:       geo,
	})
}

// ImpressionTrackAction handles POST /api/track/impression/:shortCode.
func ImpressionTrackAction(ctx *cartridge.Context) error {
	code := ctx.Params("shortCode")
	svc := getServices(ctx)

	if _, err := svc.Aggregator.RecordImpression(ctx.UserContext(), code); err != nil {
		return apiError(ctx, err)
	}
	return ctx.JSON(fiber.Map{"success": true})
}

// GeoLatestAction handles GET /api/analytics/geo/latest. Anonymous
// visitors and store outages both get the fixed demo payload so the
// landing page dashboard always renders.
func GeoLatestAction(ctx *cartridge.Context) error {
	cfg := config.GetConfig()

	if auth.UserID(ctx.Ctx) == "" {
		return ctx.JSON(analytics.DemoGlobalStats(cfg.RollupWindowDays))
	}

	svc := getServices(ctx)
	stats, err := svc.Rollup.ComputeGlobalStats(ctx.UserContext())
	if err != nil {
		ctx.Logger.Warn("Global rollup unavailable, serving demo stats", slog.Any("error", err))
		return ctx.JSON(analytics.DemoGlobalStats(cfg.RollupWindowDays))
	}
	return ctx.JSON(stats)
}

// GeoShowAction handles GET /api/analytics/geo/:shortCode with optional
// startDate and endDate parameters.
func GeoShowAction(ctx *cartridge.Context) error {
	code := ctx.Params("shortCode")

	dateRange, err := timeframe.NewParser().Parse(ctx.Query("startDate"), ctx.Query("endDate"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	svc := getServices(ctx)
	report, err := svc.Aggregator.GeoBreakdown(ctx.UserContext(), code, dateRange.From, dateRange.To)
	if err != nil {
		return apiError(ctx, err)
	}
	return ctx.JSON(report)
}
