package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"linkpulse/internal/auth"
	"linkpulse/internal/config"
	"linkpulse/internal/links"
)

type ShortenRequest struct {
	URL             string          `json:"url"`
	CustomShortCode string          `json:"customShortCode"`
	UTMParams       links.UTMParams `json:"utmParams"`
}

type ShortenResponse struct {
	ShortURL    string `json:"shortUrl"`
	ShortCode   string `json:"shortCode"`
	OriginalURL string `json:"originalUrl"`
	IsCustom    bool   `json:"isCustom"`
}

// ShortenCreateAction handles POST /api/shorten.
func ShortenCreateAction(ctx *cartridge.Context) error {
	var req ShortenRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	svc := getServices(ctx)
	link, err := svc.Registry.Create(ctx.UserContext(), links.CreateInput{
		URL:        req.URL,
		OwnerID:    auth.UserID(ctx.Ctx),
		CustomCode: req.CustomShortCode,
		UTM:        req.UTMParams,
	})
	if err != nil {
		return apiError(ctx, err)
	}

	ctx.Logger.Info("Created short link",
		slog.String("short_code", link.ShortCode),
		slog.Bool("is_custom", link.IsCustom))

	return ctx.Status(fiber.StatusCreated).JSON(ShortenResponse{
		ShortURL:    config.GetConfig().BaseURL + "/" + link.ShortCode,
		ShortCode:   link.ShortCode,
		OriginalURL: link.TargetURL,
		IsCustom:    link.IsCustom,
	})
}
