package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"linkpulse/internal/auth"
	"linkpulse/internal/config"
	"linkpulse/internal/storage"
)

type UserLink struct {
	ShortCode string               `json:"shortCode"`
	ShortURL  string               `json:"shortUrl"`
	TargetURL string               `json:"targetUrl"`
	IsCustom  bool                 `json:"isCustom"`
	CreatedAt string               `json:"createdAt"`
	Analytics *storage.RecordView  `json:"analytics,omitempty"`
}

type UserLinksResponse struct {
	Links []UserLink `json:"links"`
}

// UserLinksIndexAction handles GET /api/user/links.
func UserLinksIndexAction(ctx *cartridge.Context) error {
	svc := getServices(ctx)
	ownerID := auth.UserID(ctx.Ctx)

	ownerLinks, err := svc.Registry.ListByOwner(ctx.UserContext(), ownerID)
	if err != nil {
		return apiError(ctx, err)
	}

	cfg := config.GetConfig()
	response := UserLinksResponse{Links: make([]UserLink, 0, len(ownerLinks))}
	for _, link := range ownerLinks {
		item := UserLink{
			ShortCode: link.ShortCode,
			ShortURL:  cfg.BaseURL + "/" + link.ShortCode,
			TargetURL: link.TargetURL,
			IsCustom:  link.IsCustom,
			CreatedAt: link.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}

		// A missing record is an empty summary, not an error; the listing
		// must survive partial analytics data.
		view, err := svc.Aggregator.GetAnalytics(ctx.UserContext(), link.ShortCode)
		if err == nil {
			item.Analytics = view
		} else if !errors.Is(err, storage.ErrNotFound) {
			ctx.Logger.Warn("Failed to load analytics summary for link",
				slog.String("short_code", link.ShortCode), slog.Any("error", err))
		}

		response.Links = append(response.Links, item)
	}

	return ctx.JSON(response)
}

// LinkDeleteAction handles DELETE /api/links/:shortCode.
func LinkDeleteAction(ctx *cartridge.Context) error {
	code := ctx.Params("shortCode")
	svc := getServices(ctx)

	if err := svc.Registry.Delete(ctx.UserContext(), code, auth.UserID(ctx.Ctx)); err != nil {
		return apiError(ctx, err)
	}

	ctx.Logger.Info("Deleted short link", slog.String("short_code", code))
	return ctx.JSON(fiber.Map{"success": true})
}
