package http

import (
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"linkpulse/internal/config"
)

type HealthStatus struct {
	App       string    `json:"app"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	DBStatus  string    `json:"db_status"`
}

// HealthIndexAction reports liveness plus database reachability. The
// endpoint always returns 200; a degraded status signals a DB problem
// without tripping load balancer health checks into a restart loop.
func HealthIndexAction(ctx *cartridge.Context) error {
	health := HealthStatus{
		App:       config.GetConfig().AppName,
		Status:    "ok",
		Timestamp: time.Now(),
		DBStatus:  "ok",
	}

	if err := pingDatabase(ctx.DBManager.GetConnection()); err != nil {
		ctx.Logger.Error("Health check database probe failed", slog.Any("error", err))
		health.DBStatus = "error"
		health.Status = "degraded"
	}

	return ctx.JSON(health)
}

func pingDatabase(db *gorm.DB) error {
	if db == nil {
		return gorm.ErrInvalidDB
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
