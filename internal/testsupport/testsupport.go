package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"linkpulse/internal"
	"linkpulse/internal/auth"
	"linkpulse/internal/config"
	linkhttp "linkpulse/internal/http"
	"linkpulse/internal/realtime"
	"linkpulse/internal/storage"
)

// testDBCache caches test databases by test name to allow multiple calls
// within the same test to share the same database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager with linkpulse's interface
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

// Ensure TestDBManager implements cartridge.DBManager
var _ cartridge.DBManager = (*TestDBManager)(nil)

func allModels() []any {
	return []any{
		&storage.Link{},
		&storage.Record{},
		&storage.BreakdownStat{},
		&storage.ClickEvent{},
	}
}

// SetupTestDB creates a test database with all linkpulse models migrated.
// Uses a named in-memory database with cache=shared to allow multiple connections
// to share the same database within a test. Caches the database by test name
// so multiple calls within the same test return the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testName := t.Name()

	// Use root test name for caching to handle closure issues where
	// setup functions capture the outer t while t.Run has subtest t
	rootName := testName
	if idx := strings.Index(testName, "/"); idx > 0 {
		rootName = testName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	// Create a unique named in-memory database for each test
	// cache=shared allows multiple connections to the same database
	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	if err := db.AutoMigrate(allModels()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager using cartridge's testsupport
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	cfg := config.GetConfig()

	// SAFETY CHECK: Ensure we're in test environment
	if cfg.Environment != config.Test {
		t.Fatalf("CRITICAL: Tests must run in test environment! Current: %s. Set LINKPULSE_ENV=test", cfg.Environment)
	}

	db := SetupTestDB(t)
	logger := GetLogger()
	dbManager := NewTestDBManager(db)

	return dbManager, logger
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CreateTestLink stores a link with a zeroed analytics record through
// the sqlite gateway.
func CreateTestLink(t *testing.T, db *gorm.DB, code, ownerID, targetURL string) *storage.Link {
	t.Helper()

	store := storage.NewSQLiteStore(db, GetLogger())
	link := &storage.Link{
		ShortCode: code,
		OwnerID:   ownerID,
		TargetURL: targetURL,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateLink(t.Context(), link))
	return link
}

// CreateTestClick applies a full click delta for the given code.
func CreateTestClick(t *testing.T, db *gorm.DB, code, device, browser, referrer, country, city string, at time.Time) {
	t.Helper()

	store := storage.NewSQLiteStore(db, GetLogger())
	delta := storage.ClickDelta{
		Impressions: 1,
		Clicks:      1,
		Device:      device,
		Browser:     browser,
		Referrer:    referrer,
		Event: &storage.ClickEvent{
			ShortCode:  code,
			Timestamp:  at,
			DeviceType: device,
			Browser:    browser,
			Referrer:   referrer,
			Country:    country,
			City:       city,
			CreatedAt:  at,
		},
	}
	require.NoError(t, store.ApplyClick(t.Context(), code, delta))
}

// AuthHeader returns a Bearer header value for a test user, signed with
// the configured auth secret.
func AuthHeader(t *testing.T, userID, email string) string {
	t.Helper()

	token, err := auth.IssueToken(config.GetConfig().AuthSecret, auth.Identity{UserID: userID, Email: email}, nil)
	require.NoError(t, err)
	return "Bearer " + token
}

// CreateMinimalTestApp creates a test Fiber app with all routes
func CreateMinimalTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	// The handler layer shares one service bundle per process; reset it
	// plus the fallback store and broker so tests stay isolated.
	linkhttp.ResetServices()
	storage.ResetFallback()
	realtime.ResetDefault()

	dbManager := NewTestDBManager(db)
	appConfig := config.GetConfig()
	appConfig.Environment = config.Test

	cfg := cartridge.DefaultServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = dbManager
	// Matches production: Sec-Fetch-Site is browser-only and the API
	// serves non-browser clients, so the strict check stays off.
	cfg.EnableSecFetchSite = false

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountAppRoutes(srv)
	return srv.App()
}
