package routes

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dialkey/dialkey/internal/ban"
	"github.com/dialkey/dialkey/internal/config"
	"github.com/dialkey/dialkey/internal/identity"
	"github.com/dialkey/dialkey/internal/kv"
	"github.com/dialkey/dialkey/internal/login"
	"github.com/dialkey/dialkey/internal/middleware"
	"github.com/dialkey/dialkey/internal/phone"
	"github.com/dialkey/dialkey/internal/pin"
	"github.com/dialkey/dialkey/internal/throttle"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. With a nil DB or
// Cache (dev and tests only) the in-memory implementations are used instead.
func Setup(app *fiber.App, d Deps) error {
	if !isDev(d.Cfg.AppEnv) && !d.Cfg.IsTest() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var store kv.Store
	if d.Cache != nil {
		store = kv.NewRedisStore(d.Cache)
	} else {
		store = kv.NewMemoryStore()
	}

	var repo identity.Repository
	if d.DB != nil {
		repo = identity.NewPostgresRepository(d.DB)
	} else {
		repo = identity.NewMemoryRepository()
	}

	bans := ban.NewRegistry(store)
	attempts := throttle.NewCounter(store, bans, d.Cfg.AttemptWindow, d.Cfg.AttemptMax, d.Logger)
	pins := pin.NewService(store, pin.NewLogSender(d.Logger), d.Cfg.PinTTL, d.Cfg.PinDigits, d.Logger)
	ids := identity.NewService(repo, !d.Cfg.DisableSignups, d.Cfg.Operators, d.Logger)
	hasher := phone.NewHasher(d.Cfg.PhoneHashSecret)

	flow := login.NewService(d.Cfg, hasher, bans, attempts, pins, ids, d.Logger)
	sessions := fibersession.New(fibersession.Config{CookieHTTPOnly: true})
	handler := login.NewHandler(flow, sessions, d.Cfg, d.Logger)

	RegisterLoginRoutes(app, handler)

	return nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
