package main

import (
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"estoque-backend/internal/audit"
	"estoque-backend/internal/auth"
	"estoque-backend/internal/config"
	"estoque-backend/internal/dashboard"
	"estoque-backend/internal/database"
	"estoque-backend/internal/jobs"
	"estoque-backend/internal/logging"
	"estoque-backend/internal/lookup"
	"estoque-backend/internal/models"
	"estoque-backend/internal/stockcache"
	"estoque-backend/internal/stockmetrics"
	"estoque-backend/internal/warehouse"
	"estoque-backend/internal/yield"
	"estoque-backend/internal/yieldstore"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logging.SetLevel(cfg.LogLevel)
	log := logging.Module("server")
	database.Init(cfg)

	source := warehouse.New(cfg.StockDSN, cfg.StockQuery, cfg.StockQueryTimeout)
	if closer, ok := source.(*warehouse.SQLServerSource); ok {
		defer closer.Close()
	}

	cacheCfg := stockcache.Config{
		Source:       source,
		Names:        stockcache.LookupFile(cfg.NamesPath, lookup.Options{Encoding: cfg.LookupEncoding}),
		Classes:      stockcache.LookupFile(cfg.ClassificationPath, lookup.Options{Encoding: cfg.LookupEncoding, Uppercase: true}),
		RequireNames: cfg.RequireNames,
		Metrics:      stockmetrics.Options{SubtractDamaged: cfg.SubtractDamaged},
		TTL:          cfg.StockCacheTTL,
	}
	if cfg.RedisAddr != "" {
		mirror := stockcache.NewRedisMirror(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}))
		defer mirror.Close()
		cacheCfg.Mirror = mirror
		log.WithField("addr", cfg.RedisAddr).Info("stock snapshot mirrored to redis")
	}
	cache := stockcache.New(cacheCfg)

	store, err := yieldstore.Open(cfg.YieldStorePath)
	if err != nil {
		log.WithError(err).Fatal("yield store could not be opened")
	}

	scheduler, err := jobs.Start(jobs.StockRefresh(cache, cfg.StockRefreshSchedule))
	if err != nil {
		log.WithError(err).Fatal("scheduler could not start")
	}
	defer scheduler.Stop()

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var e *fiber.Error
			if errors.As(err, &e) {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			logging.LogError("server", "ErrorHandler", c.Method()+" "+c.Path(), nil, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Erro inesperado no servidor",
			})
		},
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Output: logging.GetLogger().Out,
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(corsOrigins, ","),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		AllowMethods:  "GET,POST,OPTIONS",
		ExposeHeaders: "Content-Disposition",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-admin", auth.RegisterAdminHandler(cfg))
	api.Post("/auth/login", auth.LoginHandler(cfg))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())

	adminOnly := auth.RequireRole(models.RoleAdmin)
	writers := auth.RequireRole(models.RoleAdmin, models.RoleOperator)

	// Users
	protected.Post("/users", adminOnly, auth.CreateUserHandler())
	protected.Get("/users", adminOnly, auth.ListUsersHandler())

	// Stock dashboard
	dash := protected.Group("/dashboard")
	dash.Get("/kpis", dashboard.KPIsHandler(cache))
	dash.Get("/top", dashboard.TopHandler(cache))
	dash.Get("/pareto", dashboard.ParetoHandler(cache))
	dash.Get("/breakdown", dashboard.BreakdownHandler(cache))
	dash.Get("/table", dashboard.TableHandler(cache))
	dash.Get("/columns", dashboard.ColumnsHandler())
	dash.Post("/refresh", adminOnly, dashboard.RefreshHandler(cache))

	// Deboning yield records
	records := protected.Group("/yield-records")
	records.Post("/", writers, yield.CreateYieldRecordHandler(store))
	records.Get("/", yield.ListYieldRecordsHandler(store))
	records.Get("/options", yield.OptionsHandler(store))
	records.Get("/supplier-yield", yield.SupplierYieldHandler(store))
	records.Get("/cut-trend", yield.CutTrendHandler(store))
	records.Get("/cut-averages", yield.CutAveragesHandler(store))
	records.Get("/duplicates", yield.DuplicatesHandler(store))
	records.Get("/report", yield.ReportHandler(store, cfg.ReportAttribution))

	// Audit logs
	protected.Get("/audit-logs", adminOnly, audit.ListAuditLogsHandler())

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("shutting down")
		_ = app.Shutdown()
	}()

	log.WithField("port", cfg.HTTPPort).Info("server listening")
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
