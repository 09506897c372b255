package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/mediconnect/booking/internal/config"
	"github.com/mediconnect/booking/internal/domain/booking"
	"github.com/mediconnect/booking/internal/domain/calendar"
	"github.com/mediconnect/booking/internal/platform/auth"
	"github.com/mediconnect/booking/internal/platform/db"
	"github.com/mediconnect/booking/internal/platform/doctorsvc"
	"github.com/mediconnect/booking/internal/platform/metrics"
	"github.com/mediconnect/booking/internal/platform/middleware"
)

const (
	serviceName = "booking"
	version     = "0.1.0"
)

// calendarBackend is the calendar the booking core reads. Admin is set only
// when the calendar lives in local tables and can be edited through this API.
type calendarBackend struct {
	Store calendar.Store
	Admin *calendar.Service
}

func newCalendarBackend(cfg *config.Config, pool *pgxpool.Pool, col *metrics.Collector, logger zerolog.Logger) (*calendarBackend, error) {
	switch cfg.CalendarSource {
	case config.CalendarSourceHTTP:
		dcfg := doctorsvc.Config{
			BaseURL: cfg.DoctorServiceURL,
			Timeout: cfg.CalendarTimeout,
		}
		if col != nil {
			dcfg.OnStateChange = col.ObserveBreakerState
		}
		client, err := doctorsvc.New(dcfg, logger)
		if err != nil {
			return nil, err
		}
		return &calendarBackend{Store: client}, nil
	case config.CalendarSourcePostgres:
		svc := calendar.NewService(
			calendar.NewDoctorRepoPG(pool),
			calendar.NewAvailabilityRepoPG(pool),
			calendar.NewOverrideRepoPG(pool),
			calendar.NewLeaveRepoPG(pool),
		)
		return &calendarBackend{Store: svc.Store(), Admin: svc}, nil
	default:
		return nil, fmt.Errorf("unknown calendar source %q", cfg.CalendarSource)
	}
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	return rl
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.AuthSigningKey),
		Skipper:    auth.AuthSkipper,
	}
	if cfg.IsDev() {
		return auth.DevAuthMiddleware(jwtCfg)
	}
	return auth.JWTMiddleware(jwtCfg)
}

// newServer assembles the HTTP surface. pool may be nil in tests, in which
// case /health/db is not registered.
func newServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, col *metrics.Collector,
	cal *calendarBackend, appointments booking.Repository, loc *time.Location) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(middleware.BodyLimit("64K"))
	if col != nil {
		e.Use(middleware.Metrics(col))
	}
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, auth.IsPublicPath))
	e.Use(authMiddleware(cfg))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitConfig(cfg)))

	svc := booking.NewService(appointments, cal.Store, loc, logger)
	if col != nil {
		svc.SetRecorder(col)
	}
	booking.NewHandler(svc).RegisterRoutes(apiV1)
	if cal.Admin != nil {
		calendar.NewHandler(cal.Admin).RegisterRoutes(apiV1)
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":          "ok",
			"version":         version,
			"calendar_source": cfg.CalendarSource,
		})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}
	if col != nil {
		e.GET("/metrics", echo.WrapHandler(col.Handler()))
	}
	return e
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Env).With().Str("service", serviceName).Logger()
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid clinic time zone")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")

	var col *metrics.Collector
	if cfg.MetricsEnabled {
		col = metrics.NewCollector(serviceName)
		col.RegisterPool(serviceName, pool)
	}

	cal, err := newCalendarBackend(cfg, pool, col, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up calendar source")
	}
	logger.Info().Str("calendar_source", cfg.CalendarSource).Str("timezone", loc.String()).Msg("calendar ready")

	e := newServer(cfg, logger, pool, col, cal, booking.NewAppointmentRepoPG(pool), loc)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
