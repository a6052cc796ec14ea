package main

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/pharmalife/blister/internal/config"
	"github.com/pharmalife/blister/internal/domain/access"
	"github.com/pharmalife/blister/internal/domain/patient"
	"github.com/pharmalife/blister/internal/platform/auth"
	"github.com/pharmalife/blister/internal/platform/db"
	"github.com/pharmalife/blister/internal/platform/metrics"
	"github.com/pharmalife/blister/internal/platform/middleware"
	"github.com/pharmalife/blister/internal/platform/validate"
)

const version = "1.0.0"

type server struct {
	echo        *echo.Echo
	access      *access.Service
	patients    *patient.Service
	revocations *auth.TokenRevocationStore
}

// Close stops background work owned by the server.
func (s *server) Close() {
	s.revocations.Close()
}

func newServer(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*server, error) {
	key, err := cfg.SigningKey()
	if err != nil {
		return nil, err
	}
	if cfg.AuthSigningKey == "" {
		logger.Warn().Msg("AUTH_SIGNING_KEY not set; using a random development key")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenIssuer(key, cfg.AuthIssuer, cfg.AuthTokenTTL)
	if err != nil {
		return nil, err
	}
	revocations := auth.NewTokenRevocationStore(cfg.AuthTokenTTL, time.Minute)
	m := metrics.New()

	// Services
	accessSvc := access.NewService(access.NewUserRepo(pool), access.NewAppRepo(pool))
	accessSvc.SetRevoker(revocations)

	patientSvc := patient.NewService(patient.NewPatientRepo(pool), patient.NewHistoryRepo(pool), db.NewTransactor(pool))
	patientSvc.SetRecorder(m)
	patientSvc.SetLocation(loc)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(m.Middleware())
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Auth middleware
	e.Use(auth.JWTMiddleware(auth.JWTConfig{Tokens: tokens, Revocations: revocations}))

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", m.Handler())

	// Login is rate limited per client IP
	loginLimit := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerMinute: cfg.LoginRatePerMinute,
		Burst:             cfg.LoginRateBurst,
		IdleTTL:           10 * time.Minute,
	})
	access.NewAuthHandler(accessSvc, tokens, revocations).RegisterRoutes(e.Group("/auth"), loginLimit)

	apiV1 := e.Group("/api/v1")
	patient.NewHandler(patientSvc, accessSvc, cfg.SchedulerAppKey).RegisterRoutes(apiV1)
	access.NewHandler(accessSvc).RegisterRoutes(apiV1)

	return &server{
		echo:        e,
		access:      accessSvc,
		patients:    patientSvc,
		revocations: revocations,
	}, nil
}
