// Package app wires repositories, services and handlers into an HTTP router.
// Both the API binary and the router tests build the application through it.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/caregiver-api/internal/config"
	"github.com/jwalitptl/caregiver-api/internal/handler"
	authhandler "github.com/jwalitptl/caregiver-api/internal/handler/auth"
	dashboardhandler "github.com/jwalitptl/caregiver-api/internal/handler/dashboard"
	medicationhandler "github.com/jwalitptl/caregiver-api/internal/handler/medication"
	memoryhandler "github.com/jwalitptl/caregiver-api/internal/handler/memory"
	patienthandler "github.com/jwalitptl/caregiver-api/internal/handler/patient"
	publichandler "github.com/jwalitptl/caregiver-api/internal/handler/public"
	routinehandler "github.com/jwalitptl/caregiver-api/internal/handler/routine"
	"github.com/jwalitptl/caregiver-api/internal/middleware"
	"github.com/jwalitptl/caregiver-api/internal/repository"
	"github.com/jwalitptl/caregiver-api/internal/router"
	"github.com/jwalitptl/caregiver-api/internal/schedule"
	"github.com/jwalitptl/caregiver-api/internal/service/access"
	authsvc "github.com/jwalitptl/caregiver-api/internal/service/auth"
	"github.com/jwalitptl/caregiver-api/internal/service/dashboard"
	"github.com/jwalitptl/caregiver-api/internal/service/event"
	"github.com/jwalitptl/caregiver-api/internal/service/medication"
	"github.com/jwalitptl/caregiver-api/internal/service/memory"
	"github.com/jwalitptl/caregiver-api/internal/service/patient"
	"github.com/jwalitptl/caregiver-api/internal/service/routine"
	"github.com/jwalitptl/caregiver-api/internal/storage"
	"github.com/jwalitptl/caregiver-api/pkg/auth"
	"github.com/jwalitptl/caregiver-api/pkg/metrics"
	"github.com/jwalitptl/caregiver-api/pkg/security"
)

// Deps are the pieces that differ between production and tests.
type Deps struct {
	Repos    *repository.Repositories
	Media    storage.Store
	Clock    *schedule.Clock
	Metrics  *metrics.Metrics
	DB       handler.Pinger
	Gatherer prometheus.Gatherer
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// NewRouter builds the API router from configuration and dependencies.
func NewRouter(cfg *config.Config, deps Deps) *router.Router {
	repos := deps.Repos
	guard := access.NewGuard(repos.Patients, repos.Medications, repos.Routines, repos.Memories)
	events := event.NewEventService(repos.Outbox)

	cost := deps.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	authService := authsvc.NewService(
		repos.Caregivers,
		auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.RefreshSecret, cfg.JWT.AccessTTL(), cfg.JWT.RefreshTTL()),
		security.NewBcryptHasher(cost),
	)
	dashboardService := dashboard.NewService(dashboard.Repositories{
		Patients:       repos.Patients,
		Medications:    repos.Medications,
		MedicationLogs: repos.MedicationLogs,
		Routines:       repos.Routines,
		Memories:       repos.Memories,
	}, guard, deps.Clock)

	handlers := router.Handlers{
		Health: handler.NewHandler(deps.DB, deps.Gatherer),
		Auth:   authhandler.NewHandler(authService),
		Public: publichandler.NewHandler(dashboardService),
		Patient: patienthandler.NewHandler(
			patient.NewService(repos.Patients, repos.Memories, guard, deps.Media, events),
			dashboardService,
		),
		Medication: medicationhandler.NewHandler(
			medication.NewService(repos.Medications, repos.MedicationLogs, repos.Patients, guard, deps.Clock, events, deps.Metrics),
		),
		Routine: routinehandler.NewHandler(routine.NewService(repos.Routines, guard, events, deps.Metrics)),
		Memory: memoryhandler.NewHandler(
			memory.NewService(repos.Memories, guard, deps.Media, events, deps.Metrics, cfg.Media.MaxUploadBytes),
		),
		Dashboard: dashboardhandler.NewHandler(dashboardService),
	}

	routerConfig := router.RouterConfig{
		Mode:           cfg.Server.Mode,
		RequestTimeout: cfg.Server.WriteTimeout,
		CORSConfig:     corsConfig(cfg.CORS),
		SizeLimit: middleware.SizeLimitConfig{
			MaxBodySize:   middleware.DefaultSizeLimitConfig().MaxBodySize,
			MaxUploadSize: 2*cfg.Media.MaxUploadBytes + 1<<20,
		},
		Metrics: deps.Metrics,
	}
	if cfg.RateLimit.Enabled {
		routerConfig.RateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
		routerConfig.RateBurst = cfg.RateLimit.Burst
	}

	r := router.NewRouter(middleware.NewAuthMiddleware(authService), handlers, routerConfig)
	r.Setup()
	return r
}

// NewMediaStore opens the configured media backend.
func NewMediaStore(ctx context.Context, cfg config.MediaConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "s3":
		return storage.NewS3Store(ctx, cfg.S3.ToStorageConfig())
	case "local":
		return storage.NewLocalStore(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("unknown media driver %q", cfg.Driver)
	}
}

func corsConfig(c config.CORSConfig) middleware.CORSConfig {
	out := middleware.DefaultCORSConfig()
	if len(c.AllowedOrigins) > 0 {
		out.AllowOrigins = c.AllowedOrigins
	}
	if len(c.AllowedMethods) > 0 {
		out.AllowMethods = c.AllowedMethods
	}
	if len(c.AllowedHeaders) > 0 {
		out.AllowHeaders = c.AllowedHeaders
	}
	return out
}
