package rest

import (
	"net/http"

	"graphitti-backend/application/services"
	"graphitti-backend/infrastructure/config"
	"graphitti-backend/interfaces/http/rest/handlers"
	"graphitti-backend/interfaces/http/rest/middleware"
	"graphitti-backend/pkg/common"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Router creates and configures the HTTP router
type Router struct {
	cfg       *config.Config
	tracker   *services.ChangeTracker
	snapshots *services.SnapshotService
	restore   *services.RestoreService
	iteration *services.IterationService
	analytics *services.AnalyticsService
	logger    *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	cfg *config.Config,
	tracker *services.ChangeTracker,
	snapshots *services.SnapshotService,
	restore *services.RestoreService,
	iteration *services.IterationService,
	analytics *services.AnalyticsService,
	logger *zap.Logger,
) *Router {
	return &Router{
		cfg:       cfg,
		tracker:   tracker,
		snapshots: snapshots,
		restore:   restore,
		iteration: iteration,
		analytics: analytics,
		logger:    logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.healthCheck)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(middleware.AuthConfig{
			Secret:    rt.cfg.JWTSecret,
			Issuer:    rt.cfg.JWTIssuer,
			DevBypass: rt.cfg.Environment != "production",
		}, rt.logger))

		r.Route("/changes", func(r chi.Router) {
			changeHandler := handlers.NewChangeHandler(rt.tracker, rt.logger)
			r.Post("/", changeHandler.TrackChange)
			r.Get("/", changeHandler.ListChanges)
		})

		r.Route("/batches", func(r chi.Router) {
			batchHandler := handlers.NewBatchHandler(rt.tracker, rt.logger)
			r.Post("/", batchHandler.StartBatch)
			r.Get("/", batchHandler.ListBatches)
			r.Post("/{batchID}/complete", batchHandler.CompleteBatch)
			r.Post("/{batchID}/fail", batchHandler.FailBatch)
		})

		r.Route("/snapshots", func(r chi.Router) {
			snapshotHandler := handlers.NewSnapshotHandler(rt.snapshots, rt.restore, rt.logger)
			r.Post("/", snapshotHandler.CreateSnapshot)
			r.Get("/", snapshotHandler.ListSnapshots)
			r.Get("/{snapshotID}", snapshotHandler.GetSnapshot)
			r.Post("/{snapshotID}/restore", snapshotHandler.RestoreSnapshot)
		})

		r.Route("/iterations", func(r chi.Router) {
			iterationHandler := handlers.NewIterationHandler(rt.iteration, rt.logger)
			r.Post("/", iterationHandler.CreateIteration)
			r.Get("/", iterationHandler.ListIterations)
			r.Get("/compare", iterationHandler.CompareIterations)
			r.Get("/{version}", iterationHandler.GetIteration)
			r.Get("/{version}/metrics", iterationHandler.GetEvolutionMetrics)
		})

		r.Route("/analytics", func(r chi.Router) {
			analyticsHandler := handlers.NewAnalyticsHandler(rt.analytics, rt.logger)
			r.Get("/timeline", analyticsHandler.GetTimeline)
			r.Get("/health", analyticsHandler.GetHealth)
			r.Get("/statistics", analyticsHandler.GetStatistics)
		})
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
