package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veritasnet/veritas/internal/api/handlers"
	mw "github.com/veritasnet/veritas/internal/api/middleware"
	"github.com/veritasnet/veritas/internal/buildconfig"
	"github.com/veritasnet/veritas/internal/config"
	"github.com/veritasnet/veritas/internal/domain"
	"github.com/veritasnet/veritas/internal/embedding"
	"github.com/veritasnet/veritas/internal/routing"
	"github.com/veritasnet/veritas/internal/service"
	"github.com/veritasnet/veritas/internal/signals"
	"github.com/veritasnet/veritas/internal/store"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router *chi.Mux
	Closer *service.CloserService

	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	userStore := store.NewUserStore(db)
	claimStore := store.NewClaimStore(db)
	signalStore := store.NewSignalResultStore(db)
	votingStore := store.NewVotingStore(db)
	ledgerStore := store.NewLedgerStore(db)
	eventStore := store.NewChainEventStore(db)
	notifStore := store.NewNotificationStore(db)

	// External clients via provider factories
	signalProvider := config.SignalProvider()
	sources, err := signals.NewSources(signalProvider, config.OpenAIAPIKey(), config.SignalModel())
	if err != nil {
		logger.Warn("signal provider initialization failed, using heuristics",
			zap.String("provider", signalProvider), zap.Error(err))
		sources, _ = signals.NewSources(signals.ProviderHeuristic, "", "")
	} else {
		logger.Info("signal provider initialized", zap.String("provider", signalProvider))
	}

	embeddingProvider := config.EmbeddingProvider()
	embeddingClient, err := embedding.NewClient(embeddingProvider, config.OpenAIAPIKey())
	if err != nil {
		logger.Warn("embedding client initialization failed", zap.String("provider", embeddingProvider), zap.Error(err))
	} else {
		logger.Info("embedding client initialized", zap.String("provider", embeddingProvider))
	}

	// Services
	ledgerSvc := service.NewLedgerService(ledgerStore, claimStore, logger)
	votingSvc := service.NewVotingService(votingStore, claimStore, ledgerSvc, eventStore, logger)
	reputationSvc := service.NewReputationService(userStore, logger)
	ledgerSvc.SetReputationSink(reputationSvc)

	decider := routing.NewDecider(routing.Config{
		AutoResolveConfidence: config.AutoResolveConfidence(),
		VotingWindowSecs:      config.VotingWindowSecs(),
		MinVotesRequired:      config.MinVotesRequired(),
	}, logger)

	aggregator := service.NewAggregator(nil)
	lifecycleSvc := service.NewLifecycleService(
		claimStore, signalStore, aggregator, sources, decider,
		ledgerSvc, votingSvc, eventStore, logger,
	)
	lifecycleSvc.SetNotificationStore(notifStore)
	lifecycleSvc.SetPublisher(service.NewLogPublisher(logger))
	if embeddingClient != nil {
		lifecycleSvc.SetEmbeddingClient(embeddingClient)
	}

	querySvc := service.NewClaimQueryService(claimStore, signalStore, eventStore, logger)
	if embeddingClient != nil {
		querySvc.SetEmbeddingClient(embeddingClient)
	}

	closerSvc := service.NewCloserService(votingStore, lifecycleSvc, logger)
	closerSvc.SetInterval(config.CloserInterval())

	// Handlers
	userHandler := handlers.NewUserHandler(userStore)
	claimHandler := handlers.NewClaimHandler(lifecycleSvc, querySvc, logger)
	sessionHandler := handlers.NewSessionHandler(votingSvc, lifecycleSvc)
	ledgerHandler := handlers.NewLedgerHandler(ledgerSvc)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Closer:    closerSvc,
		startTime: time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health (no auth)
	r.Get("/health", healthHandler(db))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	// User registration (no auth — bootstrap endpoint)
	r.Post("/v1/users", userHandler.Register)

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(userStore))

		r.Get("/users/{id}", userHandler.GetByID)

		// Claims
		r.Route("/claims", func(r chi.Router) {
			r.Post("/", claimHandler.Submit)
			r.Get("/search", claimHandler.Search)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", claimHandler.GetByID)
				r.Get("/signals", claimHandler.GetSignals)
				r.Get("/events", claimHandler.GetEvents)
				r.Get("/similar", claimHandler.Similar)
				r.Get("/session", sessionHandler.GetByClaim)
			})
		})

		// Voting sessions
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", sessionHandler.GetByID)
			r.Post("/votes", sessionHandler.CastVote)
			r.Post("/finalize", sessionHandler.Finalize)
		})

		// Ledger
		r.Route("/ledger", func(r chi.Router) {
			r.Get("/account", ledgerHandler.GetAccount)
			r.Post("/deposit", ledgerHandler.Deposit)
			r.Post("/withdraw", ledgerHandler.Withdraw)
		})

		// Markets
		r.Route("/markets/{claimID}", func(r chi.Router) {
			r.Get("/", ledgerHandler.GetMarket)
			r.Post("/claim", ledgerHandler.ClaimReward)
		})
	})

	return app
}

// NewRouter returns just the chi.Mux for callers that manage background
// services themselves.
func NewRouter(db *pgxpool.Pool, logger *zap.Logger) *chi.Mux {
	return NewApp(db, logger).Router
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
			"build":      buildconfig.VersionInfo(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.UserStore         = (*store.UserStore)(nil)
	_ domain.ClaimStore        = (*store.ClaimStore)(nil)
	_ domain.SignalResultStore = (*store.SignalResultStore)(nil)
	_ domain.VotingStore       = (*store.VotingStore)(nil)
	_ domain.LedgerStore       = (*store.LedgerStore)(nil)
	_ domain.ChainEventStore   = (*store.ChainEventStore)(nil)
	_ domain.NotificationStore = (*store.NotificationStore)(nil)
	_ domain.EmbeddingClient   = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient   = (*embedding.MockClient)(nil)
	_ domain.SignalSource      = (*signals.LLMAnalyzer)(nil)
	_ domain.SignalSource      = (*signals.MockAnalyzer)(nil)
	_ domain.RoutingDecider    = (*routing.Decider)(nil)
)
