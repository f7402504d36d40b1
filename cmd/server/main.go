package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/gameoftrades/engine/internal/auth"
	"github.com/gameoftrades/engine/internal/config"
	"github.com/gameoftrades/engine/internal/market"
	"github.com/gameoftrades/engine/internal/metrics"
	"github.com/gameoftrades/engine/internal/news"
	"github.com/gameoftrades/engine/internal/round"
	"github.com/gameoftrades/engine/internal/store"
	"github.com/gameoftrades/engine/internal/trade"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if err := pg.InitSchema(context.Background()); err != nil {
			slog.Error("schema init failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cfg.CacheTTL)
			slog.Info("Redis cache enabled", "ttl", cfg.CacheTTL.String())
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- WebSocket hub ---
	wsHub := trade.NewWSHub()
	go wsHub.Run()

	// --- Price simulator ---
	sim := market.NewSimulator(st, wsHub, logger, cfg.TickMin, cfg.TickMax)
	if err := sim.Seed(context.Background()); err != nil {
		slog.Error("stock seeding failed", "err", err)
		os.Exit(1)
	}

	simCtx, stopSim := context.WithCancel(context.Background())
	defer stopSim()
	go func() {
		if err := sim.Run(simCtx); err != nil {
			slog.Error("price simulator stopped", "err", err)
		}
	}()

	// --- Round clock, news, auth, trade service ---
	clock := round.NewClock(cfg.RoundDuration)
	metrics.SetRoundPhase(string(round.PhaseNotStarted))

	gateway := news.NewGateway(cfg.NewsAPIKey, cfg.NewsTimeout, logger)
	authSvc := auth.NewService(cfg.OperatorKey, cfg.JWTSecret)
	tradeSvc := trade.NewService(st, clock, gateway, sim, wsHub, cfg.StartingCash)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for dashboard cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"game-of-trades"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for live price/trade updates.
		r.Get("/ws", wsHub.HandleWS)

		// Game surface polled by dashboards.
		r.Post("/teams", tradeSvc.RegisterTeam)
		r.Get("/stocks", tradeSvc.ListStocks)
		r.Get("/portfolio/{teamID}", tradeSvc.GetPortfolio)
		r.Post("/trade", tradeSvc.ExecuteTrade)
		r.Get("/leaderboard", tradeSvc.Leaderboard)
		r.Get("/round", tradeSvc.RoundStatus)
		r.Get("/trades/{teamID}", tradeSvc.TradeHistory)
		r.Get("/news", tradeSvc.News)

		// Operator control surface.
		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", authSvc.HandleLogin)
			r.Group(func(r chi.Router) {
				r.Use(authSvc.Middleware)
				r.Post("/round/{action}", tradeSvc.RoundControl)
				r.Post("/reset", tradeSvc.FullReset)
			})
		})
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("game-of-trades engine listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopSim()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("game-of-trades engine stopped")
}
