package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/geraldfingburke/editorial-core/internal/agents/monitor"
	"github.com/geraldfingburke/editorial-core/internal/agents/router"
	"github.com/geraldfingburke/editorial-core/internal/agents/scout"
	"github.com/geraldfingburke/editorial-core/internal/agents/scribe"
	"github.com/geraldfingburke/editorial-core/internal/agents/trend"
	"github.com/geraldfingburke/editorial-core/internal/articles"
	"github.com/geraldfingburke/editorial-core/internal/auth"
	"github.com/geraldfingburke/editorial-core/internal/cache"
	"github.com/geraldfingburke/editorial-core/internal/config"
	"github.com/geraldfingburke/editorial-core/internal/database"
	"github.com/geraldfingburke/editorial-core/internal/editorial"
	"github.com/geraldfingburke/editorial-core/internal/events"
	"github.com/geraldfingburke/editorial-core/internal/graphqlapi"
	"github.com/geraldfingburke/editorial-core/internal/httpapi"
	"github.com/geraldfingburke/editorial-core/internal/llm"
	"github.com/geraldfingburke/editorial-core/internal/logging"
	"github.com/geraldfingburke/editorial-core/internal/notify"
	"github.com/geraldfingburke/editorial-core/internal/orchestrator"
	"github.com/geraldfingburke/editorial-core/internal/queue"
	"github.com/geraldfingburke/editorial-core/internal/worker"
)

func main() {
	log := logging.New(envOr("LOG_LEVEL", "info"), envOr("LOG_PRETTY", "") == "true")

	cfg, err := config.Load(os.Getenv("EDITORIAL_CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.NewDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Str("url", cfg.RedisURL).Msg("invalid redis url, falling back to localhost default")
		redisOpts = &redis.Options{Addr: "localhost:6379"}
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	cacheService := cache.New(cfg, logging.Component(log, "cache"))
	defer cacheService.Close()
	llmClient := llm.New(cfg, logging.Component(log, "llm"))
	notifier := notify.New(cfg, logging.Component(log, "notify"))
	q := queue.New(db, rdb, cfg, logging.Component(log, "queue"))
	eventBus := events.NewBus()
	editorialService := editorial.New(db, logging.Component(log, "editorial"))
	articlesRepo := articles.New(db, cfg)
	verifier := auth.New(cfg.JWTSecret)

	agents := worker.Agents{
		Scout:     scout.New(db, cacheService, cfg, logging.Component(log, "scout")),
		Router:    router.New(db, cacheService, llmClient, notifier, cfg, logging.Component(log, "router")),
		Scribe:    scribe.New(db, llmClient, logging.Component(log, "scribe")),
		Trend:     trend.New(cacheService, llmClient, notifier, cfg, logging.Component(log, "trend")),
		Monitor:   monitor.New(cacheService, llmClient, notifier, cfg, logging.Component(log, "monitor")),
		Editorial: editorialService,
	}
	pool := worker.New(q, cfg, eventBus, agents, logging.Component(log, "worker"))

	orch := orchestrator.New(orchestrator.CoreContext{
		DB: db, Cache: cacheService, Queue: q, LLMClient: llmClient,
		Notifier: notifier, Config: cfg, Log: logging.Component(log, "orchestrator"),
	})

	api := &httpapi.API{
		Articles: articlesRepo, Queue: q, Orchestrator: orch, Editorial: editorialService,
		Events: eventBus, Log: logging.Component(log, "httpapi"),
	}

	gqlHandler, err := graphqlapi.Handler(graphqlapi.Deps{
		Articles: articlesRepo, Queue: q, Orchestrator: orch, Editorial: editorialService,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build graphql handler")
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(verifier.Middleware)

	api.Routes(r)
	r.Handle("/graphql", gqlHandler)

	port := envOr("PORT", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // SSE streams and LLM-backed requests outlive the usual window
		IdleTimeout:  60 * time.Second,
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	orch.Start(runCtx)
	pool.Start(runCtx)

	go func() {
		log.Info().Str("port", port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")

	cancelRun()
	orch.Stop()
	pool.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
