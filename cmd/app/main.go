package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"baking-ai-assistant/internal/config"
	"baking-ai-assistant/internal/domain/ports/adapter"
	"baking-ai-assistant/internal/domain/ports/repository"
	"baking-ai-assistant/internal/domain/prompt"
	"baking-ai-assistant/internal/infra/adapters/ai"
	"baking-ai-assistant/internal/infra/api"
	"baking-ai-assistant/internal/infra/db/postgres"
	"baking-ai-assistant/internal/infra/logging"
	"baking-ai-assistant/internal/infra/memory"
	"baking-ai-assistant/internal/infra/metrics"
	redisinfra "baking-ai-assistant/internal/infra/redis"
	"baking-ai-assistant/internal/infra/web"
	"baking-ai-assistant/internal/infra/worker"
	"baking-ai-assistant/internal/usecase"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dev := flag.Bool("dev", false, "development mode (console logs, no AI key required)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath, *dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := worker.NewPool(0, logger)
	pool.Start(ctx)
	defer pool.Stop()

	var (
		rc     *redisinfra.Client
		locker usecase.Locker
	)
	if cfg.Redis.URL != "" {
		rc, err = redisinfra.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connect failed")
		}
		defer rc.Close()
		locker = redisinfra.NewLocker(rc)
	}

	repo, cleanup, err := buildSessionRepo(ctx, cfg, rc, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("session store init failed")
	}
	defer cleanup()

	aiAdapter, err := buildAIAdapter(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("ai provider init failed")
	}
	aiAdapter = ai.NewLimitedAI(aiAdapter, cfg.AI.ConcurrentLimit)

	locks := usecase.NewKeyedLock()
	builder := prompt.NewBuilder(cfg.Chat.HistoryWindow)
	chatOpts := adapter.ChatOptions{MaxTokens: cfg.AI.MaxTokens, Temperature: cfg.AI.Temperature}
	chatUC := usecase.NewChatUseCase(repo, aiAdapter, builder, locks, locker, cfg.AI.DefaultModel, chatOpts, logger)
	sessionUC := usecase.NewSessionUseCase(repo, locks, logger)

	router := api.NewServer(chatUC, sessionUC, logger, cfg.Server.RequestTimeout).Router()
	mountAdmin(router, cfg, sessionUC, logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
	}
}

// buildSessionRepo picks the backing store from config: postgres when a
// database URL is set, in-memory otherwise. A connected redis adds the
// read-through cache on top.
func buildSessionRepo(ctx context.Context, cfg *config.Config, rc *redisinfra.Client, pool *worker.Pool, logger *zerolog.Logger) (repository.SessionRepository, func(), error) {
	cleanup := func() {}

	var repo repository.SessionRepository
	if cfg.Database.URL != "" {
		pgPool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, 0)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, pgPool); err != nil {
			pgPool.Close()
			return nil, nil, err
		}
		repo = postgres.NewSessionRepo(pgPool)
		cleanup = pgPool.Close
	} else {
		if !cfg.Runtime.Dev {
			logger.Warn().Msg("no database configured, sessions are in-memory only")
		}
		repo = memory.NewSessionRepo()
	}

	if rc != nil {
		cache := redisinfra.NewSessionCache(rc, cfg.Redis.TTL)
		repo = redisinfra.NewCachedSessionRepo(repo, cache, pool, logger)
	}
	return repo, cleanup, nil
}

// buildAIAdapter wires every configured provider behind the failover
// router. Dev mode without keys falls back to the noop echo adapter.
func buildAIAdapter(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (adapter.AIServiceAdapter, error) {
	providers := map[string]adapter.AIServiceAdapter{}
	var order []string

	if cfg.AI.OpenAIKey != "" {
		oa, err := ai.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, cfg.AI.DefaultModel)
		if err != nil {
			return nil, err
		}
		providers["openai"] = oa
		order = append(order, "openai")
	}
	if cfg.AI.GeminiKey != "" {
		ga, err := ai.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel)
		if err != nil {
			return nil, err
		}
		providers["gemini"] = ga
		order = append(order, "gemini")
	}

	switch {
	case len(order) == 0 && cfg.Runtime.Dev:
		logger.Warn().Msg("no ai provider configured, using noop adapter")
		return ai.NewNoopAIAdapter(), nil
	case len(order) == 0:
		return nil, errors.New("no ai provider configured")
	case len(order) == 1:
		return providers[order[0]], nil
	default:
		return ai.NewMultiAIAdapter(order[0], providers, order), nil
	}
}

func mountAdmin(router chi.Router, cfg *config.Config, sessions usecase.SessionUseCase, logger *zerolog.Logger) {
	if cfg.Admin.Secret == "" {
		return
	}
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, cfg.Admin.SessionTTL)
	web.NewServer(sessions, auth, cfg.Admin.Secret, logger).Mount(router)
}
