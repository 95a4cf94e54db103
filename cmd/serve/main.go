// Package main provides a reference task lifecycle server that exposes a
// demo dice-rolling agent over JSON-RPC with SSE streaming.
//
// Configuration is via environment variables:
//
//	TASKLINE_PORT            - Server port (default: 8000)
//	TASKLINE_LOG_LEVEL       - Log level: debug, info, warn, error (default: info)
//	TASKLINE_STORE           - Task store: memory or redis (default: memory)
//	TASKLINE_REDIS_ADDR      - Redis address (default: localhost:6379)
//	TASKLINE_REDIS_DB        - Redis database number (default: 0)
//	TASKLINE_TASK_TTL        - Task retention (default: 24h)
//	TASKLINE_MODE            - Agent invocation mode: stream or generate (default: stream)
//	TASKLINE_WORKING_STATUS  - Optional status text attached to the working transition
//	TASKLINE_INCLUDE_HISTORY - Include task history in the agent prompt (default: true)
//	TASKLINE_AGENT_NAME      - Agent card name (default: dice-agent)
//	TASKLINE_AGENT_VERSION   - Agent card version (default: 0.1.0)
//	TASKLINE_AGENT_URL       - Agent card URL (optional)
//
// Usage:
//
//	go run ./cmd/serve
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/tasklinehq/taskline/adapter"
	"github.com/tasklinehq/taskline/durable"
	"github.com/tasklinehq/taskline/router"
	"github.com/tasklinehq/taskline/rpc"
	"github.com/tasklinehq/taskline/store"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	taskStore, cache, err := buildStore(cfg)
	if err != nil {
		logger.Error("store setup failed", "error", err)
		os.Exit(1)
	}

	mode := adapter.ModeStream
	if cfg.Mode == "generate" {
		mode = adapter.ModeGenerate
	}

	a := adapter.New(newDiceAgent(), taskStore, adapter.Config{
		Mode:                   mode,
		WorkingStatusText:      cfg.WorkingStatusText,
		IncludeHistoryInPrompt: cfg.IncludeHistory,
		Router:                 router.New(router.WithClassifier(router.Heuristic{})),
		DurableCache:           cache,
		Logger:                 logger,
	})

	card := rpc.AgentCard{
		Name:        cfg.AgentName,
		Description: "Rolls dice and reports the results as task artifacts.",
		URL:         cfg.AgentURL,
		Version:     cfg.AgentVersion,
		Skills: []rpc.AgentSkill{{
			ID:          "roll_dice",
			Name:        "Roll dice",
			Description: "Rolls one or more dice with a configurable number of sides.",
			Tags:        []string{"dice", "random"},
			Examples:    []string{"roll a d20", "roll three six-sided dice"},
		}},
	}
	handler := rpc.NewHandler(a, taskStore, card, rpc.WithLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("server starting",
		"port", cfg.Port,
		"store", cfg.Store,
		"mode", cfg.Mode)

	if err := rpc.Serve(ctx, ":"+cfg.Port, handler); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// buildStore wires the configured task store and, for redis, a matching
// durable step cache so generate-mode executions replay after restarts.
func buildStore(cfg *Config) (store.TaskStore, durable.Cache, error) {
	if cfg.Store == "memory" {
		return store.NewMemory(store.WithTTL(cfg.TaskTTL)), durable.NewMemoryCache(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, nil, err
	}
	taskStore := store.NewRedis(client, store.WithRedisTTL(cfg.TaskTTL))
	cache := durable.NewRedisCache(client, "taskline:step:", cfg.TaskTTL)
	return taskStore, cache, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
