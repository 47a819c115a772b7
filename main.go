package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	assistantx "github.com/loomlabs/loom-assistant/agent/assistant"
	contractx "github.com/loomlabs/loom-assistant/agent/contract"
	intentx "github.com/loomlabs/loom-assistant/agent/intent"
	memoryx "github.com/loomlabs/loom-assistant/agent/memory"
	"github.com/loomlabs/loom-assistant/agent/orchestrator"
	respondx "github.com/loomlabs/loom-assistant/agent/respond"
	statex "github.com/loomlabs/loom-assistant/agent/state"
	toolx "github.com/loomlabs/loom-assistant/agent/tool"
	configx "github.com/loomlabs/loom-assistant/pkg/config"
	llmx "github.com/loomlabs/loom-assistant/pkg/llm"
	_ "github.com/loomlabs/loom-assistant/pkg/logger/autoload"
	ollamax "github.com/loomlabs/loom-assistant/pkg/ollama"
	tavilyx "github.com/loomlabs/loom-assistant/pkg/tavily"
	"github.com/loomlabs/loom-assistant/server"
)

type AppConfig struct {
	Addr              string        `envconfig:"ADDR" default:":8000"`
	GoogleCredentials string        `envconfig:"GOOGLE_CREDENTIALS" split_words:"true"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" split_words:"true" default:"5s"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("LOOM")

	ollamaCfg := configx.MustNew[ollamax.Config]("OLLAMA")
	ollamaClient, err := ollamax.NewClient(*ollamaCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("ollama client init failed")
	}

	// Each integration below is optional: missing configuration disables
	// the tool and the health endpoint reports it as down.
	tavilyClient := buildTavily()
	calendarSvc, gmailSvc := buildGoogle(ctx, appCfg.GoogleCredentials)
	memStore, memPing := buildMemory(ctx, ollamaClient)
	windows := buildWindows()

	registry := toolx.NewRegistry(
		toolx.NewWebSearchTool(tavilyClient),
		toolx.NewCalendarTool(calendarSvc),
		toolx.NewEmailTool(gmailSvc),
		toolx.NewImageTool(ollamaClient),
		toolx.NewMemoryTool(memStore),
		toolx.NewPreferenceTool(),
	)

	llmCfg := configx.MustNew[llmx.Config]("LLM")
	var runner contractx.AgentRunner
	if chatModel, err := llmCfg.New(ctx); err != nil {
		log.Warn().Err(err).Msg("chat model init failed, running on direct dispatch only")
	} else if r, err := assistantx.New(ctx, chatModel, registry); err != nil {
		log.Warn().Err(err).Msg("agent loop init failed, running on direct dispatch only")
	} else {
		runner = r
	}
	responder := respondx.NewLLMResponder(llmx.NewClient(*llmCfg), llmCfg.Model)

	orch, err := orchestrator.New(intentx.New(), registry, orchestrator.Options{
		Runner:    runner,
		Memory:    memStore,
		Responder: responder,
		Windows:   windows,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("orchestrator init failed")
	}

	handler := server.NewHandler(server.Deps{
		Chat:   orch,
		Memory: memStore,
		Targets: healthTargets(
			ollamaClient,
			memPing,
			tavilyClient != nil,
			calendarSvc != nil,
			gmailSvc != nil,
		),
	})

	srv := &http.Server{
		Addr:              appCfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", appCfg.Addr).Msg("assistant listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown incomplete")
	}
}

func buildTavily() *tavilyx.Client {
	cfg := configx.MustNew[tavilyx.Config]("TAVILY")
	if cfg.APIKey == "" {
		log.Info().Msg("TAVILY_API_KEY not set, web search disabled")
		return nil
	}
	return tavilyx.MustNew(*cfg)
}

func buildGoogle(ctx context.Context, credentialsPath string) (*calendar.Service, *gmail.Service) {
	if credentialsPath == "" {
		log.Info().Msg("LOOM_GOOGLE_CREDENTIALS not set, calendar and email disabled")
		return nil, nil
	}

	calendarSvc, err := calendar.NewService(ctx,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(calendar.CalendarReadonlyScope),
	)
	if err != nil {
		log.Warn().Err(err).Msg("calendar service init failed, calendar disabled")
	}

	gmailSvc, err := gmail.NewService(ctx,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(gmail.GmailReadonlyScope),
	)
	if err != nil {
		log.Warn().Err(err).Msg("gmail service init failed, email disabled")
	}

	return calendarSvc, gmailSvc
}

func buildMemory(ctx context.Context, embedder memoryx.Embedder) (contractx.MemoryStore, func(context.Context) error) {
	cfg := configx.MustNew[memoryx.Config]("MEMORY")
	if cfg.DSN == "" {
		log.Info().Msg("MEMORY_DSN not set, vector memory disabled")
		return nil, nil
	}

	store, err := memoryx.NewStore(ctx, *cfg, embedder)
	if err != nil {
		log.Warn().Err(err).Msg("memory store init failed, vector memory disabled")
		return nil, nil
	}
	return store, store.Ping
}

func buildWindows() statex.Store {
	cfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
	if cfg.URL == "" || cfg.Token == "" {
		log.Info().Msg("UPSTASH_REDIS_URL not set, conversation windows kept in memory")
		return statex.NewInMemoryStore()
	}

	store, err := statex.NewUpstashRedisStore(*cfg)
	if err != nil {
		log.Warn().Err(err).Msg("redis window store init failed, falling back to in-memory windows")
		return statex.NewInMemoryStore()
	}
	return store
}

func healthTargets(
	ollamaClient *ollamax.Client,
	memPing func(context.Context) error,
	tavilyUp, calendarUp, gmailUp bool,
) []server.HealthTarget {
	configured := func(ctx context.Context) error { return nil }

	targets := []server.HealthTarget{
		{Name: "ollama", Check: func(ctx context.Context) error {
			if !ollamaClient.IsRunning(ctx) {
				return errors.New("ollama daemon is not reachable")
			}
			return nil
		}},
		{Name: "memory", Check: memPing},
		{Name: "web_search"},
		{Name: "calendar"},
		{Name: "email"},
	}
	if tavilyUp {
		targets[2].Check = configured
	}
	if calendarUp {
		targets[3].Check = configured
	}
	if gmailUp {
		targets[4].Check = configured
	}
	return targets
}
