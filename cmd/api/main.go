package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nikhilbhutani/orpheusvoice/internal/api"
	"github.com/nikhilbhutani/orpheusvoice/internal/api/handlers"
	"github.com/nikhilbhutani/orpheusvoice/internal/cache"
	"github.com/nikhilbhutani/orpheusvoice/internal/config"
	"github.com/nikhilbhutani/orpheusvoice/internal/conversation"
	"github.com/nikhilbhutani/orpheusvoice/internal/emotion"
	"github.com/nikhilbhutani/orpheusvoice/internal/llm"
	"github.com/nikhilbhutani/orpheusvoice/internal/memory"
	"github.com/nikhilbhutani/orpheusvoice/internal/metrics"
	"github.com/nikhilbhutani/orpheusvoice/internal/multimodal/tts"
	"github.com/nikhilbhutani/orpheusvoice/internal/voice"
)

var version = "dev"

func main() {
	configFile := flag.String("config", "", "path to orpheus.yaml")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	config.SetupLogging(cfg.Logging)

	ctx := context.Background()

	shutdownMetrics, err := metrics.InitProvider(ctx, "orpheus-voice", version)
	if err != nil {
		slog.Warn("telemetry unavailable, metrics are not exported", "error", err)
		shutdownMetrics = func(context.Context) error { return nil }
	}
	inst, err := metrics.Global()
	if err != nil {
		slog.Warn("creating instruments failed, using no-op metrics", "error", err)
		inst = metrics.Noop()
	}

	catalog, err := voice.LoadFile(cfg.Voices.File)
	if err != nil {
		slog.Error("failed to load voice catalog", "error", err)
		os.Exit(1)
	}
	slog.Info("voice catalog loaded", "voices", catalog.Len(), "default", catalog.DefaultID())

	endpoint := cfg.Orpheus.Endpoint
	if endpoint == "" {
		endpoint = tts.EndpointForModel(cfg.Orpheus.ModelID)
	}
	if cfg.Orpheus.APIKey == "" {
		slog.Warn("BASETEN_API_KEY not set, primary speech requests will be rejected upstream")
	}
	primary := tts.NewOrpheus(tts.OrpheusConfig{
		APIKey:   cfg.Orpheus.APIKey,
		Endpoint: endpoint,
		Timeout:  cfg.Orpheus.Timeout,
	})

	// A nil interface, not a nil *OpenAISpeech, keeps fallback disabled.
	var secondary tts.Provider
	if cfg.OpenAI.APIKey != "" {
		secondary = tts.NewOpenAISpeech(tts.OpenAISpeechConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.SpeechModel,
			Timeout: cfg.OpenAI.SpeechTimeout,
		})
	} else {
		slog.Warn("OPENAI_API_KEY not set, speech fallback disabled")
	}

	perf := metrics.NewPerformance()
	invoker := tts.NewInvoker(primary, secondary, perf, inst)

	var synth tts.Synthesizer = invoker
	var cachePinger handlers.Pinger
	if cfg.Cache.Enabled {
		rdb, err := cache.Dial(ctx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			slog.Warn("redis unavailable, running without audio cache", "error", err)
		} else {
			defer rdb.Close()
			audioCache := cache.NewCache(rdb, cfg.Cache.Prefix)
			synth = tts.NewCachedInvoker(invoker, audioCache, cfg.Cache.TTL)
			cachePinger = audioCache
			slog.Info("audio cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Cache.TTL)
		}
	}

	gateway := llm.NewGateway(cfg.OpenAI, cfg.Chat)
	if !gateway.Available() {
		slog.Warn("chat provider not configured, conversation replies will be canned",
			"provider", cfg.Chat.Provider)
	}
	manager := conversation.NewManager(gateway, memory.NewStore(memory.DefaultMaxExchanges), emotion.NewTracker(), inst,
		conversation.Config{
			FastModel:        cfg.Chat.FastModel,
			EmotionalModel:   cfg.Chat.EmotionalModel,
			FastTimeout:      cfg.Chat.FastTimeout,
			EmotionalTimeout: cfg.Chat.EmotionalTimeout,
		})

	router := api.NewRouter(api.Deps{
		Catalog:      catalog,
		Synthesizer:  synth,
		Status:       invoker.Status(),
		Conversation: manager,
		Performance:  perf,
		Instruments:  inst,
		Cache:        cachePinger,
		Backends: handlers.Backends{
			OpenAIConfigured:  cfg.OpenAI.APIKey != "",
			OrpheusConfigured: cfg.Orpheus.APIKey != "",
		},
		RateLimit: cfg.RateLimit,
	})
	handler := router.Setup()
	defer router.Close()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting voice server",
			"addr", cfg.Addr(),
			"chat_provider", cfg.Chat.Provider,
			"fallback", invoker.SecondaryConfigured(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	if err := shutdownMetrics(shutdownCtx); err != nil {
		slog.Warn("metrics shutdown failed", "error", err)
	}
	slog.Info("server stopped")
}
