// Command voiceagent serves the telephony media WebSocket endpoint: one
// inbound call per WebSocket connection, driven end to end by
// internal/gateway.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lattice-voice/voiceagent/internal/config"
	"github.com/lattice-voice/voiceagent/internal/env"
	"github.com/lattice-voice/voiceagent/internal/gateway"
	"github.com/lattice-voice/voiceagent/internal/llm"
	"github.com/lattice-voice/voiceagent/internal/persistence"
	"github.com/lattice-voice/voiceagent/internal/retrieval"
	"github.com/lattice-voice/voiceagent/internal/session"
	"github.com/lattice-voice/voiceagent/internal/stt"
	"github.com/lattice-voice/voiceagent/internal/telephony"
	"github.com/lattice-voice/voiceagent/internal/tools"
	"github.com/lattice-voice/voiceagent/internal/tts"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg := config.Load()

	manager := session.NewManager()

	sttCfg := stt.Config{
		APIKey:         cfg.STTAPIKey,
		PrimaryModel:   cfg.STTPrimaryModel,
		FallbackModel:  cfg.STTFallbackModel,
		Language:       "en-US",
		UtteranceEndMS: cfg.UtteranceEndMS(),
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	ttsClient := tts.NewClient(cfg.TTSURL, httpClient)
	ollamaStreamer := llm.NewOllamaStreamer(cfg.LLMURL, cfg.LLMModel, httpClient)
	llmRouter := llm.NewRouter(map[string]llm.Streamer{"ollama": ollamaStreamer}, "ollama")

	embedder := retrieval.NewEmbeddingClient(cfg.EmbeddingURL, cfg.EmbeddingModel, httpClient)
	qdrant := retrieval.NewQdrantClient(cfg.QdrantURL, httpClient)
	retriever := retrieval.New(retrieval.Config{
		Embedder:       embedder,
		Qdrant:         qdrant,
		TopK:           cfg.RAGTopK,
		DistanceCutoff: cfg.RAGDistanceCutoff,
	})

	telephonyClient := telephony.NewClient(cfg.TelephonyAccountSID, cfg.TelephonyAuthToken, cfg.TelephonyBaseURL)
	executor := tools.NewExecutor(manager, telephonyClient, cfg.DepartmentNumbers, webhookSubscribers())

	var store *persistence.Store
	if cfg.DatabaseURL != "" {
		var err error
		store, err = persistence.Open(cfg.DatabaseURL)
		if err != nil {
			slog.Error("persistence store open failed, continuing without transcript persistence", "error", err)
			store = nil
		}
	}

	agents := agentLookup(cfg)

	runtime := gateway.NewRuntime(cfg, manager, sttCfg, ttsClient, llmRouter, retriever, executor, store, agents)
	handler := gateway.NewHandler(runtime)

	mux := http.NewServeMux()
	registerRoutes(mux, handler)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux}

	go awaitShutdown(srv, store)

	slog.Info("voiceagent starting", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("voiceagent stopped")
}

// agentLookup resolves the single environment-configured agent. A
// multi-tenant deployment would replace this with a database-backed
// lookup keyed by agent_id; the shape of AgentLookup already supports that
// without touching the gateway.
func agentLookup(cfg config.Config) gateway.AgentLookup {
	defaultAgent := session.AgentConfig{
		AgentID:             env.Str("AGENT_ID", "default"),
		SystemPrompt:        cfg.LLMSystemPrompt,
		Greeting:            env.Str("AGENT_GREETING", "Hello! How can I help you today?"),
		VoiceID:             cfg.TTSVoiceID,
		Model:               cfg.LLMModel,
		SilenceThresholdSec: cfg.SilenceThresholdSec,
		InterruptEnabled:    cfg.Interrupt.Enabled,
	}
	return func(agentID string) session.AgentConfig {
		return defaultAgent
	}
}

func webhookSubscribers() []tools.WebhookConfig {
	url := env.Str("TOOL_CALLED_WEBHOOK_URL", "")
	if url == "" {
		return nil
	}
	return []tools.WebhookConfig{{Name: "default", URL: url}}
}

func awaitShutdown(srv *http.Server, store *persistence.Store) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	srv.Shutdown(ctx)
	if store != nil {
		store.Close()
	}
}
