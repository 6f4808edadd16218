// Package config loads process-wide configuration from the environment,
// following the env-var-with-typed-fallback convention used throughout this
// codebase.
package config

import (
	"time"

	"github.com/lattice-voice/voiceagent/internal/env"
	"github.com/lattice-voice/voiceagent/internal/prompts"
)

// Interrupt holds barge-in detector tuning.
type Interrupt struct {
	Enabled        bool
	MinEnergy      float64
	BaselineFactor float64
	MinSpeechMS    int
	DebounceMS     int
	RequireText    bool
}

// Config is the full set of process-wide settings recognized by the
// telephony voice agent.
type Config struct {
	Port string

	// Telephony control plane.
	TelephonyAccountSID string
	TelephonyAuthToken  string
	TelephonyBaseURL    string
	DefaultFromNumber   string
	PublicBaseURL       string

	// STT.
	STTAPIKey       string
	STTPrimaryModel string
	STTFallbackModel string

	// TTS.
	TTSURL     string
	TTSVoiceID string

	// LLM.
	LLMURL           string
	LLMModel         string
	LLMSystemPrompt  string
	LLMNumPredict    int
	LLMTemperature   float64
	LLMTopP          float64
	LLMTopK          int
	LLMRepeatPenalty float64

	// Retrieval.
	QdrantURL         string
	QdrantPoolSize    int
	EmbeddingURL      string
	EmbeddingModel    string
	VectorSize        int
	ChunkSize         int
	RAGTopK           int
	RAGDistanceCutoff float64

	// Turn-taking.
	SilenceThresholdSec float64
	InterimProcessing   bool
	InterimMinLength    int

	Interrupt Interrupt

	// Tooling.
	DepartmentNumbers map[string]string
	JWTSecret         string

	// Persistence.
	DatabaseURL string

	// Pools.
	HTTPPoolSize int
}

// Load reads Config from the environment, applying the same defaults this
// service has always shipped with.
func Load() Config {
	return Config{
		Port: env.Str("GATEWAY_PORT", "8000"),

		TelephonyAccountSID: env.Str("TELEPHONY_ACCOUNT_SID", ""),
		TelephonyAuthToken:  env.Str("TELEPHONY_AUTH_TOKEN", ""),
		TelephonyBaseURL:    env.Str("TELEPHONY_BASE_URL", ""),
		DefaultFromNumber:   env.Str("TELEPHONY_DEFAULT_NUMBER", ""),
		PublicBaseURL:       env.Str("PUBLIC_BASE_URL", ""),

		STTAPIKey:        env.Str("STT_API_KEY", ""),
		STTPrimaryModel:  env.Str("STT_MODEL", "nova-2"),
		STTFallbackModel: env.Str("STT_FALLBACK_MODEL", "base"),

		TTSURL:     env.Str("TTS_URL", "http://localhost:5100"),
		TTSVoiceID: env.Str("TTS_VOICE_ID", "default"),

		LLMURL:           env.Str("OLLAMA_URL", "http://localhost:11434"),
		LLMModel:         env.Str("OLLAMA_MODEL", "llama3.2:3b"),
		LLMSystemPrompt:  env.Str("LLM_SYSTEM_PROMPT", prompts.DefaultSystem),
		LLMNumPredict:    env.Int("LLM_NUM_PREDICT", 1200),
		LLMTemperature:   env.Float("LLM_TEMPERATURE", 0.2),
		LLMTopP:          env.Float("LLM_TOP_P", 0.9),
		LLMTopK:          env.Int("LLM_TOP_K", 40),
		LLMRepeatPenalty: env.Float("LLM_REPEAT_PENALTY", 1.2),

		QdrantURL:         env.Str("QDRANT_URL", "http://localhost:6333"),
		QdrantPoolSize:    env.Int("QDRANT_POOL_SIZE", 10),
		EmbeddingURL:      env.Str("OLLAMA_URL", "http://localhost:11434"),
		EmbeddingModel:    env.Str("EMBEDDING_MODEL", "nomic-embed-text"),
		VectorSize:        env.Int("VECTOR_SIZE", 768),
		ChunkSize:         env.Int("KB_CHUNK_SIZE", 384),
		RAGTopK:           env.Int("RAG_TOP_K", 3),
		RAGDistanceCutoff: env.Float("RAG_DISTANCE_CUTOFF", 1.3),

		SilenceThresholdSec: env.Float("SILENCE_THRESHOLD_SEC", 0.8),
		InterimProcessing:   env.Bool("INTERIM_PROCESSING_ENABLED", false),
		InterimMinLength:    env.Int("INTERIM_MIN_LENGTH", 5),

		Interrupt: Interrupt{
			Enabled:        env.Bool("INTERRUPT_ENABLED", true),
			MinEnergy:      env.Float("INTERRUPT_MIN_ENERGY", 550),
			BaselineFactor: env.Float("INTERRUPT_BASELINE_FACTOR", 2.0),
			MinSpeechMS:    env.Int("INTERRUPT_MIN_SPEECH_MS", 120),
			DebounceMS:     env.Int("INTERRUPT_DEBOUNCE_MS", 300),
			RequireText:    env.Bool("INTERRUPT_REQUIRE_TEXT", false),
		},

		DepartmentNumbers: departmentNumbers(),
		JWTSecret:         env.Str("JWT_SECRET", ""),

		DatabaseURL: env.Str("DATABASE_URL", ""),

		HTTPPoolSize: env.Int("HTTP_POOL_SIZE", 50),
	}
}

func departmentNumbers() map[string]string {
	return map[string]string{
		"sales":     env.Str("DEPARTMENT_NUMBER_SALES", ""),
		"support":   env.Str("DEPARTMENT_NUMBER_SUPPORT", ""),
		"technical": env.Str("DEPARTMENT_NUMBER_TECHNICAL", ""),
	}
}

// UtteranceEndMS derives the STT endpointing silence window from the
// configured silence threshold, per the adapter's configuration contract.
func (c Config) UtteranceEndMS() int {
	return int(c.SilenceThresholdSec * 1000)
}

// SilenceThreshold returns the turn-arbiter silence threshold as a duration.
func (c Config) SilenceThreshold() time.Duration {
	return time.Duration(c.SilenceThresholdSec * float64(time.Second))
}
