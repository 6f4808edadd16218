// Package gateway wires the Media Session, STT/TTS/LLM adapters, the
// barge-in detector, the turn arbiter, retrieval, and the tool executor
// together behind the media WebSocket endpoint.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lattice-voice/voiceagent/internal/audio"
	"github.com/lattice-voice/voiceagent/internal/bargein"
	"github.com/lattice-voice/voiceagent/internal/config"
	"github.com/lattice-voice/voiceagent/internal/llm"
	"github.com/lattice-voice/voiceagent/internal/metrics"
	"github.com/lattice-voice/voiceagent/internal/persistence"
	"github.com/lattice-voice/voiceagent/internal/retrieval"
	"github.com/lattice-voice/voiceagent/internal/session"
	"github.com/lattice-voice/voiceagent/internal/stt"
	"github.com/lattice-voice/voiceagent/internal/telephony"
	"github.com/lattice-voice/voiceagent/internal/tools"
	"github.com/lattice-voice/voiceagent/internal/tts"
	"github.com/lattice-voice/voiceagent/internal/turn"
)

const heartbeatInterval = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// AgentLookup resolves an agent's configuration by id. The default agent
// is used when agentID is empty or unknown.
type AgentLookup func(agentID string) session.AgentConfig

// Runtime holds the process-wide collaborators shared by every call: the
// session arena, backend clients, and the process-wide defaults. Per the
// "PipelineRuntime" design note, this is constructed once at process init
// and passed into every call's session explicitly, rather than relying on
// module-level globals.
type Runtime struct {
	Config    config.Config
	Manager   *session.Manager
	STTConfig stt.Config
	TTSClient *tts.Client
	LLM       *llm.Router
	Retriever *retrieval.Retriever
	Tools     *tools.Executor
	Store     *persistence.Store
	Agents    AgentLookup

	bargein *bargein.Detector
	arbiter *turn.Arbiter
}

// NewRuntime assembles a Runtime from its collaborators, ready to serve
// calls.
func NewRuntime(cfg config.Config, manager *session.Manager, sttCfg stt.Config, ttsClient *tts.Client, llmRouter *llm.Router, retriever *retrieval.Retriever, executor *tools.Executor, store *persistence.Store, agents AgentLookup) *Runtime {
	if agents == nil {
		agents = func(string) session.AgentConfig { return session.AgentConfig{} }
	}
	return &Runtime{
		Config:    cfg,
		Manager:   manager,
		STTConfig: sttCfg,
		TTSClient: ttsClient,
		LLM:       llmRouter,
		Retriever: retriever,
		Tools:     executor,
		Store:     store,
		Agents:    agents,
		bargein: bargein.New(bargein.Config{
			BaselineFactor: cfg.Interrupt.BaselineFactor,
			MinEnergy:      cfg.Interrupt.MinEnergy,
			MinSpeechMS:    cfg.Interrupt.MinSpeechMS,
			DebounceMS:     cfg.Interrupt.DebounceMS,
		}),
		arbiter: turn.New(turn.DefaultConfig(cfg.SilenceThresholdSec, cfg.InterimProcessing, cfg.InterimMinLength)),
	}
}

// Handler upgrades and serves the media WebSocket endpoint.
type Handler struct {
	rt *Runtime
}

// NewHandler creates a media WebSocket handler over rt.
func NewHandler(rt *Runtime) *Handler {
	return &Handler{rt: rt}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("gateway: websocket upgrade failed", "error", err)
		return
	}
	h.runCall(conn)
}

func (h *Handler) runCall(conn *websocket.Conn) {
	defer conn.Close()

	start, err := awaitStartEvent(conn)
	if err != nil {
		slog.Error("gateway: read start event", "error", err)
		return
	}

	agentID := start.CustomParameters["agent_id"]
	cfg := h.rt.Agents(agentID)

	sess, err := h.rt.Manager.Create(start.CallSid, conn, cfg, start.CustomParameters)
	if err != nil {
		slog.Error("gateway: create session", "error", err)
		return
	}
	sess.SetStreamID(start.StreamSid)

	ctx, cancel := context.WithCancel(context.Background())
	sess.Cancel = cancel
	defer h.rt.Manager.Destroy(start.CallSid)

	var writeMu sync.Mutex
	send := func(frame []byte) error {
		if sess.InterruptRequested.Load() || sess.StreamID() != start.StreamSid {
			return fmt.Errorf("gateway: frame refused, stream drifted or interrupted")
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		payload := base64.StdEncoding.EncodeToString(frame)
		return conn.WriteJSON(newMediaEvent(start.StreamSid, payload))
	}
	sendClear := func() error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(newClearEvent(start.StreamSid))
	}

	if h.rt.Store != nil {
		_ = h.rt.Store.StartConversation(ctx, start.CallSid, agentID, start.CustomParameters)
	}

	sink := tts.NewSink(h.rt.TTSClient, h.rt.Config.TTSVoiceID)
	var sinkWG sync.WaitGroup
	sinkWG.Add(1)
	go func() {
		defer sinkWG.Done()
		h.rt.runSinkLoop(ctx, sess, sink, send)
	}()

	sttHandler := stt.NewSessionHandler(sess)
	sttStream, err := stt.NewStream(ctx, h.rt.STTConfig, sttHandler)
	if err != nil {
		slog.Warn("gateway: stt connect failed, continuing without transcription", "call_id", start.CallSid, "error", err)
	}

	go h.runHeartbeat(ctx, writeJSONHeartbeat(conn, &writeMu, start.StreamSid))

	if cfg.Greeting != "" {
		greeting := llm.ApplyGreetingVariables(cfg.Greeting, sess.DynamicVariables)
		h.enqueueSentences(sess, greeting)
	}

	endedReason := "disconnect"
	if err := h.readLoop(ctx, conn, sess, sttStream, sendClear); err != nil {
		slog.Info("gateway: call read loop ended", "call_id", start.CallSid, "reason", err)
	} else {
		endedReason = "normal"
	}
	// An explicit reason set by a tool or turn path (e.g. the GOODBYE turn's
	// end_call) takes precedence over how the read loop happened to return,
	// since Destroy tearing down the connection surfaces as a read error.
	if explicit := sess.EndedReason(); explicit != "" {
		endedReason = explicit
	}

	if sttStream != nil {
		sttStream.Close()
	}
	cancel()
	sinkWG.Wait()

	if h.rt.Store != nil {
		_ = h.rt.Store.EndConversation(context.Background(), start.CallSid, endedReason)
	}
}

func (rt *Runtime) runSinkLoop(ctx context.Context, sess *session.Session, sink *tts.Sink, send tts.SendFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		sink.Run(ctx, sess, send)
		if ctx.Err() != nil {
			return
		}
		// Sink returned because the queue drained; wait for more work or exit.
		select {
		case <-ctx.Done():
			return
		case sentence, ok := <-sess.TTSQueue:
			if !ok {
				return
			}
			sess.TTSQueue <- sentence
		}
	}
}

func (h *Handler) runHeartbeat(ctx context.Context, send func() error) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := send(); err != nil {
				return
			}
		}
	}
}

func writeJSONHeartbeat(conn *websocket.Conn, mu *sync.Mutex, streamSid string) func() error {
	return func() error {
		mu.Lock()
		defer mu.Unlock()
		return conn.WriteJSON(newHeartbeatEvent(streamSid))
	}
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, sess *session.Session, sttStream *stt.Stream, sendClear func() error) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg ingressMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("gateway: unparseable frame dropped", "call_id", sess.CallID)
			continue
		}

		switch msg.Event {
		case "media":
			if msg.Media == nil {
				continue
			}
			if err := h.handleMediaFrame(ctx, sess, sttStream, msg.Media.Payload, sendClear); err != nil {
				slog.Warn("gateway: media frame error", "call_id", sess.CallID, "error", err)
			}
		case "stop":
			return nil
		case "mark":
			// No gateway-side action required for mark acknowledgements.
		default:
			slog.Warn("gateway: unknown event dropped", "event", msg.Event, "call_id", sess.CallID)
		}
	}
}

func (h *Handler) handleMediaFrame(ctx context.Context, sess *session.Session, sttStream *stt.Stream, payloadB64 string, sendClear func() error) error {
	frame, err := base64.StdEncoding.DecodeString(payloadB64)
	if err != nil {
		return fmt.Errorf("decode media payload: %w", err)
	}

	pcm := audio.UlawToPCM16(frame)
	energy := float64(audio.RMS(pcm))

	metrics.AudioChunks.Inc()
	h.rt.bargein.Evaluate(sess, energy, time.Now(), sendClear)

	if sttStream != nil {
		if err := sttStream.SendAudio(frame); err != nil {
			slog.Warn("gateway: stt send failed, discarding further audio", "call_id", sess.CallID, "error", err)
		}
	}

	if h.rt.arbiter.ShouldCommit(sess, time.Now()) && sess.CommitPending.CompareAndSwap(false, true) {
		go h.recheckAndCommit(ctx, sess)
	}

	return nil
}

// recheckAndCommit implements the turn arbiter's defeat-late-speech recheck:
// it sleeps RecheckDelay and re-evaluates ShouldCommit before actually
// committing, so a word arriving just after the silence threshold was first
// crossed still aborts the commit. It runs in its own goroutine so the read
// loop keeps consuming ingress frames in arrival order while it sleeps.
func (h *Handler) recheckAndCommit(ctx context.Context, sess *session.Session) {
	defer sess.CommitPending.Store(false)

	time.Sleep(h.rt.arbiter.RecheckDelay())

	if !h.rt.arbiter.ShouldCommit(sess, time.Now()) {
		return
	}

	text, intent := h.rt.arbiter.Commit(sess)
	h.processTurn(ctx, sess, text, intent)
}

func (h *Handler) enqueueSentences(sess *session.Session, text string) {
	var sb llm.SentenceBuffer
	for _, r := range text {
		if s := sb.Add(string(r)); s != "" {
			sess.TTSQueue <- s
		}
	}
	if s := sb.Flush(); s != "" {
		sess.TTSQueue <- s
	}
}

func awaitStartEvent(conn *websocket.Conn) (*ingressStart, error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		var msg ingressMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Event == "start" && msg.Start != nil {
			return msg.Start, nil
		}
	}
}
