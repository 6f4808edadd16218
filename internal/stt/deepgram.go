// Package stt implements the Streaming STT Adapter: a Deepgram-style
// WebSocket connection carrying 8 kHz mu-law audio, with interim/final
// transcript, speech-started, and utterance-end event handling.
package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lattice-voice/voiceagent/internal/metrics"
)

// EventHandler receives decoded STT events. Implementations must perform
// session state mutations only from within these callbacks, which are all
// invoked serially from the adapter's single read loop.
type EventHandler interface {
	OnOpen()
	OnTranscript(text string, isFinal bool)
	OnSpeechStarted()
	OnUtteranceEnd()
	OnError(err error)
	OnClose()
}

// Config configures a streaming session.
type Config struct {
	APIKey         string
	PrimaryModel   string
	FallbackModel  string
	Language       string
	UtteranceEndMS int
}

// Stream is one live streaming STT connection for a call.
type Stream struct {
	cfg     Config
	handler EventHandler

	connMu sync.Mutex
	conn   *websocket.Conn

	lastInterim time.Time
}

// NewStream dials the primary model; on configuration rejection it retries
// once with the fallback model.
func NewStream(ctx context.Context, cfg Config, handler EventHandler) (*Stream, error) {
	s := &Stream{cfg: cfg, handler: handler}

	conn, err := dial(cfg, cfg.PrimaryModel)
	if err != nil {
		if cfg.FallbackModel == "" || cfg.FallbackModel == cfg.PrimaryModel {
			metrics.Errors.WithLabelValues("stt", "connect").Inc()
			return nil, fmt.Errorf("stt dial: %w", err)
		}
		conn, err = dial(cfg, cfg.FallbackModel)
		if err != nil {
			metrics.Errors.WithLabelValues("stt", "connect").Inc()
			return nil, fmt.Errorf("stt dial (fallback): %w", err)
		}
	}

	s.conn = conn
	handler.OnOpen()
	go s.readLoop()
	return s, nil
}

func dial(cfg Config, model string) (*websocket.Conn, error) {
	params := url.Values{}
	params.Set("model", model)
	params.Set("language", cfg.Language)
	params.Set("encoding", "mulaw")
	params.Set("sample_rate", "8000")
	params.Set("channels", "1")
	params.Set("interim_results", "true")
	params.Set("vad_events", "true")
	if cfg.UtteranceEndMS > 0 {
		params.Set("utterance_end_ms", fmt.Sprintf("%d", cfg.UtteranceEndMS))
	}

	wsURL := "wss://api.deepgram.com/v1/listen?" + params.Encode()
	header := map[string][]string{"Authorization": {"Token " + cfg.APIKey}}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	return conn, err
}

// SendAudio forwards one frame of encoded audio to the STT backend.
func (s *Stream) SendAudio(frame []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("stt stream closed")
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// Close tears down the connection.
func (s *Stream) Close() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *Stream) readLoop() {
	defer s.handler.OnClose()

	for {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
				strings.Contains(err.Error(), "use of closed network connection") {
				return
			}
			metrics.Errors.WithLabelValues("stt", "read").Inc()
			s.handler.OnError(err)
			return
		}

		s.dispatch(message)
	}
}

func (s *Stream) dispatch(message []byte) {
	var env deepgramEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return
	}

	switch env.Type {
	case "SpeechStarted":
		s.handler.OnSpeechStarted()
	case "UtteranceEnd":
		if time.Since(s.lastInterim) >= 200*time.Millisecond {
			s.handler.OnUtteranceEnd()
		}
	default:
		var resp deepgramTranscriptResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			return
		}
		if len(resp.Channel.Alternatives) == 0 {
			return
		}
		text := resp.Channel.Alternatives[0].Transcript
		if text == "" {
			return
		}
		if !resp.IsFinal {
			s.lastInterim = time.Now()
		}
		s.handler.OnTranscript(text, resp.IsFinal)
	}
}

type deepgramEnvelope struct {
	Type string `json:"type"`
}

type deepgramTranscriptResponse struct {
	IsFinal bool `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}
