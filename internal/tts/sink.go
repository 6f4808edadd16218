package tts

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/lattice-voice/voiceagent/internal/audio"
	"github.com/lattice-voice/voiceagent/internal/metrics"
	"github.com/lattice-voice/voiceagent/internal/session"
)

const (
	fadeSamples   = 160
	streamBufSize = 4096
)

// SendFunc transmits one 8 kHz mu-law frame over the media channel. It
// should refuse (return an error, non-fatal) when the session's stream_id
// has drifted or an interrupt is active; the sink treats that as the signal
// to stop this sentence, not as a hard failure.
type SendFunc func(frame []byte) error

// Sink consumes tts_queue for one call, synthesizing and streaming each
// queued sentence to the media channel.
type Sink struct {
	client       *Client
	defaultVoice string
}

// NewSink creates a TTS sink bound to client, using defaultVoice when no
// call-level or agent-level override applies.
func NewSink(client *Client, defaultVoice string) *Sink {
	return &Sink{client: client, defaultVoice: defaultVoice}
}

// Run drains sess.TTSQueue until it is empty or an interrupt is observed,
// synthesizing and sending each sentence in turn. It sets AgentSpeaking for
// the duration and clears it on return. If it takes a sentence while
// InterruptRequested is latched, it drops the rest of the queue, clears the
// latch, and returns.
func (s *Sink) Run(ctx context.Context, sess *session.Session, send SendFunc) {
	sess.AgentSpeaking.Store(true)
	defer sess.AgentSpeaking.Store(false)

	for {
		select {
		case sentence, ok := <-sess.TTSQueue:
			if !ok {
				return
			}
			if sess.InterruptRequested.Load() {
				s.drainQueue(sess)
				sess.InterruptRequested.Store(false)
				return
			}
			if err := s.speakSentence(ctx, sess, sentence, send); err != nil {
				slog.Warn("tts sink: sentence failed", "call_id", sess.CallID, "error", err)
			}
		case <-ctx.Done():
			return
		default:
			return
		}
	}
}

func (s *Sink) drainQueue(sess *session.Session) {
	for {
		select {
		case <-sess.TTSQueue:
		default:
			return
		}
	}
}

func (s *Sink) speakSentence(ctx context.Context, sess *session.Session, text string, send SendFunc) error {
	voice := ResolveVoice("", sess.AgentConfig.VoiceID, s.defaultVoice)

	body, err := s.client.StreamSynthesis(ctx, text, voice)
	if err != nil {
		metrics.Errors.WithLabelValues("tts", "synthesize").Inc()
		return fmt.Errorf("stream synthesis: %w", err)
	}
	defer body.Close()

	reader := bufio.NewReaderSize(body, streamBufSize)
	buf := make([]byte, streamBufSize)
	first := true

	for {
		if sess.InterruptRequested.Load() {
			s.drainQueue(sess)
			sess.ClearSTTBuffer()
			return nil
		}

		n, readErr := reader.Read(buf)
		if n > 0 {
			// Require an even number of bytes for whole PCM16 samples.
			chunk := buf[:n-(n%2)]
			if len(chunk) > 0 {
				// Fade-out applies only when this is both the stream's last
				// chunk and nothing else is queued behind it, approximating
				// "queue empty without interrupt" at chunk granularity.
				isFinal := readErr == io.EOF && len(sess.TTSQueue) == 0
				if sendErr := s.sendChunk(sess, chunk, first, isFinal, send); sendErr != nil {
					return sendErr
				}
				first = false
			}
		}

		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return fmt.Errorf("read tts stream: %w", readErr)
		}
	}
}

func (s *Sink) sendChunk(sess *session.Session, linearPCM []byte, isFirst, isFinal bool, send SendFunc) error {
	samples, _, err := audio.Decode(linearPCM, audio.CodecPCM, synthesisSampleRate)
	if err != nil {
		return fmt.Errorf("decode tts chunk: %w", err)
	}

	resampled, state := audio.Resample(samples, synthesisSampleRate, 8000, sess.ResamplerState)
	sess.ResamplerState = state

	if isFirst {
		audio.FadeIn(resampled, fadeSamples)
	}
	if isFinal {
		audio.FadeOut(resampled, fadeSamples)
	}

	pcmBytes := audio.PCM16ToBytes(resampled)
	ulaw := audio.PCM16ToUlaw(pcmBytes)

	start := time.Now()
	for _, frame := range audio.Packetize(ulaw) {
		if sess.InterruptRequested.Load() {
			return nil
		}
		if err := send(frame); err != nil {
			return fmt.Errorf("send frame: %w", err)
		}
	}
	metrics.StageDuration.WithLabelValues("tts_frame_send").Observe(time.Since(start).Seconds())
	return nil
}
