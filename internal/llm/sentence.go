package llm

import "strings"

const maxSentencesPerTurn = 10

// SentenceBuffer accumulates streamed tokens and splits at sentence boundaries.
type SentenceBuffer struct {
	buf   strings.Builder
	count int
}

// Add appends a token and returns any complete, cleaned sentence ready for
// TTS. Returns empty string if no sentence boundary has been reached yet, or
// if the per-turn sentence cap has already been hit (remaining tokens are
// discarded per the turn-level sentence limit).
func (s *SentenceBuffer) Add(token string) string {
	if s.count >= maxSentencesPerTurn {
		return ""
	}
	s.buf.WriteString(token)
	text := s.buf.String()
	complete, remainder := splitAtSentence(text)
	if complete == "" {
		return ""
	}
	s.buf.Reset()
	s.buf.WriteString(remainder)
	s.count++
	return StripMarkdown(complete)
}

// Flush returns any remaining buffered text as a final, cleaned sentence.
func (s *SentenceBuffer) Flush() string {
	text := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	if text == "" || s.count >= maxSentencesPerTurn {
		return ""
	}
	return StripMarkdown(text)
}

var sentenceEnders = map[byte]bool{'.': true, '!': true, '?': true}

// splitAtSentence finds the last sentence boundary in text.
// A boundary is a sentence ender (.!?) followed by whitespace.
// Returns (completeSentences, remainder). If no boundary, returns ("", text).
func splitAtSentence(text string) (string, string) {
	lastIdx := -1
	for i := 0; i < len(text)-1; i++ {
		if sentenceEnders[text[i]] && isWordBoundary(text[i+1]) {
			lastIdx = i + 1
		}
	}
	if lastIdx < 0 {
		return "", text
	}
	return strings.TrimSpace(text[:lastIdx]), text[lastIdx:]
}

func isWordBoundary(ch byte) bool {
	return ch == ' ' || ch == '\n' || ch == '\t'
}
