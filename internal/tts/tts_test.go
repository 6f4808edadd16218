package tts

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStreamSynthesisReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("encoding") != "linear16" {
			t.Errorf("encoding = %q", r.URL.Query().Get("encoding"))
		}
		w.Write(make([]byte, 32))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &http.Client{Timeout: 2 * time.Second})
	body, err := c.StreamSynthesis(context.Background(), "hello", "voice-a")
	if err != nil {
		t.Fatalf("StreamSynthesis: %v", err)
	}
	defer body.Close()

	data, _ := io.ReadAll(body)
	if len(data) != 32 {
		t.Errorf("got %d bytes, want 32", len(data))
	}
}

func TestStreamSynthesisPropagatesErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &http.Client{Timeout: 2 * time.Second})
	if _, err := c.StreamSynthesis(context.Background(), "hello", "voice-a"); err == nil {
		t.Fatalf("expected error on 500 status")
	}
}

func TestResolveVoicePrecedence(t *testing.T) {
	if v := ResolveVoice("override", "agent", "default"); v != "override" {
		t.Errorf("got %q", v)
	}
	if v := ResolveVoice("", "agent", "default"); v != "agent" {
		t.Errorf("got %q", v)
	}
	if v := ResolveVoice("", "", "default"); v != "default" {
		t.Errorf("got %q", v)
	}
}
