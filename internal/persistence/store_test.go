package persistence

import (
	"context"
	"os"
	"testing"
	"time"
)

// These tests exercise a real PostgreSQL instance and are skipped unless
// TEST_DATABASE_URL is set, consistent with this package's lack of an
// in-process fake for the pgx driver.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	connStr := os.Getenv("TEST_DATABASE_URL")
	if connStr == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping persistence integration test")
	}
	store, err := Open(connStr)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStartAndEndConversationRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	callID := "test-call-" + time.Now().Format("150405.000000000")

	if err := store.StartConversation(ctx, callID, "agent-1", map[string]string{"name": "Ana"}); err != nil {
		t.Fatalf("StartConversation: %v", err)
	}

	conv, err := store.GetConversation(ctx, callID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if conv.Status != "initiated" {
		t.Errorf("status = %q, want initiated", conv.Status)
	}
	if conv.DynamicVariables["name"] != "Ana" {
		t.Errorf("dynamic_variables[name] = %q, want Ana", conv.DynamicVariables["name"])
	}

	if err := store.AppendTurn(ctx, callID, "hello", "hi there"); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}

	if err := store.EndConversation(ctx, callID, "normal"); err != nil {
		t.Fatalf("EndConversation: %v", err)
	}

	conv, err = store.GetConversation(ctx, callID)
	if err != nil {
		t.Fatalf("GetConversation after end: %v", err)
	}
	if conv.Status != "completed" {
		t.Errorf("status = %q, want completed", conv.Status)
	}
	if conv.EndedReason != "normal" {
		t.Errorf("ended_reason = %q, want normal", conv.EndedReason)
	}
	if conv.EndedAt == nil {
		t.Error("ended_at not set")
	}
	if conv.Transcript == "" {
		t.Error("transcript not appended")
	}
}

func TestStartConversationIsIdempotentPerCallID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	callID := "test-call-idempotent-" + time.Now().Format("150405.000000000")

	if err := store.StartConversation(ctx, callID, "agent-1", nil); err != nil {
		t.Fatalf("StartConversation: %v", err)
	}
	if err := store.StartConversation(ctx, callID, "agent-1", nil); err != nil {
		t.Fatalf("StartConversation (second): %v", err)
	}
}
