package telephony

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEndCallSetsCompletedStatus(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
	}))
	defer srv.Close()

	c := NewClient("ACxxx", "token", srv.URL)
	if err := c.EndCall(context.Background(), "CAyyy"); err != nil {
		t.Fatalf("EndCall: %v", err)
	}
	if !strings.Contains(gotQuery, "Status=completed") {
		t.Errorf("query = %q, missing Status=completed", gotQuery)
	}
}

func TestTransferCallDialsNumber(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
	}))
	defer srv.Close()

	c := NewClient("ACxxx", "token", srv.URL)
	if err := c.TransferCall(context.Background(), "CAyyy", "+15551234567"); err != nil {
		t.Fatalf("TransferCall: %v", err)
	}
	if !strings.Contains(gotQuery, "Twiml=") || !strings.Contains(gotQuery, "%2B15551234567") {
		t.Errorf("query = %q, missing expected twiml", gotQuery)
	}
}

func TestUpdateCallPropagatesErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("ACxxx", "token", srv.URL)
	if err := c.EndCall(context.Background(), "CAyyy"); err == nil {
		t.Fatalf("expected error on 401")
	}
}
