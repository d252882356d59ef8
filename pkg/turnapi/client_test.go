package turnapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxhire/voxhire/pkg/errorsx"
	"github.com/voxhire/voxhire/pkg/resilience"
)

func TestGenerateTurnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/turn" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(validEnvelope())
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil, WithAPIKey("test-key"))
	env, err := c.GenerateTurn(context.Background(), Request{Utterance: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if !env.OK || env.Data.Say == "" {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestGenerateTurnHTTP429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	_, err := c.GenerateTurn(context.Background(), Request{})
	if !resilience.IsRateLimit(err) {
		t.Fatalf("err = %v, want rate limit", err)
	}
}

func TestGenerateTurnEnvelopeRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Envelope{
			OK:    false,
			Error: &ErrorPayload{Code: CodeRateLimited, Message: "slow down"},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	_, err := c.GenerateTurn(context.Background(), Request{})
	if !resilience.IsRateLimit(err) {
		t.Fatalf("err = %v, want rate limit", err)
	}
}

func TestGenerateTurnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	_, err := c.GenerateTurn(context.Background(), Request{})
	if err == nil {
		t.Fatal("502 accepted")
	}
	if errorsx.Reason(err) != errorsx.ReasonTurnRequest {
		t.Fatalf("reason = %s", errorsx.Reason(err))
	}
	if resilience.IsRateLimit(err) {
		t.Fatal("502 classified as rate limit")
	}
}

func TestGenerateTurnMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	_, err := c.GenerateTurn(context.Background(), Request{})
	if errorsx.Reason(err) != errorsx.ReasonBadPayload {
		t.Fatalf("reason = %s", errorsx.Reason(err))
	}
}
