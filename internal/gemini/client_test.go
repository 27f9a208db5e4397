package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{APIKey: "test-key", BaseURL: srv.URL})
}

func TestGenerate(t *testing.T) {
	var gotPath, gotKey string
	var gotReq generateRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "hello from gemini"}}}},
			},
		})
	})

	got, err := c.Generate(context.Background(), "say hello", "be brief")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "hello from gemini" {
		t.Errorf("Generate = %q", got)
	}
	if !strings.HasSuffix(gotPath, "/models/gemini-2.5-flash:generateContent") {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api key header = %q", gotKey)
	}
	if gotReq.SystemInstruction == nil || gotReq.SystemInstruction.Parts[0].Text != "be brief" {
		t.Errorf("system instruction not sent: %+v", gotReq.SystemInstruction)
	}
}

func TestGenerate_NoSystemInstruction(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.SystemInstruction != nil {
			t.Error("system_instruction sent for empty instruction")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "ok"}}}},
			},
		})
	})

	if _, err := c.Generate(context.Background(), "prompt", ""); err != nil {
		t.Fatalf("Generate: %v", err)
	}
}

func TestGenerate_Non200(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	if _, err := c.Generate(context.Background(), "prompt", ""); err == nil {
		t.Fatal("expected error for 429 response")
	}
}

func TestGenerate_EmptyCandidates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	})

	if _, err := c.Generate(context.Background(), "prompt", ""); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

func TestGenerate_NoAPIKey(t *testing.T) {
	c := New(Options{})
	if c.Enabled() {
		t.Error("Enabled = true without key")
	}
	if _, err := c.Generate(context.Background(), "prompt", ""); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestEmbed(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": []float32{0.1, 0.2, 0.3}},
		})
	})

	vec, err := c.Embed(context.Background(), "some product text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Errorf("Embed = %v", vec)
	}
	if !strings.HasSuffix(gotPath, "/models/embedding-001:embedContent") {
		t.Errorf("path = %q", gotPath)
	}
}

func TestEmbed_EmptyVector(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embedding":{"values":[]}}`))
	})

	if _, err := c.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error for empty embedding")
	}
}

func TestEmbed_NoAPIKey(t *testing.T) {
	c := New(Options{})
	if _, err := c.Embed(context.Background(), "text"); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}
