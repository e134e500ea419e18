package asr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lokutor-ai/lokutor-stream/pkg/pipeline"
)

func TestGroqASR(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(struct {
			Text string `json:"text"`
		}{Text: "groq transcription"})
	}))
	defer server.Close()

	g := &GroqASR{apiKey: "test-key", url: server.URL, model: "whisper-large-v3"}

	result, err := g.Transcribe(context.Background(), make([]float32, 16000), 16000, pipeline.LanguageEn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "groq transcription" {
		t.Errorf("expected 'groq transcription', got %q", result)
	}
	if g.Name() != "groq" {
		t.Errorf("expected groq, got %q", g.Name())
	}
}
