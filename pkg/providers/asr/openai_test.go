package asr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lokutor-ai/lokutor-stream/pkg/pipeline"
)

func TestOpenAIASR(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(struct {
			Text string `json:"text"`
		}{Text: "transcribed text"})
	}))
	defer server.Close()

	o := &OpenAIASR{apiKey: "test-key", url: server.URL, model: "whisper-1"}

	result, err := o.Transcribe(context.Background(), make([]float32, 16000), 16000, pipeline.LanguageEn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "transcribed text" {
		t.Errorf("expected 'transcribed text', got %q", result)
	}
	if o.Name() != "openai" {
		t.Errorf("expected openai, got %q", o.Name())
	}
}
