package mt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lokutor-ai/lokutor-stream/pkg/pipeline"
)

func TestGroqMT(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}{
			Choices: []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			}{{Message: struct {
				Content string `json:"content"`
			}{Content: "hello from groq"}}},
		})
	}))
	defer server.Close()

	g := &GroqMT{apiKey: "test-key", url: server.URL, model: "llama-3.3-70b-versatile"}

	resp, err := g.Translate(context.Background(), "hola", pipeline.LanguageEs, pipeline.LanguageEn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "hello from groq" {
		t.Errorf("expected 'hello from groq', got %q", resp)
	}
	if g.Name() != "groq" {
		t.Errorf("expected groq, got %q", g.Name())
	}
}
