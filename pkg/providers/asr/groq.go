// Package asr adapts HTTP transcription APIs to pipeline.ASRProvider.
// Grounded on the teacher's pkg/providers/stt adapters: the Go-world shift is
// the Transcribe contract, which now takes the ring buffer's float32 window
// and a sample rate per call instead of a fixed-rate raw PCM16 byte slice.
package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/lokutor-ai/lokutor-stream/pkg/audio"
	"github.com/lokutor-ai/lokutor-stream/pkg/pipeline"
)

// GroqASR transcribes via Groq's Whisper-compatible endpoint.
type GroqASR struct {
	apiKey string
	url    string
	model  string
}

func NewGroqASR(apiKey, model string) *GroqASR {
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	return &GroqASR{
		apiKey: apiKey,
		url:    "https://api.groq.com/openai/v1/audio/transcriptions",
		model:  model,
	}
}

func (g *GroqASR) Name() string { return "groq" }

func (g *GroqASR) Transcribe(ctx context.Context, samples []float32, sampleRate int, lang pipeline.Language) (string, error) {
	wavData := audio.NewWavBuffer(audio.PCM16FromFloat32(samples), sampleRate)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", g.model); err != nil {
		return "", err
	}
	if lang != "" {
		if err := writer.WriteField("language", string(lang)); err != nil {
			return "", err
		}
	}

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, bytes.NewReader(wavData)); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp any
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("groq asr error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Text, nil
}
