package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lokutor-ai/lokutor-stream/pkg/audio"
	"github.com/lokutor-ai/lokutor-stream/pkg/pipeline"
)

// AssemblyAIASR transcribes via AssemblyAI's upload/submit/poll prerecorded
// flow. Its per-call latency (upload + queue + poll) is well above the
// periodic re-decode interval this pipeline targets, so it suits a longer
// window_seconds / asr_interval_ms configuration more than the defaults.
type AssemblyAIASR struct {
	apiKey string
}

func NewAssemblyAIASR(apiKey string) *AssemblyAIASR {
	return &AssemblyAIASR{apiKey: apiKey}
}

func (a *AssemblyAIASR) Name() string { return "assemblyai" }

func (a *AssemblyAIASR) Transcribe(ctx context.Context, samples []float32, sampleRate int, lang pipeline.Language) (string, error) {
	pcm := audio.PCM16FromFloat32(samples)

	uploadURL, err := a.upload(ctx, pcm)
	if err != nil {
		return "", err
	}
	transcriptID, err := a.submit(ctx, uploadURL, lang)
	if err != nil {
		return "", err
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(500 * time.Millisecond):
			text, status, err := a.getTranscript(ctx, transcriptID)
			if err != nil {
				return "", err
			}
			if status == "completed" {
				return text, nil
			}
			if status == "error" {
				return "", fmt.Errorf("assemblyai transcription failed")
			}
		}
	}
}

func (a *AssemblyAIASR) upload(ctx context.Context, pcm []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.assemblyai.com/v2/upload", bytes.NewReader(pcm))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", a.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		UploadURL string `json:"upload_url"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	return result.UploadURL, nil
}

func (a *AssemblyAIASR) submit(ctx context.Context, uploadURL string, lang pipeline.Language) (string, error) {
	payload := map[string]any{"audio_url": uploadURL}
	if lang != "" {
		payload["language_code"] = string(lang)
	}
	body, _ := json.Marshal(payload)

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.assemblyai.com/v2/transcript", bytes.NewReader(body))
	req.Header.Set("Authorization", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		ID string `json:"id"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	return result.ID, nil
}

func (a *AssemblyAIASR) getTranscript(ctx context.Context, id string) (string, string, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.assemblyai.com/v2/transcript/"+id, nil)
	req.Header.Set("Authorization", a.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	var result struct {
		Status string `json:"status"`
		Text   string `json:"text"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	return result.Text, result.Status, nil
}
