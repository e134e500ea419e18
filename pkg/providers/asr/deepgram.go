package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/lokutor-ai/lokutor-stream/pkg/audio"
	"github.com/lokutor-ai/lokutor-stream/pkg/pipeline"
)

// DeepgramASR transcribes via Deepgram's prerecorded /listen endpoint,
// sent raw PCM16 over the request body (no WAV wrapping needed).
type DeepgramASR struct {
	apiKey string
	url    string
}

func NewDeepgramASR(apiKey string) *DeepgramASR {
	return &DeepgramASR{apiKey: apiKey, url: "https://api.deepgram.com/v1/listen"}
}

func (d *DeepgramASR) Name() string { return "deepgram" }

func (d *DeepgramASR) Transcribe(ctx context.Context, samples []float32, sampleRate int, lang pipeline.Language) (string, error) {
	pcm := audio.PCM16FromFloat32(samples)

	u, err := url.Parse(d.url)
	if err != nil {
		return "", err
	}
	params := u.Query()
	params.Set("model", "nova-2")
	params.Set("smart_format", "true")
	if lang != "" {
		params.Set("language", string(lang))
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(pcm))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", fmt.Sprintf("audio/l16; rate=%d; channels=1", sampleRate))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("deepgram error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Results.Channels) == 0 || len(result.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return result.Results.Channels[0].Alternatives[0].Transcript, nil
}
