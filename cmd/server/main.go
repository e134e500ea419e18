// Command server runs the lokutor-stream session endpoint: one WebSocket
// connection per speech-translation session at /ws/stream, plus a
// Prometheus /metrics endpoint. Grounded on the teacher's cmd/agent/main.go
// (godotenv + env-driven provider selection), generalized from a
// microphone-attached CLI agent to a networked server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/lokutor-ai/lokutor-stream/pkg/config"
	"github.com/lokutor-ai/lokutor-stream/pkg/logging"
	"github.com/lokutor-ai/lokutor-stream/pkg/pipeline"
	"github.com/lokutor-ai/lokutor-stream/pkg/providers/asr"
	"github.com/lokutor-ai/lokutor-stream/pkg/providers/mt"
	"github.com/lokutor-ai/lokutor-stream/pkg/providers/tts"
	"github.com/lokutor-ai/lokutor-stream/pkg/transport"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve the lokutor-stream speech translation session endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (optional)")
	return cmd
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	secrets := config.LoadSecrets()
	config.ApplyEnvOverrides(cfg)

	logger := logging.New(cfg.Server.LogLevel)

	pipelineCfg := toPipelineConfig(cfg.Pipeline)
	pool := pipeline.NewPool(8)

	providers := newProviderFactory(cfg.Providers, secrets)
	srv := transport.NewServer(pipelineCfg, pool, providers, logger)

	mux := http.NewServeMux()
	mux.Handle("/ws/stream", srv)
	mux.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	httpSrv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: mux}
	metricsSrv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: metricsMux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		logger.Info("session endpoint listening", "addr", cfg.Server.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("metrics endpoint listening", "addr", cfg.Server.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	return nil
}

func toPipelineConfig(p config.PipelineConfig) pipeline.Config {
	cfg := pipeline.DefaultConfig()
	if p.WindowSeconds > 0 {
		cfg.WindowSeconds = p.WindowSeconds
	}
	if p.BufferSeconds > 0 {
		cfg.BufferSeconds = p.BufferSeconds
	}
	if p.ASRIntervalMS > 0 {
		cfg.ASRIntervalMS = p.ASRIntervalMS
	}
	if p.MinAudioSeconds > 0 {
		cfg.MinAudioSeconds = p.MinAudioSeconds
	}
	cfg.EnergyGateRMS = p.EnergyGateRMS
	if p.CommitStabilityK > 0 {
		cfg.CommitStabilityK = p.CommitStabilityK
	}
	if p.CommitTimeoutSecs > 0 {
		cfg.CommitTimeoutSecs = p.CommitTimeoutSecs
	}
	if p.CommitMinWords > 0 {
		cfg.CommitMinWords = p.CommitMinWords
	}
	if p.BufferLimitMS > 0 {
		cfg.BufferLimitMS = p.BufferLimitMS
	}
	if p.ASRTimeoutSecs > 0 {
		cfg.ASRTimeoutSecs = p.ASRTimeoutSecs
	}
	if p.MTTimeoutSecs > 0 {
		cfg.MTTimeoutSecs = p.MTTimeoutSecs
	}
	if p.TTSTimeoutSecs > 0 {
		cfg.TTSTimeoutSecs = p.TTSTimeoutSecs
	}
	if p.IdleTimeoutSecs > 0 {
		cfg.IdleTimeoutSecs = p.IdleTimeoutSecs
	}
	if p.MaxRepeatedNgramRatio > 0 {
		cfg.MaxRepeatedNgramRatio = p.MaxRepeatedNgramRatio
	}
	if len(p.HallucinationDenylist) > 0 {
		cfg.HallucinationDenylist = p.HallucinationDenylist
	}
	return cfg
}

// newProviderFactory builds the ASR/MT/TTS adapters named in cfg, resolving
// API keys from secrets. Mirrors the teacher's cmd/agent provider-selection
// switch, generalized from a one-shot startup choice to a per-session
// factory (each WebSocket connection negotiates its own source/target
// language in its config frame).
func newProviderFactory(cfg config.ProvidersConfig, secrets config.Secrets) transport.ProviderFactory {
	return func(source, target pipeline.Language) (pipeline.ASRProvider, pipeline.MTProvider, pipeline.TTSProvider, error) {
		asrP, err := buildASR(cfg.ASR, secrets)
		if err != nil {
			return nil, nil, nil, err
		}
		mtP, err := buildMT(cfg.MT, secrets)
		if err != nil {
			return nil, nil, nil, err
		}
		ttsP, err := buildTTS(cfg.TTS, secrets)
		if err != nil {
			return nil, nil, nil, err
		}
		return asrP, mtP, ttsP, nil
	}
}

func buildASR(p config.ProviderEntry, secrets config.Secrets) (pipeline.ASRProvider, error) {
	switch p.Name {
	case "openai":
		return asr.NewOpenAIASR(secrets.OpenAI, p.Model), nil
	case "deepgram":
		return asr.NewDeepgramASR(secrets.Deepgram), nil
	case "assemblyai":
		return asr.NewAssemblyAIASR(secrets.AssemblyAI), nil
	case "groq", "":
		return asr.NewGroqASR(secrets.Groq, p.Model), nil
	default:
		return nil, fmt.Errorf("unknown asr provider %q", p.Name)
	}
}

func buildMT(p config.ProviderEntry, secrets config.Secrets) (pipeline.MTProvider, error) {
	switch p.Name {
	case "openai":
		return mt.NewOpenAIMT(secrets.OpenAI, p.Model), nil
	case "anthropic":
		return mt.NewAnthropicMT(secrets.Anthropic, p.Model), nil
	case "google", "gemini":
		return mt.NewGoogleMT(secrets.Google, p.Model), nil
	case "groq", "":
		return mt.NewGroqMT(secrets.Groq, p.Model), nil
	default:
		return nil, fmt.Errorf("unknown mt provider %q", p.Name)
	}
}

func buildTTS(p config.ProviderEntry, secrets config.Secrets) (pipeline.TTSProvider, error) {
	switch p.Name {
	case "lokutor", "":
		return tts.NewLokutorTTS(secrets.Lokutor), nil
	default:
		return nil, fmt.Errorf("unknown tts provider %q", p.Name)
	}
}
