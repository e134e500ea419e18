// Package config loads the server's YAML configuration and layers
// environment-variable overrides on top of it, mirroring the teacher's own
// split between an env-driven cmd/agent entrypoint and glyphoxa's
// ProviderEntry/ServerConfig YAML schema.
package config

// Config is the root configuration document.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ServerConfig controls the HTTP/WebSocket listener.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel   string `yaml:"log_level"`
}

// PipelineConfig mirrors pipeline.Config's tunables so operators can adjust
// commit-by-stability behavior without recompiling.
type PipelineConfig struct {
	WindowSeconds         float64  `yaml:"window_seconds"`
	BufferSeconds         float64  `yaml:"buffer_seconds"`
	ASRIntervalMS         int      `yaml:"asr_interval_ms"`
	MinAudioSeconds       float64  `yaml:"min_audio_seconds"`
	EnergyGateRMS         float64  `yaml:"energy_gate_rms"`
	CommitStabilityK      int      `yaml:"commit_stability_k"`
	CommitTimeoutSecs     float64  `yaml:"commit_timeout_secs"`
	CommitMinWords        int      `yaml:"commit_min_words"`
	BufferLimitMS         int      `yaml:"buffer_limit_ms"`
	ASRTimeoutSecs        float64  `yaml:"asr_timeout_secs"`
	MTTimeoutSecs         float64  `yaml:"mt_timeout_secs"`
	TTSTimeoutSecs        float64  `yaml:"tts_timeout_secs"`
	IdleTimeoutSecs       float64  `yaml:"idle_timeout_secs"`
	MaxRepeatedNgramRatio float64  `yaml:"max_repeated_ngram_ratio"`
	HallucinationDenylist []string `yaml:"hallucination_denylist"`
}

// ProvidersConfig names the provider to use for each pipeline stage, plus
// any model/base-url overrides. API keys are intentionally absent here —
// they come from the environment only (see LoadSecrets), the same split the
// teacher's own cmd/agent keeps between GROQ_API_KEY-style secrets and
// everything else.
type ProvidersConfig struct {
	ASR ProviderEntry `yaml:"asr"`
	MT  ProviderEntry `yaml:"mt"`
	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry names one backend and its non-secret overrides.
type ProviderEntry struct {
	Name    string         `yaml:"name"`
	BaseURL string         `yaml:"base_url"`
	Model   string         `yaml:"model"`
	Options map[string]any `yaml:"options"`
}

// Secrets holds API keys read from the environment. Never decoded from
// YAML, never logged.
type Secrets struct {
	Groq       string
	OpenAI     string
	Anthropic  string
	Google     string
	Deepgram   string
	AssemblyAI string
	Lokutor    string
}

// Default returns a Config with the same numeric tunables as
// pipeline.DefaultConfig, duplicated here (rather than imported) so this
// package has no dependency on pkg/pipeline and stays loadable before the
// pipeline is constructed. Its hallucination denylist is a shorter,
// English-only list; being non-empty, it replaces
// pipeline.DefaultHallucinationDenylist when cmd/server builds the
// pipeline config.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:  ":8080",
			MetricsAddr: ":9090",
			LogLevel:    "info",
		},
		Pipeline: PipelineConfig{
			WindowSeconds:         8,
			BufferSeconds:         8,
			ASRIntervalMS:         500,
			MinAudioSeconds:       0.5,
			EnergyGateRMS:         0.01,
			CommitStabilityK:      3,
			CommitTimeoutSecs:     2,
			CommitMinWords:        1,
			BufferLimitMS:         3000,
			ASRTimeoutSecs:        10,
			MTTimeoutSecs:         10,
			TTSTimeoutSecs:        30,
			IdleTimeoutSecs:       60,
			MaxRepeatedNgramRatio: 0.6,
			HallucinationDenylist: []string{
				"thank you for watching",
				"subscribe to my channel",
				"thanks for watching",
			},
		},
		Providers: ProvidersConfig{
			ASR: ProviderEntry{Name: "groq"},
			MT:  ProviderEntry{Name: "groq"},
			TTS: ProviderEntry{Name: "lokutor"},
		},
	}
}
