package config

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML config at path, falling back to Default if path is
// empty or the file does not exist — a server should be runnable with zero
// configuration, same as the teacher's agent falls back to "groq" when
// STT_PROVIDER/LLM_PROVIDER are unset.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	if err := decodeInto(cfg, f); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

func decodeInto(cfg *Config, r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// LoadSecrets reads provider API keys from the environment, loading a
// .env file first if one is present. Grounded directly on the teacher's
// cmd/agent/main.go, which does exactly this before reading
// GROQ_API_KEY/OPENAI_API_KEY/etc.
func LoadSecrets() Secrets {
	_ = godotenv.Load() // no .env file is the common case outside local dev
	return Secrets{
		Groq:       os.Getenv("GROQ_API_KEY"),
		OpenAI:     os.Getenv("OPENAI_API_KEY"),
		Anthropic:  os.Getenv("ANTHROPIC_API_KEY"),
		Google:     os.Getenv("GOOGLE_API_KEY"),
		Deepgram:   os.Getenv("DEEPGRAM_API_KEY"),
		AssemblyAI: os.Getenv("ASSEMBLYAI_API_KEY"),
		Lokutor:    os.Getenv("LOKUTOR_API_KEY"),
	}
}

// ApplyEnvOverrides lets STT_PROVIDER / LLM_PROVIDER / TTS_PROVIDER win over
// whatever the YAML file set, the same override relationship the teacher's
// cmd/agent gives os.Getenv("STT_PROVIDER") over its own default.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STT_PROVIDER"); v != "" {
		cfg.Providers.ASR.Name = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.Providers.MT.Name = v
	}
	if v := os.Getenv("TTS_PROVIDER"); v != "" {
		cfg.Providers.TTS.Name = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
}

// KeyFor returns the API key Secrets holds for a given provider name, or ""
// if unrecognised. Provider names are matched case-sensitively against the
// same set the teacher's provider factory switches on.
func (s Secrets) KeyFor(provider string) string {
	switch provider {
	case "groq":
		return s.Groq
	case "openai":
		return s.OpenAI
	case "anthropic":
		return s.Anthropic
	case "google", "gemini":
		return s.Google
	case "deepgram":
		return s.Deepgram
	case "assemblyai":
		return s.AssemblyAI
	case "lokutor":
		return s.Lokutor
	default:
		return ""
	}
}
