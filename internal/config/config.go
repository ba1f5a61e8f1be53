package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/koscakluka/ema-relay/core/audio"
	"github.com/koscakluka/ema-relay/internal/utils"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI   = "openai"
	ProviderDeepgram = "deepgram"
	ProviderGemini   = "gemini"
	ProviderGroq     = "groq"
	ProviderDia      = "dia"
)

var (
	transcriptionProviders = []string{ProviderOpenAI, ProviderDeepgram}
	generationProviders    = []string{ProviderOpenAI, ProviderGemini, ProviderGroq}
	synthesisProviders     = []string{ProviderDia, ProviderDeepgram}
)

// Config represents the complete relay configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Generation    GenerationConfig    `yaml:"generation"`
	Synthesis     SynthesisConfig     `yaml:"synthesis"`
	Session       SessionConfig       `yaml:"session"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Path            string        `yaml:"path"`
	HealthPath      string        `yaml:"health_path"`
	MetricsPath     string        `yaml:"metrics_path"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// AllowedOrigins limits browser clients. Empty accepts any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type TranscriptionConfig struct {
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"api_key"`
	URL        string `yaml:"url"`
	Model      string `yaml:"model"`
	Language   string `yaml:"language"`
	SampleRate int    `yaml:"sample_rate"`
	Encoding   string `yaml:"encoding"`
}

type GenerationConfig struct {
	Provider string        `yaml:"provider"`
	APIKey   string        `yaml:"api_key"`
	URL      string        `yaml:"url"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
	// SystemPrompt replaces the built-in assistant prompt when set.
	SystemPrompt string `yaml:"system_prompt"`
}

type SynthesisConfig struct {
	Provider   string        `yaml:"provider"`
	APIKey     string        `yaml:"api_key"`
	URL        string        `yaml:"url"`
	Voice      string        `yaml:"voice"`
	ChunkSize  int           `yaml:"chunk_size"`
	SampleRate int           `yaml:"sample_rate"`
	Encoding   string        `yaml:"encoding"`
	Timeout    time.Duration `yaml:"timeout"`
}

type SessionConfig struct {
	MaxConcurrentUtterances int           `yaml:"max_concurrent_utterances"`
	UtteranceQueueSize      int           `yaml:"utterance_queue_size"`
	WriteTimeout            time.Duration `yaml:"write_timeout"`
	ReadLimit               int64         `yaml:"read_limit"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// Output is stdout, stderr or a file path.
	Output string `yaml:"output"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			Path:            "/ai-voice-chat",
			HealthPath:      "/healthz",
			MetricsPath:     "/metrics",
			ShutdownTimeout: 10 * time.Second,
		},
		Transcription: TranscriptionConfig{
			Provider:   ProviderOpenAI,
			SampleRate: 24000,
			Encoding:   "linear16",
		},
		Generation: GenerationConfig{
			Provider: ProviderOpenAI,
		},
		Synthesis: SynthesisConfig{
			Provider:   ProviderDia,
			SampleRate: 24000,
			Encoding:   "linear16",
		},
		Session: SessionConfig{
			MaxConcurrentUtterances: 1,
			UtteranceQueueSize:      8,
			WriteTimeout:            10 * time.Second,
			ReadLimit:               1 << 20,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads the configuration file at path on top of the defaults, applies
// the environment and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	config.ApplyEnv(os.LookupEnv)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// ApplyEnv overrides values from the environment. Keys are matched to the
// providers that use them, so one OPENAI_API_KEY serves both transcription
// and generation.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	env := func(name string) string {
		value, _ := lookup(name)
		return value
	}
	keys := map[string]string{
		ProviderOpenAI:   env("OPENAI_API_KEY"),
		ProviderDeepgram: env("DEEPGRAM_API_KEY"),
		ProviderGemini:   env("GEMINI_API_KEY"),
		ProviderGroq:     env("GROQ_API_KEY"),
	}

	c.Transcription.APIKey = utils.FirstNonEmpty(keys[c.Transcription.Provider], c.Transcription.APIKey)
	c.Generation.APIKey = utils.FirstNonEmpty(keys[c.Generation.Provider], c.Generation.APIKey)
	c.Synthesis.APIKey = utils.FirstNonEmpty(keys[c.Synthesis.Provider], c.Synthesis.APIKey)

	if c.Synthesis.Provider == ProviderDia {
		c.Synthesis.URL = utils.FirstNonEmpty(env("DIA_URL"), c.Synthesis.URL)
	}
	c.Server.Addr = utils.FirstNonEmpty(env("EMA_RELAY_ADDR"), c.Server.Addr)
	c.Logging.Level = utils.FirstNonEmpty(env("LOG_LEVEL"), c.Logging.Level)
	c.Logging.Format = utils.FirstNonEmpty(env("LOG_FORMAT"), c.Logging.Format)
	c.Logging.Output = utils.FirstNonEmpty(env("LOG_OUTPUT"), c.Logging.Output)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	return errors.Join(
		wrap("server", c.Server.Validate()),
		wrap("transcription", c.Transcription.Validate()),
		wrap("generation", c.Generation.Validate()),
		wrap("synthesis", c.Synthesis.Validate()),
		wrap("session", c.Session.Validate()),
		wrap("logging", c.Logging.Validate()),
	)
}

func wrap(section string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s config: %w", section, err)
}

func (s *ServerConfig) Validate() error {
	if s.Addr == "" {
		return fmt.Errorf("addr cannot be empty")
	}
	for name, path := range map[string]string{"path": s.Path, "health_path": s.HealthPath, "metrics_path": s.MetricsPath} {
		if path == "" || path[0] != '/' {
			return fmt.Errorf("%s must start with '/', got '%s'", name, path)
		}
	}
	if s.Path == s.HealthPath || s.Path == s.MetricsPath {
		return fmt.Errorf("path '%s' collides with another endpoint", s.Path)
	}
	if s.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout cannot be negative, got %s", s.ShutdownTimeout)
	}
	return nil
}

func (t *TranscriptionConfig) Validate() error {
	if !slices.Contains(transcriptionProviders, t.Provider) {
		return fmt.Errorf("provider must be one of %v, got '%s'", transcriptionProviders, t.Provider)
	}
	if t.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty for provider '%s'", t.Provider)
	}
	if t.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", t.SampleRate)
	}
	if t.Provider == ProviderOpenAI && t.Encoding != "linear16" {
		return fmt.Errorf("provider 'openai' only accepts linear16 audio, got '%s'", t.Encoding)
	}
	return validateEncoding(t.Encoding)
}

func (g *GenerationConfig) Validate() error {
	if !slices.Contains(generationProviders, g.Provider) {
		return fmt.Errorf("provider must be one of %v, got '%s'", generationProviders, g.Provider)
	}
	if g.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty for provider '%s'", g.Provider)
	}
	if g.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %s", g.Timeout)
	}
	return nil
}

func (s *SynthesisConfig) Validate() error {
	if !slices.Contains(synthesisProviders, s.Provider) {
		return fmt.Errorf("provider must be one of %v, got '%s'", synthesisProviders, s.Provider)
	}
	if s.Provider == ProviderDeepgram && s.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty for provider '%s'", s.Provider)
	}
	if s.ChunkSize < 0 {
		return fmt.Errorf("chunk_size cannot be negative, got %d", s.ChunkSize)
	}
	if s.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", s.SampleRate)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %s", s.Timeout)
	}
	return validateEncoding(s.Encoding)
}

func (s *SessionConfig) Validate() error {
	if s.MaxConcurrentUtterances < 1 {
		return fmt.Errorf("max_concurrent_utterances must be at least 1, got %d", s.MaxConcurrentUtterances)
	}
	if s.UtteranceQueueSize < 1 {
		return fmt.Errorf("utterance_queue_size must be at least 1, got %d", s.UtteranceQueueSize)
	}
	if s.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be positive, got %s", s.WriteTimeout)
	}
	if s.ReadLimit < 0 {
		return fmt.Errorf("read_limit cannot be negative, got %d", s.ReadLimit)
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, l.Level) {
		return fmt.Errorf("level must be one of %v, got '%s'", validLevels, l.Level)
	}
	validFormats := []string{"json", "text"}
	if !slices.Contains(validFormats, l.Format) {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}
	return nil
}

func validateEncoding(name string) error {
	if _, ok := audio.ParseFormat(name); ok {
		return nil
	}
	return fmt.Errorf("encoding must be one of [linear16 mulaw alaw], got '%s'", name)
}
