// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider kinds.
const (
	KindOpenAI  = "openai"  // any OpenAI-compatible HTTP endpoint
	KindOllama  = "ollama"  // local OpenAI-compatible endpoint, no API key
	KindSidecar = "sidecar" // gRPC generation sidecar
)

// Config holds all application configuration.
type Config struct {
	Port               string
	FrontendURL        string
	DB                 DBConfig
	Providers          map[string]ProviderConfig
	Chain              []string
	FastPath           FastPathConfig
	Context            ContextConfig
	Locale             string
	ConversationLog    ConversationLogConfig
	RateLimit          RateLimitConfig
	Timeout            TimeoutConfig
	MaxRequestBodySize int64
}

// DBConfig selects the record store backend.
type DBConfig struct {
	Driver      string // "sqlite" or "postgres"
	Path        string
	PostgresDSN string
}

// ProviderConfig configures one generation provider.
type ProviderConfig struct {
	ID          string
	Kind        string
	BaseURL     string
	APIKey      string
	Addr        string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float32
}

// FastPathConfig controls the cheap path for trivial messages.
type FastPathConfig struct {
	Enabled  bool
	Provider string
	Timeout  time.Duration
	MaxRunes int
}

// ContextConfig controls aggregation and scoring.
type ContextConfig struct {
	FetchTimeout          time.Duration
	CompletenessThreshold int
	Weights               map[string]int // empty means built-in defaults
	MaxSummaryRunes       int
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// RateLimitConfig controls per-user request throttling.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// TimeoutConfig holds ancillary timeouts.
type TimeoutConfig struct {
	HealthCheck time.Duration
	Turn        time.Duration
}

// providerDefaults mirrors the production chain: hosted gateway first, then
// OpenAI, with a local Ollama model for the fast path.
var providerDefaults = map[string]ProviderConfig{
	"gateway": {
		Kind:        KindOpenAI,
		BaseURL:     "https://ai.gateway.lovable.dev/v1",
		Model:       "google/gemini-2.5-flash",
		Timeout:     30 * time.Second,
		MaxTokens:   1500,
		Temperature: 0.8,
	},
	"openai": {
		Kind:        KindOpenAI,
		Model:       "gpt-4o",
		Timeout:     30 * time.Second,
		MaxTokens:   1500,
		Temperature: 0.8,
	},
	"ollama": {
		Kind:        KindOllama,
		BaseURL:     "http://localhost:11434/v1",
		Model:       "llama3.2:3b",
		Timeout:     15 * time.Second,
		MaxTokens:   300,
		Temperature: 0.7,
	},
	"sidecar": {
		Kind:        KindSidecar,
		Addr:        "localhost:50051",
		Timeout:     30 * time.Second,
		MaxTokens:   1500,
		Temperature: 0.8,
	},
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	chain := getEnvList("PROVIDER_CHAIN", []string{"gateway", "openai"})
	fastProvider := getEnv("FAST_PATH_PROVIDER", "ollama")

	weights, err := parseWeights(getEnv("COMPLETENESS_WEIGHTS", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DB: DBConfig{
			Driver:      getEnv("DB_DRIVER", "sqlite"),
			Path:        getEnv("DB_PATH", "./data/vital.db"),
			PostgresDSN: getEnv("DATABASE_URL", ""),
		},
		Providers: loadProviders(append(append([]string{}, chain...), fastProvider)),
		Chain:     chain,
		FastPath: FastPathConfig{
			Enabled:  getEnvBool("FAST_PATH_ENABLED", true),
			Provider: fastProvider,
			Timeout:  getEnvDuration("FAST_PATH_TIMEOUT", 15*time.Second),
			MaxRunes: getEnvInt("FAST_PATH_MAX_RUNES", 20),
		},
		Context: ContextConfig{
			FetchTimeout:          getEnvDuration("DOMAIN_FETCH_TIMEOUT", 3*time.Second),
			CompletenessThreshold: getEnvInt("COMPLETENESS_THRESHOLD", 60),
			Weights:               weights,
			MaxSummaryRunes:       getEnvInt("SUMMARY_MAX_RUNES", 4000),
		},
		Locale: getEnv("ASSISTANT_LOCALE", "pt-BR"),
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 20),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 5),
		},
		Timeout: TimeoutConfig{
			HealthCheck: getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
			Turn:        getEnvDuration("TURN_TIMEOUT", 90*time.Second),
		},
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 64*1024)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadProviders(ids []string) map[string]ProviderConfig {
	out := make(map[string]ProviderConfig, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, seen := out[id]; seen {
			continue
		}
		def := providerDefaults[id]
		prefix := "PROVIDER_" + strings.ToUpper(id) + "_"
		pc := ProviderConfig{
			ID:          id,
			Kind:        getEnv(prefix+"KIND", def.Kind),
			BaseURL:     getEnv(prefix+"BASE_URL", def.BaseURL),
			APIKey:      getEnv(prefix+"API_KEY", ""),
			Addr:        getEnv(prefix+"ADDR", def.Addr),
			Model:       getEnv(prefix+"MODEL", def.Model),
			Timeout:     getEnvDuration(prefix+"TIMEOUT", orDuration(def.Timeout, 30*time.Second)),
			MaxTokens:   getEnvInt(prefix+"MAX_TOKENS", orInt(def.MaxTokens, 1500)),
			Temperature: getEnvFloat32(prefix+"TEMPERATURE", def.Temperature),
		}
		if pc.Kind == "" {
			pc.Kind = KindOpenAI
		}
		out[id] = pc
	}
	return out
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.DB.Driver {
	case "sqlite":
		if c.DB.Path == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case "postgres":
		if c.DB.PostgresDSN == "" {
			return fmt.Errorf("DATABASE_URL cannot be empty when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DB.Driver)
	}
	for id, p := range c.Providers {
		switch p.Kind {
		case KindOpenAI, KindOllama, KindSidecar:
		default:
			return fmt.Errorf("PROVIDER_%s_KIND: unknown kind %q", strings.ToUpper(id), p.Kind)
		}
		if p.Timeout <= 0 {
			return fmt.Errorf("PROVIDER_%s_TIMEOUT must be > 0", strings.ToUpper(id))
		}
	}
	if c.FastPath.Timeout <= 0 {
		return fmt.Errorf("FAST_PATH_TIMEOUT must be > 0")
	}
	if c.FastPath.MaxRunes <= 0 {
		return fmt.Errorf("FAST_PATH_MAX_RUNES must be > 0")
	}
	if c.Context.FetchTimeout <= 0 {
		return fmt.Errorf("DOMAIN_FETCH_TIMEOUT must be > 0")
	}
	if c.Context.CompletenessThreshold < 0 || c.Context.CompletenessThreshold > 100 {
		return fmt.Errorf("COMPLETENESS_THRESHOLD must be within [0,100]")
	}
	if c.Context.MaxSummaryRunes <= 0 {
		return fmt.Errorf("SUMMARY_MAX_RUNES must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	if c.RateLimit.RequestsPerMinute <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE and RATE_LIMIT_BURST must be > 0")
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	if c.Timeout.Turn < 0 {
		return fmt.Errorf("TURN_TIMEOUT must be >= 0")
	}
	if need := c.MinTurnBudget(); c.Timeout.Turn > 0 && c.Timeout.Turn < need {
		return fmt.Errorf("TURN_TIMEOUT %s is shorter than the worst-case turn %s", c.Timeout.Turn, need)
	}
	return nil
}

// MinTurnBudget is the longest a turn can take before the fallback is
// reached: a failed fast path, the domain fetch, then every chain attempt
// running to its timeout.
func (c *Config) MinTurnBudget() time.Duration {
	need := c.Context.FetchTimeout
	if c.FastPath.Enabled {
		need += c.FastPath.Timeout
	}
	for _, id := range c.Chain {
		if p, ok := c.Providers[id]; ok {
			need += p.Timeout
		}
	}
	return need
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS allow list.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() {
		return []string{"*"}
	}
	return []string{c.FrontendURL}
}

// parseWeights reads "domain=weight,domain=weight". Sum validation happens in
// the scorer, which knows the domain catalog.
func parseWeights(raw string) (map[string]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	out := make(map[string]int)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("COMPLETENESS_WEIGHTS: malformed entry %q", pair)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("COMPLETENESS_WEIGHTS: invalid weight for %q", key)
		}
		out[strings.TrimSpace(key)] = n
	}
	return out, nil
}

func orDuration(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}

func orInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat32(key string, fallback float32) float32 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 32)
	if err != nil {
		return fallback
	}
	return float32(f)
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
