package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PROVIDER_CHAIN", "gateway,openai")
	t.Setenv("PROVIDER_OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"gateway", "openai"}, cfg.Chain)
	assert.Equal(t, "ollama", cfg.FastPath.Provider)
	assert.Equal(t, 20, cfg.FastPath.MaxRunes)
	assert.Equal(t, 60, cfg.Context.CompletenessThreshold)
	assert.Equal(t, "pt-BR", cfg.Locale)

	gw := cfg.Providers["gateway"]
	assert.Equal(t, KindOpenAI, gw.Kind)
	assert.Equal(t, "google/gemini-2.5-flash", gw.Model)

	oa := cfg.Providers["openai"]
	assert.Equal(t, "sk-test", oa.APIKey)
	assert.Equal(t, "gpt-4o", oa.Model)
	assert.InDelta(t, 0.8, oa.Temperature, 0.0001)

	ol := cfg.Providers["ollama"]
	assert.Equal(t, KindOllama, ol.Kind)
	assert.Equal(t, "llama3.2:3b", ol.Model)
}

func TestLoadProviderOverrides(t *testing.T) {
	t.Setenv("PROVIDER_CHAIN", "sidecar, custom")
	t.Setenv("PROVIDER_SIDECAR_ADDR", "gen:9000")
	t.Setenv("PROVIDER_CUSTOM_BASE_URL", "https://llm.internal/v1")
	t.Setenv("PROVIDER_CUSTOM_MODEL", "mixtral")
	t.Setenv("PROVIDER_CUSTOM_TIMEOUT", "7s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"sidecar", "custom"}, cfg.Chain)
	assert.Equal(t, KindSidecar, cfg.Providers["sidecar"].Kind)
	assert.Equal(t, "gen:9000", cfg.Providers["sidecar"].Addr)

	custom := cfg.Providers["custom"]
	assert.Equal(t, KindOpenAI, custom.Kind)
	assert.Equal(t, "mixtral", custom.Model)
	assert.Equal(t, 7*time.Second, custom.Timeout)
}

func TestLoadRejectsBadDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresDSNForPostgres(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestParseWeights(t *testing.T) {
	t.Parallel()

	got, err := parseWeights("profile=50, physical_data=50")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"profile": 50, "physical_data": 50}, got)

	_, err = parseWeights("profile")
	assert.Error(t, err)

	_, err = parseWeights("profile=-1")
	assert.Error(t, err)

	none, err := parseWeights("")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestLoadRejectsShortTurnBudget(t *testing.T) {
	t.Setenv("PROVIDER_CHAIN", "gateway,openai")
	t.Setenv("TURN_TIMEOUT", "60s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TURN_TIMEOUT")
}

func TestMinTurnBudget(t *testing.T) {
	t.Setenv("PROVIDER_CHAIN", "gateway,openai")

	cfg, err := Load()
	require.NoError(t, err)
	// 15s fast path + 3s fetch + 30s gateway + 30s openai.
	assert.Equal(t, 78*time.Second, cfg.MinTurnBudget())
	assert.GreaterOrEqual(t, cfg.Timeout.Turn, cfg.MinTurnBudget())

	cfg.FastPath.Enabled = false
	assert.Equal(t, 63*time.Second, cfg.MinTurnBudget())
}
