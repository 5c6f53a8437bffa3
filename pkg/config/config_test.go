package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/rfq-checker/pkg/model"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVICE_NAME", "ENV", "LOG_LEVEL", "RUN_MODE", "RUN_INTERVAL", "HTTP_PORT",
		"RFQ_BASE_URL", "RFQ_TOKEN_URL", "RFQ_CLIENT_ID", "RFQ_CLIENT_SECRET",
		"RFQ_ACCOUNT_ID", "RFQ_PAIR", "RFQ_SIDE", "RFQ_DELIVER_QUANTITY", "RFQ_CLIENT_FEE_RATE",
		"RFQ_EXECUTE", "RFQ_MAX_RETRIES", "RFQ_BASE_DELAY", "RFQ_VISIBILITY_POLLS",
		"RFQ_IDEMPOTENCY_KEYS", "RFQ_PROFILE", "PROFILES_FILE", "EVENT_SINKS", "KAFKA_BROKERS",
	} {
		t.Setenv(key, "")
	}
}

func writeProfiles(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "rfq-checker", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "service", cfg.RunMode)
	assert.Equal(t, 5*time.Minute, cfg.RunInterval)
	assert.Equal(t, 9040, cfg.Port)
	assert.Equal(t, "https://camsapi-dev.aquanow.io/oauth/token", cfg.RFQTokenURL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Empty(t, cfg.EventSinks)

	require.Len(t, cfg.Profiles, 1)
	p := cfg.Profiles[0]
	assert.Equal(t, "default", p.Name)
	assert.Equal(t, "BTC-USD", p.Pair)
	assert.Equal(t, "BUY", p.Side)
	assert.True(t, p.DeliverQuantity.Equal(decimal.RequireFromString("103.06")))
	assert.True(t, p.ClientFeeRate.Equal(decimal.NewFromInt(30)))
	assert.False(t, p.Execute)
	assert.Equal(t, 3, p.MaxRetries)
	assert.Equal(t, 2*time.Second, p.BaseDelay.Duration)
	assert.Equal(t, 1, p.VisibilityPolls)
	assert.NoError(t, p.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RFQ_TOKEN_URL", "https://auth.example.com/token")
	t.Setenv("RFQ_SIDE", "sell")
	t.Setenv("RFQ_EXECUTE", "true")
	t.Setenv("RFQ_BASE_DELAY", "250ms")
	t.Setenv("EVENT_SINKS", "nats, kafka ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://auth.example.com/token", cfg.RFQTokenURL)
	assert.Equal(t, []string{"nats", "kafka"}, cfg.EventSinks)
	p := cfg.Profiles[0]
	assert.True(t, p.Execute)
	assert.Equal(t, 250*time.Millisecond, p.BaseDelay.Duration)
	assert.Equal(t, model.SideSell, p.QuoteRequest().Side)
}

func TestLoad_InvalidEnvProfile(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"zero retries", "RFQ_MAX_RETRIES", "0", "max_retries must be at least 1"},
		{"bad side", "RFQ_SIDE", "HOLD", "side must be BUY or SELL"},
		{"negative delay", "RFQ_BASE_DELAY", "-1s", "base_delay must not be negative"},
		{"zero quantity", "RFQ_DELIVER_QUANTITY", "0", "deliver_quantity must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadProfiles_FillsDefaults(t *testing.T) {
	clearEnv(t)
	path := writeProfiles(t, `
[[profile]]
name = "eth-sell"
pair = "ETH-USD"
side = "SELL"
deliver_quantity = "1.5"
execute = true
base_delay = "500ms"

[[profile]]
name = "btc-quote-only"
credentials = "shared"
`)

	profiles, err := LoadProfiles(path, DefaultProfile())
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	eth := profiles[0]
	assert.Equal(t, "ETH-USD", eth.Pair)
	assert.True(t, eth.DeliverQuantity.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, 500*time.Millisecond, eth.BaseDelay.Duration)
	assert.Equal(t, 3, eth.MaxRetries)
	assert.Equal(t, "eth-sell", eth.CredentialsKey())

	btc := profiles[1]
	assert.Equal(t, "BTC-USD", btc.Pair)
	assert.False(t, btc.Execute)
	assert.Equal(t, "shared", btc.CredentialsKey())
}

func TestLoadProfiles_Errors(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty file", ``, "no [[profile]]"},
		{"missing name", "[[profile]]\npair = \"BTC-USD\"\n", "name is required"},
		{"bad side", "[[profile]]\nname = \"x\"\nside = \"HOLD\"\n", "side must be BUY or SELL"},
		{"bad duration", "[[profile]]\nname = \"x\"\nbase_delay = \"soon\"\n", "decode profiles file"},
		{"negative quantity", "[[profile]]\nname = \"x\"\ndeliver_quantity = \"-1\"\n", "deliver_quantity must be positive"},
		{"duplicate", "[[profile]]\nname = \"x\"\n[[profile]]\nname = \"x\"\n", "duplicate profile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadProfiles(writeProfiles(t, tt.body), DefaultProfile())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGetEnvHelpers_InvalidFallBack(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_DEC", "1.2.3")

	assert.Equal(t, 7, GetEnvInt("X_INT", 7))
	assert.True(t, GetEnvBool("X_BOOL", true))
	assert.True(t, GetEnvDecimal("X_DEC", decimal.NewFromInt(5)).Equal(decimal.NewFromInt(5)))
}
