package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaults(t *testing.T) {
	cfg, err := load(envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "0.08", cfg.TaxRate.String())
	assert.Equal(t, 5*time.Second, cfg.CheckoutTimeout)
	assert.Equal(t, 3, cfg.OrderNumberAttempts)
	assert.Equal(t, 3, cfg.LedgerAttempts)
	assert.Equal(t, 3, cfg.LowStockThreshold)
	assert.Equal(t, "pos.events", cfg.EventsTopic)
	assert.Nil(t, cfg.KafkaBrokers)
}

func TestOverrides(t *testing.T) {
	cfg, err := load(envMap(map[string]string{
		"STORE":            "Postgres",
		"KAFKA_ADDR":       "k1:9092, k2:9092",
		"TAX_RATE":         "0.2",
		"CHECKOUT_TIMEOUT": "750ms",
	}))
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "0.2", cfg.TaxRate.String())
	assert.Equal(t, 750*time.Millisecond, cfg.CheckoutTimeout)
}

func TestInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"store":    {"STORE": "sqlite"},
		"tax":      {"TAX_RATE": "1.5"},
		"duration": {"CHECKOUT_TIMEOUT": "soon"},
		"attempts": {"ORDER_NUMBER_ATTEMPTS": "0"},
		"number":   {"LEDGER_ATTEMPTS": "three"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := load(envMap(env))
			assert.Error(t, err)
		})
	}
}
