package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://x@localhost/x")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 3, cfg.LedgerMaxRetries)
	require.Equal(t, map[string]string{"KRW": "100"}, cfg.PriceRounding)
	require.Equal(t, 60, cfg.ExpiryWarningDays)
	require.Equal(t, "0 3 * * *", cfg.ExpiryScanCron)
	require.Equal(t, 10*time.Minute, cfg.FXCacheTTL)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(file, []byte("PRICE_ROUNDING=KRW:100,VND:1000\nLEDGER_MAX_RETRIES=5\n"), 0o600))
	t.Setenv("PRICE_ROUNDING", "")
	t.Setenv("LEDGER_MAX_RETRIES", "")
	os.Unsetenv("PRICE_ROUNDING")
	os.Unsetenv("LEDGER_MAX_RETRIES")

	cfg, err := LoadConfig(file)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"KRW": "100", "VND": "1000"}, cfg.PriceRounding)
	require.Equal(t, 5, cfg.LedgerMaxRetries)
}

func TestLoadConfigRejectsBadRetries(t *testing.T) {
	t.Setenv("LEDGER_MAX_RETRIES", "0")
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}
