package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	SiteUrl  string `json:"site_url"`
	Username string `json:"username"`
	DelayMs  int    `json:"delay_ms"`
}

func TestReadConfigMergesLocalOverride(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "config.json5")

	err := os.WriteFile(base, []byte(`{
		// checked in defaults
		site_url: "https://www.example.org/",
		delay_ms: 2000,
	}`), 0o644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		username: "jo",
		delay_ms: 500,
	}`), 0o644)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](base)
	require.NoError(t, err)
	require.Equal(t, "https://www.example.org/", cfg.SiteUrl)
	require.Equal(t, "jo", cfg.Username)
	require.Equal(t, 500, cfg.DelayMs)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
