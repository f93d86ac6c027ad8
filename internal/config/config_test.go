package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, "/v1", cfg.Server.BasePath)
	ttl, err := cfg.TokenTTL()
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, ttl)
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestFromYAMLOverlaysDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("calendar:\n  timezone: Europe/Berlin\nreminders:\n  enabled: true\n  digest_at: \"07:30\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", cfg.Calendar.Timezone)
	assert.Equal(t, "07:30", cfg.Reminders.DigestAt)
	assert.Equal(t, "00:05", cfg.Reminders.RolloverAt)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"bad ttl":       "auth:\n  token_ttl: forever\n",
		"negative ttl":  "auth:\n  token_ttl: -1h\n",
		"bad zone":      "calendar:\n  timezone: Mars/Olympus\n",
		"bad clock":     "reminders:\n  enabled: true\n  digest_at: \"25:00\"\n",
		"bad base path": "server:\n  base_path: v1\n",
		"bad level":     "logging:\n  level: loud\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(dir)
	assert.ErrorContains(t, err, "not found")

	require.NoError(t, os.WriteFile(Path(dir), []byte("server:\n  addr: 0.0.0.0:9000\n"), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
}
