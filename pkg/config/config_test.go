package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mpd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadParsesLinksAndDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
daemon:
  secrets-file: /etc/mpd.secrets
links:
  ppp0:
    max-logins: 1
    authname: router
    timeout: 30s
    enable-system: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/etc/mpd.secrets", cfg.Daemon.SecretsFilePath)
	assert.Equal(t, int64(64), cfg.Daemon.WorkerPoolSize)

	link, ok := cfg.Links["ppp0"]
	require.True(t, ok)
	assert.Equal(t, 1, link.MaxLogins)
	assert.Equal(t, "router", link.Authname)
	assert.Equal(t, 30*time.Second, link.Timeout)
	assert.True(t, link.EnableSystem)
}

func TestLoadRejectsTimeoutAtOrBelow20Seconds(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
links:
  ppp0:
    timeout: 20s
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTimeout)
}

func TestLoadMissingFileErrors(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestToLinkConfigCopiesFields(t *testing.T) {
	t.Parallel()

	opts := LinkOptions{Authname: "router", MaxLogins: 2, Timeout: 30 * time.Second, EnableOPIE: true}
	lc := opts.ToLinkConfig()

	assert.Equal(t, "router", lc.Authname)
	assert.Equal(t, 2, lc.MaxLogins)
	assert.Equal(t, 30*time.Second, lc.Timeout)
	assert.True(t, lc.EnableOPIE)
}
