package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ejjahanieklu/ehn/internal/app"
)

func TestReadConfig_Defaults(t *testing.T) {
	cfg, showVersion, err := readConfig(nil, io.Discard)
	require.NoError(t, err)
	assert.False(t, showVersion)
	assert.Equal(t, app.DefaultConfig(), cfg)
}

func TestReadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ehn.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: \":4100\"\nnotify:\n  buffer: 64\n"), 0o600))
	t.Setenv("EHN_NOTIFY_BUFFER", "8")

	cfg, _, err := readConfig([]string{"--config", path}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, ":4100", cfg.HTTPAddr)
	assert.Equal(t, 8, cfg.NotifyBuffer)
}

func TestReadConfig_Version(t *testing.T) {
	_, showVersion, err := readConfig([]string{"-version"}, io.Discard)
	require.NoError(t, err)
	assert.True(t, showVersion)
}

func TestReadConfig_Errors(t *testing.T) {
	_, _, err := readConfig([]string{"--unknown"}, io.Discard)
	require.Error(t, err)

	_, _, err = readConfig([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")}, io.Discard)
	require.ErrorContains(t, err, "read config")
}

func TestSetupLogger(t *testing.T) {
	original := log.GetLevel()
	t.Cleanup(func() { log.SetLevel(original) })

	setupLogger("debug")
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	setupLogger("nonsense")
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}
