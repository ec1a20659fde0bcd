package main

import (
	"context"
	"io"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ejjahanieklu/ehn/internal/app"
)

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return log.NewEntry(logger)
}

func TestParseOptions(t *testing.T) {
	opts, err := parseOptions([]string{"-config=/tmp/ehn.yaml", "-batch-size=50"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, options{configFile: "/tmp/ehn.yaml", batchSize: 50}, opts)

	_, err = parseOptions([]string{"-batch-size=-1"}, io.Discard)
	require.ErrorContains(t, err, "batch-size")

	_, err = parseOptions([]string{"-dry"}, io.Discard)
	require.Error(t, err)
}

func TestRun_MemoryStore(t *testing.T) {
	pruned, err := run(context.Background(), app.DefaultConfig(), quietLogger())
	require.NoError(t, err)
	assert.Zero(t, pruned)
}

func TestRun_UnsupportedDriver(t *testing.T) {
	cfg := app.DefaultConfig()
	cfg.StorageDriver = "sqlite"

	_, err := run(context.Background(), cfg, quietLogger())
	require.ErrorContains(t, err, "unsupported storage driver")
}
