package log_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apoxy-dev/webserver/pkg/log"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf, log.InfoLevel)
	t.Cleanup(log.Disable)

	log.Debugf("hidden %d", 1)
	log.Infof("shown %d", 2)
	log.Warnf("warned %s", "x")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "warned x")
	// Source points at this file, not the log package.
	assert.Contains(t, out, "logger_test.go")
}

func TestInitWithLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	require.NoError(t, log.Init(log.WithLogFile(path), log.WithJSON(), log.WithLevel(log.DebugLevel)))
	t.Cleanup(log.Disable)

	log.Debugf("to the file")
	var badger log.BadgerLogger
	badger.Infof("compaction done\n")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"to the file"`)
	assert.Contains(t, string(b), `[badger] compaction done`)
}
