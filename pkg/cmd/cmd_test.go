package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apoxy-dev/webserver/build"
	"github.com/apoxy-dev/webserver/config"
	"github.com/apoxy-dev/webserver/pkg/handler"
)

func testConfig(t *testing.T) *config.Config {
	cfg, err := config.Parse("test.conf", []byte(`
port 0;
location /echo EchoHandler {}
location /static/ StaticHandler { root `+t.TempDir()+`; }
location / NotFoundHandler {}
`))
	require.NoError(t, err)
	return cfg
}

func TestPrintRoutes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRoutes(&buf, testConfig(t), handler.NewDefaultRegistry()))

	out := buf.String()
	assert.Contains(t, out, "PREFIX")
	assert.Contains(t, out, "EchoHandler")
	assert.Contains(t, out, "/static ")
	assert.Contains(t, out, "root=")
	assert.Equal(t, 4, strings.Count(strings.TrimSpace(out), "\n")+1)
}

func TestPrintRoutesUnknownHandler(t *testing.T) {
	cfg := testConfig(t)
	cfg.Servers[0].Routes = append(cfg.Servers[0].Routes, config.Route{Prefix: "/x", Handler: "ProxyHandler"})

	var buf bytes.Buffer
	err := printRoutes(&buf, cfg, handler.NewDefaultRegistry())
	assert.ErrorIs(t, err, handler.ErrUnknownHandler)
	assert.Contains(t, buf.String(), "ProxyHandler (unknown)")
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, testConfig(t), handler.NewDefaultRegistry()) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return")
	}
}

func TestServeBadRoute(t *testing.T) {
	cfg := testConfig(t)
	cfg.Servers[0].Routes = append(cfg.Servers[0].Routes, config.Route{Prefix: "/x", Handler: "ProxyHandler"})
	err := serve(context.Background(), cfg, handler.NewDefaultRegistry())
	assert.ErrorIs(t, err, handler.ErrUnknownHandler)
}

func TestCommands(t *testing.T) {
	conf := filepath.Join(t.TempDir(), "webserver.conf")
	require.NoError(t, os.WriteFile(conf, []byte("port 8080;\nlocation /health HealthHandler {}\n"), 0o644))
	t.Cleanup(func() { config.ConfigFile = "" })

	for _, tt := range []struct {
		args []string
		want string
	}{
		{[]string{"version"}, build.Version()},
		{[]string{"routes", conf}, "HealthHandler"},
	} {
		var buf bytes.Buffer
		rootCmd.SetOut(&buf)
		rootCmd.SetArgs(tt.args)
		require.NoError(t, rootCmd.ExecuteContext(context.Background()), tt.args)
		assert.Contains(t, buf.String(), tt.want)
	}
}

func TestGenerateDocs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, GenerateDocs(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	b, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(b), "webserver serve")
}
