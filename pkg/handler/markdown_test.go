package handler_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apoxy-dev/webserver/pkg/handler"
)

func TestMarkdown(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "readme.md"), "# Hello\n")
	writeFile(t, filepath.Join(root, "notes.txt"), "plain")

	h, err := handler.NewMarkdown("/md", handler.Params{"root": root})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), get(t, "/md/readme.md"))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.ContentType)
	assert.Contains(t, string(resp.Body), "<h1>Hello</h1>")
	assert.Contains(t, string(resp.Body), "<title>Markdown Render</title>")

	resp, err = h.Handle(context.Background(), get(t, "/md/notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "400 Bad Request: Non-Markdown file requested", string(resp.Body))

	resp, err = h.Handle(context.Background(), get(t, "/md/missing.md"))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, handler.FileNotFoundBody, string(resp.Body))

	resp, err = h.Handle(context.Background(), get(t, "/md/../../etc/passwd.md"))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)

	resp, err = h.Handle(context.Background(), parse(t, "DELETE /md/readme.md HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, 405, resp.StatusCode)
}

func TestMarkdownPost(t *testing.T) {
	h, err := handler.NewMarkdown("/md", handler.Params{"root": t.TempDir(), "title": "Preview"})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), parse(t,
		"POST /md HTTP/1.1\r\nContent-Type: text/markdown; charset=utf-8\r\nContent-Length: 6\r\n\r\n*hi*\n\n"))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "<p><em>hi</em></p>")
	assert.Contains(t, string(resp.Body), "<title>Preview</title>")

	resp, err = h.Handle(context.Background(), parse(t,
		"POST /md HTTP/1.1\r\nContent-Type: application/json\r\nContent-Length: 2\r\n\r\n{}"))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "400 Bad Request: Post received non-Markdown content", string(resp.Body))
}

func TestMarkdownCache(t *testing.T) {
	root := t.TempDir()
	name := filepath.Join(root, "page.md")
	writeFile(t, name, "# One\n")

	h, err := handler.NewMarkdown("/", handler.Params{"root": root, "cache": "true"})
	require.NoError(t, err)
	defer h.(interface{ Close() error }).Close()

	resp, err := h.Handle(context.Background(), get(t, "/page.md"))
	require.NoError(t, err)
	assert.Contains(t, string(resp.Body), "<h1>One</h1>")

	writeFile(t, name, "# Two, edited\n")
	require.Eventually(t, func() bool {
		resp, err := h.Handle(context.Background(), get(t, "/page.md"))
		return err == nil && strings.Contains(string(resp.Body), "<h1>Two, edited</h1>")
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(name))
	resp, err = h.Handle(context.Background(), get(t, "/page.md"))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}
