package handler

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/apoxy-dev/webserver/pkg/httpwire"
	"github.com/apoxy-dev/webserver/pkg/markdown"
)

const (
	nonMarkdownFileBody    = "400 Bad Request: Non-Markdown file requested"
	nonMarkdownContentBody = "400 Bad Request: Post received non-Markdown content"
	conversionFailedBody   = "500 Internal Server Error: Markdown conversion failed"
)

type markdownOptions struct {
	Root  string `param:"root"`
	Title string `param:"title"`
	Cache bool   `param:"cache"`
}

type markdownHandler struct {
	prefix string
	root   fsRoot
	title  string
	conv   markdown.Converter
	cache  *markdown.Cache // nil when disabled
}

// NewMarkdown returns a handler that renders the .md files under root as
// HTML pages. POSTing a text/markdown body renders it directly.
func NewMarkdown(prefix string, params Params) (Handler, error) {
	opts := markdownOptions{Title: markdown.DefaultTitle}
	if err := params.Decode(&opts); err != nil {
		return nil, err
	}
	return newMarkdownHandler(prefix, opts, markdown.NewConverter())
}

func newMarkdownHandler(prefix string, opts markdownOptions, conv markdown.Converter) (*markdownHandler, error) {
	root, err := newFSRoot(opts.Root)
	if err != nil {
		return nil, err
	}
	h := &markdownHandler{
		prefix: prefix,
		root:   root,
		title:  opts.Title,
		conv:   conv,
	}
	if opts.Cache {
		if h.cache, err = markdown.NewCache(); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *markdownHandler) Close() error {
	if h.cache == nil {
		return nil
	}
	return h.cache.Close()
}

func (h *markdownHandler) Handle(_ context.Context, req *httpwire.Request) (*httpwire.Response, error) {
	switch req.Method {
	case http.MethodGet, http.MethodHead:
		return h.serveFile(req)
	case http.MethodPost:
		return h.renderBody(req)
	default:
		return methodNotAllowed(), nil
	}
}

func (h *markdownHandler) serveFile(req *httpwire.Request) (*httpwire.Response, error) {
	name, err := h.root.resolve(remainder(h.prefix, req.Path()))
	if err != nil {
		return fileNotFound(), nil
	}
	fi, err := os.Stat(name)
	if err != nil || fi.IsDir() {
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return fileNotFound(), nil
		}
		return nil, err
	}
	if !strings.EqualFold(filepath.Ext(name), ".md") {
		return badRequest(nonMarkdownFileBody), nil
	}

	if h.cache != nil {
		if doc, ok := h.cache.Get(name, fi); ok {
			return htmlResponse(doc), nil
		}
	}
	src, err := os.ReadFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return fileNotFound(), nil
		}
		return nil, err
	}
	doc, err := markdown.Render(h.conv, h.title, src)
	if err != nil {
		slog.Error("markdown conversion failed", slog.String("file", name), slog.Any("error", err))
		return httpwire.Text(http.StatusInternalServerError, conversionFailedBody), nil
	}
	if h.cache != nil {
		h.cache.Put(name, fi, doc)
	}
	return htmlResponse(doc), nil
}

func (h *markdownHandler) renderBody(req *httpwire.Request) (*httpwire.Response, error) {
	mt, _, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if err != nil || mt != "text/markdown" {
		return badRequest(nonMarkdownContentBody), nil
	}
	doc, err := markdown.Render(h.conv, h.title, req.Body)
	if err != nil {
		slog.Error("markdown conversion failed", slog.Any("error", err))
		return httpwire.Text(http.StatusInternalServerError, conversionFailedBody), nil
	}
	return htmlResponse(doc), nil
}

func htmlResponse(doc []byte) *httpwire.Response {
	return httpwire.NewResponse(http.StatusOK, "text/html; charset=utf-8", doc)
}
