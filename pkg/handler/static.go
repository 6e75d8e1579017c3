package handler

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"

	"github.com/apoxy-dev/webserver/pkg/httpwire"
)

type staticOptions struct {
	Root        string `param:"root"`
	Index       string `param:"index"`
	DefaultType string `param:"default_type"`
}

type staticHandler struct {
	prefix      string
	root        fsRoot
	index       string
	defaultType string
}

// NewStatic returns a handler serving files below the root param. The request
// path minus the route prefix names the file.
func NewStatic(prefix string, params Params) (Handler, error) {
	opts := staticOptions{
		Index:       "index.html",
		DefaultType: "application/octet-stream",
	}
	if err := params.Decode(&opts); err != nil {
		return nil, err
	}
	root, err := newFSRoot(opts.Root)
	if err != nil {
		return nil, err
	}
	return &staticHandler{
		prefix:      prefix,
		root:        root,
		index:       opts.Index,
		defaultType: opts.DefaultType,
	}, nil
}

func (h *staticHandler) Handle(_ context.Context, req *httpwire.Request) (*httpwire.Response, error) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return methodNotAllowed(), nil
	}

	name, err := h.root.resolve(remainder(h.prefix, req.Path()))
	if err != nil {
		return fileNotFound(), nil
	}
	fi, err := os.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fileNotFound(), nil
		}
		return nil, err
	}
	if fi.IsDir() {
		if h.index == "" {
			return fileNotFound(), nil
		}
		rel, err := h.root.rel(name)
		if err != nil {
			return fileNotFound(), nil
		}
		if name, err = h.root.join(path.Join(rel, h.index)); err != nil {
			return fileNotFound(), nil
		}
	}

	data, err := os.ReadFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return fileNotFound(), nil
		}
		return nil, err
	}
	return httpwire.NewResponse(http.StatusOK, contentType(name, h.defaultType), data), nil
}

func fileNotFound() *httpwire.Response {
	return httpwire.Text(http.StatusNotFound, FileNotFoundBody)
}
