package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/apoxy-dev/webserver/pkg/httpwire"
	"github.com/apoxy-dev/webserver/pkg/store"
)

const (
	invalidJSONBody    = "400 Bad Request: Invalid JSON in request body"
	missingEntityBody  = "400 Bad Request: Missing entity type in URL"
	invalidURLBody     = "400 Bad Request: Invalid URL format"
	invalidIDBody      = "400 Bad Request: Invalid URL format for ID"
	idDoesNotExistBody = "400 Bad Request: ID does not exist"
)

type crudOptions struct {
	Root    string `param:"root"`
	Backend string `param:"backend"`
}

type crudHandler struct {
	prefix string
	store  store.Store
}

type idResponse struct {
	ID uint64 `json:"id"`
}

// NewCrudApi returns a JSON entity API mounted at prefix:
//
//	POST   {prefix}/{resource}       create, answers {"id":N}
//	GET    {prefix}/{resource}       list ids
//	GET    {prefix}/{resource}/{id}  fetch
//	PUT    {prefix}/{resource}/{id}  create or replace
//	DELETE {prefix}/{resource}/{id}  remove
//
// Entities live in the store selected by the backend param ("fs" or
// "badger") under root.
func NewCrudApi(prefix string, params Params) (Handler, error) {
	var opts crudOptions
	if err := params.Decode(&opts); err != nil {
		return nil, err
	}
	if opts.Root == "" {
		return nil, errors.New("root is required")
	}
	s, err := store.Open(opts.Backend, opts.Root)
	if err != nil {
		return nil, err
	}
	return NewCrudApiWithStore(prefix, s), nil
}

// NewCrudApiWithStore returns the CRUD handler backed by s. The handler owns
// s and closes it on Close.
func NewCrudApiWithStore(prefix string, s store.Store) Handler {
	return &crudHandler{prefix: prefix, store: s}
}

func (h *crudHandler) Close() error {
	return h.store.Close()
}

func (h *crudHandler) Handle(ctx context.Context, req *httpwire.Request) (*httpwire.Response, error) {
	rest := strings.TrimSuffix(remainder(h.prefix, req.Path()), "/")
	if rest == "" {
		return badRequest(missingEntityBody), nil
	}
	parts := strings.Split(rest, "/")
	if len(parts) > 2 || store.ValidateName(parts[0]) != nil {
		return badRequest(invalidURLBody), nil
	}
	resource := parts[0]

	var (
		id    uint64
		hasID = len(parts) == 2
	)
	if hasID {
		var err error
		if id, err = parseID(parts[1]); err != nil {
			return badRequest(invalidIDBody), nil
		}
	}

	switch req.Method {
	case http.MethodPost:
		if hasID {
			return badRequest(invalidURLBody), nil
		}
		return h.create(ctx, resource, req.Body)
	case http.MethodGet:
		if !hasID {
			return h.list(ctx, resource)
		}
		return h.get(ctx, resource, id)
	case http.MethodPut:
		if !hasID {
			return badRequest(invalidIDBody), nil
		}
		return h.put(ctx, resource, id, req.Body)
	case http.MethodDelete:
		if !hasID {
			return badRequest(invalidIDBody), nil
		}
		return h.delete(ctx, resource, id)
	default:
		return methodNotAllowed(), nil
	}
}

func (h *crudHandler) create(ctx context.Context, resource string, body []byte) (*httpwire.Response, error) {
	if !json.Valid(body) {
		return badRequest(invalidJSONBody), nil
	}
	id, err := h.store.Create(ctx, resource, body)
	if err != nil {
		return nil, err
	}
	return idJSON(id)
}

func (h *crudHandler) list(ctx context.Context, resource string) (*httpwire.Response, error) {
	ids, err := h.store.List(ctx, resource)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	return httpwire.NewResponse(http.StatusOK, "application/json", b), nil
}

func (h *crudHandler) get(ctx context.Context, resource string, id uint64) (*httpwire.Response, error) {
	data, err := h.store.Get(ctx, resource, id)
	if errors.Is(err, store.ErrNotFound) {
		return badRequest(idDoesNotExistBody), nil
	} else if err != nil {
		return nil, err
	}
	return httpwire.NewResponse(http.StatusOK, "application/json", data), nil
}

func (h *crudHandler) put(ctx context.Context, resource string, id uint64, body []byte) (*httpwire.Response, error) {
	if !json.Valid(body) {
		return badRequest(invalidJSONBody), nil
	}
	if err := h.store.Put(ctx, resource, id, body); err != nil {
		return nil, err
	}
	return idJSON(id)
}

func (h *crudHandler) delete(ctx context.Context, resource string, id uint64) (*httpwire.Response, error) {
	err := h.store.Delete(ctx, resource, id)
	if errors.Is(err, store.ErrNotFound) {
		return badRequest(idDoesNotExistBody), nil
	} else if err != nil {
		return nil, err
	}
	return idJSON(id)
}

// parseID accepts positive decimal ids only.
func parseID(s string) (uint64, error) {
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return 0, strconv.ErrSyntax
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, strconv.ErrRange
	}
	return id, nil
}

func idJSON(id uint64) (*httpwire.Response, error) {
	b, err := json.Marshal(idResponse{ID: id})
	if err != nil {
		return nil, err
	}
	return httpwire.NewResponse(http.StatusOK, "application/json", b), nil
}

func badRequest(body string) *httpwire.Response {
	return httpwire.Text(http.StatusBadRequest, body)
}
