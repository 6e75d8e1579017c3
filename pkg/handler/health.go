package handler

import (
	"context"
	"net/http"

	"github.com/apoxy-dev/webserver/pkg/httpwire"
)

// NewHealth returns a liveness handler that always answers 200 "OK".
func NewHealth(_ string, params Params) (Handler, error) {
	if err := params.Decode(&struct{}{}); err != nil {
		return nil, err
	}
	return HandlerFunc(func(context.Context, *httpwire.Request) (*httpwire.Response, error) {
		return httpwire.Text(http.StatusOK, "OK"), nil
	}), nil
}

// NewNotFound returns a handler that answers every request with the generic
// 404, for carving holes out of a broader route.
func NewNotFound(_ string, params Params) (Handler, error) {
	if err := params.Decode(&struct{}{}); err != nil {
		return nil, err
	}
	return HandlerFunc(func(context.Context, *httpwire.Request) (*httpwire.Response, error) {
		return httpwire.NotFound(), nil
	}), nil
}
