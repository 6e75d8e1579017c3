package handler

import (
	"context"
	"net/http"

	"github.com/apoxy-dev/webserver/pkg/httpwire"
)

type echoHandler struct{}

// NewEcho returns a handler that answers with the request exactly as it was
// received. It takes no params.
func NewEcho(_ string, params Params) (Handler, error) {
	if err := params.Decode(&struct{}{}); err != nil {
		return nil, err
	}
	return echoHandler{}, nil
}

func (echoHandler) Handle(_ context.Context, req *httpwire.Request) (*httpwire.Response, error) {
	return httpwire.NewResponse(http.StatusOK, "text/plain", req.Raw), nil
}
