package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/apoxy-dev/webserver/pkg/httpwire"
)

type sleepOptions struct {
	// Seconds to hold the worker for.
	SleepDuration int `param:"sleep_duration"`
}

type sleepHandler struct {
	seconds int
}

// NewSleep returns a handler that holds its worker for sleep_duration seconds
// (default 5) before answering. Useful for observing pool behavior.
func NewSleep(_ string, params Params) (Handler, error) {
	opts := sleepOptions{SleepDuration: 5}
	if err := params.Decode(&opts); err != nil {
		return nil, err
	}
	if opts.SleepDuration < 0 {
		return nil, fmt.Errorf("sleep_duration must not be negative, got %d", opts.SleepDuration)
	}
	return &sleepHandler{seconds: opts.SleepDuration}, nil
}

func (h *sleepHandler) Handle(ctx context.Context, _ *httpwire.Request) (*httpwire.Response, error) {
	t := time.NewTimer(time.Duration(h.seconds) * time.Second)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return httpwire.Text(http.StatusOK, fmt.Sprintf("Slept for %d seconds", h.seconds)), nil
}
