package handler

import (
	"errors"
	"fmt"
	"sort"
)

// Tags of the built-in handlers, as written in config files.
const (
	EchoHandlerName     = "EchoHandler"
	StaticHandlerName   = "StaticHandler"
	CrudApiHandlerName  = "CrudApiHandler"
	MarkdownHandlerName = "MarkdownHandler"
	HealthHandlerName   = "HealthHandler"
	NotFoundHandlerName = "NotFoundHandler"
	SleepHandlerName    = "SleepHandler"
)

// ErrUnknownHandler is returned by Create for tags nothing was registered under.
var ErrUnknownHandler = errors.New("unknown handler")

// Factory builds a handler for the route mounted at prefix. It runs once at
// startup.
type Factory func(prefix string, params Params) (Handler, error)

// Registry maps handler tags to factories. It is populated before the server
// starts and only read afterwards.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// NewDefaultRegistry returns a registry holding every built-in handler.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for name, f := range map[string]Factory{
		EchoHandlerName:     NewEcho,
		StaticHandlerName:   NewStatic,
		CrudApiHandlerName:  NewCrudApi,
		MarkdownHandlerName: NewMarkdown,
		HealthHandlerName:   NewHealth,
		NotFoundHandlerName: NewNotFound,
		SleepHandlerName:    NewSleep,
	} {
		// Names are distinct so this cannot fail.
		_ = r.Register(name, f)
	}
	return r
}

// Register adds a factory under name. Registering a name twice is an error.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return errors.New("handler name must not be empty")
	}
	if f == nil {
		return fmt.Errorf("nil factory for handler %q", name)
	}
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("handler %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// Create builds the handler registered under name for the given route.
func (r *Registry) Create(name, prefix string, params Params) (Handler, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHandler, name)
	}
	if params == nil {
		params = Params{}
	}
	h, err := f(prefix, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s for %s: %w", name, prefix, err)
	}
	return h, nil
}

// Has reports whether a factory is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered tags, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
