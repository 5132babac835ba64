package router

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
)

var DefaultError = JsonError{
	Code: http.StatusInternalServerError,
	Err:  "internal server error",
}

// Router is a wrapper around chi.Router that provides error handling.
// Handlers can return an error that will then get mapped to an error response.
// Error mappers can be registered for sentinel errors to provide custom error responses.
type Router struct {
	chi.Router
	errors *errorMappers
	logger *slog.Logger
}

type errorMappers struct {
	targets      []errorMapping
	defaultError JsonError
}

type errorMapping struct {
	target error
	fn     ErrorMapper
}

func New(opts ...RouterOption) *Router {
	router := &Router{
		Router: chi.NewRouter(),
		errors: &errorMappers{defaultError: DefaultError},
		logger: slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}

	for _, opt := range opts {
		opt(router)
	}
	return router
}

type RouterOption func(*Router)

func WithLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

func WithDefaultError(err JsonError) RouterOption {
	return func(r *Router) {
		r.errors.defaultError = err
	}
}

// derive returns a router over ch sharing the error mappers and logger of a.
func (a *Router) derive(ch chi.Router) *Router {
	return &Router{Router: ch, errors: a.errors, logger: a.logger}
}

// HandlerFunc is a function that handles an HTTP request and returns an error.
// When the handler fails to handle the request it should not write anything to the response writer,
// instead it should return an error that will be mapped to an error response.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

type Middleware func(http.Handler) HandlerFunc

// RegisterErrorMapper maps every error matching target through errors.Is with fn.
// Mappers are tried in registration order.
func (a *Router) RegisterErrorMapper(target error, fn ErrorMapper) {
	a.errors.targets = append(a.errors.targets, errorMapping{target: target, fn: fn})
}

// mapError maps a go error to an API error.
// The mapping works as following:
//   - if the error is or wraps a JsonError it is returned as is.
//   - otherwise the first error mapper whose target matches is used.
//   - if no error mapper matches the default error is returned.
func (a *Router) mapError(err error) JsonError {
	var apiErr JsonError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	for _, m := range a.errors.targets {
		if errors.Is(err, m.target) {
			return m.fn(err)
		}
	}
	return a.errors.defaultError
}

func (a *Router) handleWithErr(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}
		resError := a.mapError(err)
		if resError.Code >= http.StatusInternalServerError {
			a.logger.Error(err.Error(), slog.String("method", r.Method), slog.String("path", r.URL.Path))
		} else {
			a.logger.Debug(err.Error(), slog.String("method", r.Method), slog.String("path", r.URL.Path))
		}
		WriteJSON(w, resError.StatusCode(), resError)
	}
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

func (a *Router) Get(path string, h HandlerFunc) {
	a.Router.Get(path, a.handleWithErr(h))
}

func (a *Router) Post(path string, h HandlerFunc) {
	a.Router.Post(path, a.handleWithErr(h))
}

func (a *Router) Put(path string, h HandlerFunc) {
	a.Router.Put(path, a.handleWithErr(h))
}

func (a *Router) Delete(path string, h HandlerFunc) {
	a.Router.Delete(path, a.handleWithErr(h))
}

func (a *Router) Route(path string, f func(r *Router)) {
	a.Router.Route(path, func(r chi.Router) {
		f(a.derive(r))
	})
}

func (a *Router) Group(f func(r *Router)) *Router {
	ch := a.Router.Group(func(r chi.Router) {
		f(a.derive(r))
	})
	return a.derive(ch)
}

func (a *Router) Use(middleware Middleware) {
	a.Router.Use(func(h http.Handler) http.Handler {
		return a.handleWithErr(middleware(h))
	})
}

func (a *Router) With(middleware Middleware) *Router {
	ch := a.Router.With(func(h http.Handler) http.Handler {
		return a.handleWithErr(middleware(h))
	})
	return a.derive(ch)
}
