// Package server hosts the long-lived HTTP side of the bot: the OAuth2
// authorization callback that completes a /login started in chat.
//
// The callback is multi-user. Each login prompt mints a state token bound
// to the requesting chat user; the callback claims the token to learn which
// user just authorized, exchanges the code and persists the credential.
package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Middleware wraps an http.Handler and returns a new http.Handler with
// additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an http.Handler that knows which path patterns it serves.
type Handler interface {
	http.Handler
	Routes() []string
}

// Router registers handlers and middleware and serves as the root
// http.Handler.
type Router interface {
	Use(middleware ...Middleware)
	Handle(method, path string, handler http.Handler)
	Handler(handler Handler)
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// RequestLogger logs every request with method, path, status and duration.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
