package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with sane defaults for the event-ingest
// surface. Events are small JSON bodies, so the timeouts are tight.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
