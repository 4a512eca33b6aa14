package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with sane defaults. The write timeout leaves room
// for the bounded webhook-complete wait, which can hold a request open for up
// to its caller-supplied deadline.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      45 * time.Second,
	}
}
