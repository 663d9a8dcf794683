package server

import (
	"net/http"
	"time"

	"github.com/wb-go/wbf/ginext"
)

// Timeouts bounds how long the server waits on slow clients. Zero
// values fall back to defaults sized for a small JSON API.
type Timeouts struct {
	Read       time.Duration
	ReadHeader time.Duration
	Write      time.Duration
	Idle       time.Duration
}

const (
	defaultReadTimeout       = 5 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultWriteTimeout      = 10 * time.Second
	defaultIdleTimeout       = 120 * time.Second
)

func New(addr string, router *ginext.Engine, t Timeouts) *http.Server {
	if t.Read <= 0 {
		t.Read = defaultReadTimeout
	}
	if t.ReadHeader <= 0 {
		t.ReadHeader = defaultReadHeaderTimeout
	}
	if t.Write <= 0 {
		t.Write = defaultWriteTimeout
	}
	if t.Idle <= 0 {
		t.Idle = defaultIdleTimeout
	}

	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       t.Read,
		ReadHeaderTimeout: t.ReadHeader,
		WriteTimeout:      t.Write,
		IdleTimeout:       t.Idle,
	}
}
