// Package httpapi is the HTTP transport of the punishment ledger server.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dotkom/vengeful/internal/logging"
)

// Server runs the HTTP endpoint and shuts it down gracefully when the
// context is cancelled.
type Server struct {
	addr    string
	handler http.Handler
	logger  logging.Logger
}

func NewServer(addr string, handler http.Handler, logger logging.Logger) *Server {
	return &Server{
		addr:    addr,
		handler: handler,
		logger:  logger.With("module", "httpserver"),
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.handler,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "shutting down http server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "http server shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "starting http server", "addr", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
