package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const defaultShutdownGrace = 10 * time.Second

// ServeOptions configures Serve.
type ServeOptions struct {
	TLSCert       string
	TLSKey        string
	ShutdownGrace time.Duration
	Logger        zerolog.Logger
}

// Serve runs handler on ln until ctx is cancelled, then drains in-flight
// requests for at most ShutdownGrace before closing the remaining
// connections. TLS is used when both cert and key are set.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler, opts ServeOptions) error {
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = defaultShutdownGrace
	}
	if (opts.TLSCert == "") != (opts.TLSKey == "") {
		return errors.New("tls cert and key must be set together")
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if opts.TLSCert != "" {
			opts.Logger.Info().Str("addr", ln.Addr().String()).Msg("serving https")
			err = srv.ServeTLS(ln, opts.TLSCert, opts.TLSKey)
		} else {
			opts.Logger.Info().Str("addr", ln.Addr().String()).Msg("serving http")
			err = srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		opts.Logger.Error().Err(err).Msg("shutdown grace expired, closing connections")
		_ = srv.Close()
		<-errCh
		return err
	}
	return <-errCh
}
