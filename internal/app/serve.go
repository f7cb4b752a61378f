package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	api "github.com/paulexconde/surveyrun/internal/api/http"
)

const shutdownTimeout = 10 * time.Second

// Handler is the HTTP API over the app's services.
func (a *App) Handler() http.Handler {
	return api.NewRouter(api.Deps{
		Surveys:        a.Surveys,
		Responses:      a.Responses,
		Logger:         a.logger,
		CORSOrigins:    a.cfg.CORSOrigins,
		MaxUploadBytes: a.cfg.MaxUploadBytes,
		PageSize:       a.cfg.PageSize,
	})
}

// Serve listens on addr until ctx ends, then drains open requests.
func (a *App) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		addr = a.cfg.HTTPAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server starting", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
