// Package app wires configuration, storage and services together and runs
// the surveyctl commands on top of them.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/paulexconde/surveyrun/internal/config"
	"github.com/paulexconde/surveyrun/internal/definition"
	"github.com/paulexconde/surveyrun/internal/logging"
	"github.com/paulexconde/surveyrun/internal/logic"
	"github.com/paulexconde/surveyrun/internal/models"
	"github.com/paulexconde/surveyrun/internal/repository"
	"github.com/paulexconde/surveyrun/internal/repository/memory"
	"github.com/paulexconde/surveyrun/internal/repository/sqlrepo"
	"github.com/paulexconde/surveyrun/internal/services"
)

// App owns the repository and the services built on it.
type App struct {
	cfg    config.Config
	logger *slog.Logger
	outW   io.Writer

	release func() error

	Surveys   services.SurveyService
	Responses services.SurveyResponseService
}

// New opens the configured repository. Close releases it.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, outW io.Writer) (*App, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	var (
		repo    repository.Repository
		release = func() error { return nil }
	)
	switch cfg.DBDriver {
	case config.DriverMemory:
		repo = memory.New()
	default:
		r, err := sqlrepo.Open(ctx, cfg.DBDriver, cfg.DBDSN, logger)
		if err != nil {
			return nil, err
		}
		repo, release = r, r.Close
	}
	logger.Debug("repository opened", "driver", cfg.DBDriver)

	engine, err := logic.NewEngine(logger)
	if err != nil {
		release()
		return nil, fmt.Errorf("failed to build logic engine: %w", err)
	}

	opts := []services.Option{services.WithLogger(logger), services.WithMaxUploadBytes(cfg.MaxUploadBytes)}
	recorder := services.NewAnswerRecorder(repo, opts...)
	return &App{
		cfg:       cfg,
		logger:    logger,
		outW:      outW,
		release:   release,
		Surveys:   services.NewSurveyService(repo, opts...),
		Responses: services.NewSurveyResponseService(repo, recorder, engine, opts...),
	}, nil
}

func (a *App) Close() error {
	return a.release()
}

// LoadDefinitions creates the surveys of every file, in order.
func (a *App) LoadDefinitions(ctx context.Context, paths ...string) ([]*models.Survey, error) {
	loader := definition.NewLoader(a.Surveys, a.logger)
	var out []*models.Survey
	for _, path := range paths {
		f, err := definition.ParseFile(path)
		if err != nil {
			return out, err
		}
		loaded, err := loader.Load(ctx, f)
		out = append(out, loaded...)
		if err != nil {
			return out, fmt.Errorf("%s: %w", path, err)
		}
	}
	return out, nil
}

// Load is the load command: it prints one line per created survey.
func (a *App) Load(ctx context.Context, paths ...string) error {
	loaded, err := a.LoadDefinitions(ctx, paths...)
	for _, s := range loaded {
		state := "draft"
		if s.Published {
			state = "published"
		}
		fmt.Fprintf(a.outW, "%s\t%s\t%s\n", s.ID, state, s.Name)
	}
	return err
}
