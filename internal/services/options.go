package services

import (
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Clock returns the current instant. Publication and completion times come
// from it.
type Clock func() time.Time

type config struct {
	logger    *slog.Logger
	clock     Clock
	newID     func() string
	maxUpload int64
}

// Option configures a service.
type Option func(*config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithClock(clock Clock) Option {
	return func(c *config) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithIDs replaces the uuid generator, mostly for tests.
func WithIDs(newID func() string) Option {
	return func(c *config) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// WithMaxUploadBytes caps the size of a File Upload answer.
func WithMaxUploadBytes(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxUpload = n
		}
	}
}

const defaultMaxUpload = 10 << 20

func newConfig(opts []Option) config {
	c := config{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:     time.Now,
		newID:     uuid.NewString,
		maxUpload: defaultMaxUpload,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
