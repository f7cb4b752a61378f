package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Database drivers. Memory keeps everything in process.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)

type Config struct {
	HTTPAddr string

	DBDriver string // memory|sqlite|postgres|pgx
	DBDSN    string

	LogLevel  string // debug|info|warn|error
	LogFormat string // json|text
	LogFile   string // rotated with lumberjack when set
	LogSource bool

	MaxUploadBytes int64
	CORSOrigins    []string

	ReplayWorkers int
	PageSize      int
}

// Load reads an optional .env file and then the environment. Variables
// already set win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	cfg := FromEnv()
	return cfg, cfg.Validate()
}

func FromEnv() Config {
	return Config{
		HTTPAddr:       envOr("HTTP_ADDR", ":8080"),
		DBDriver:       envOr("DB_DRIVER", DriverMemory),
		DBDSN:          envOr("DB_DSN", ""),
		LogLevel:       strings.ToLower(envOr("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(envOr("LOG_FORMAT", "json")),
		LogFile:        envOr("LOG_FILE", ""),
		LogSource:      envBool("LOG_SOURCE", false),
		MaxUploadBytes: int64(envInt("MAX_UPLOAD_BYTES", 10<<20)),
		CORSOrigins:    csvOr("CORS_ORIGINS", "*"),
		ReplayWorkers:  envInt("REPLAY_WORKERS", 4),
		PageSize:       envInt("PAGE_SIZE", 20),
	}
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres, DriverPgx:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required for driver %q", c.DBDriver)
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported LOG_FORMAT %q", c.LogFormat)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.ReplayWorkers <= 0 || c.PageSize <= 0 {
		return fmt.Errorf("REPLAY_WORKERS and PAGE_SIZE must be positive")
	}
	return nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envInt(k string, def int) int {
	n, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return n
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
