// Package sqlitedb opens the embedded on-device database used as the default
// task store.
package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jrazmi/todolist/sdk/environment"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

type DB = sql.DB

// Options represents the exportable database configuration
type Options struct {
	Path        string        `env:"SQLITE_PATH" default:"data/todolist.db"`
	BusyTimeout time.Duration `env:"SQLITE_BUSY_TIMEOUT" default:"5s"`
	JournalMode string        `env:"SQLITE_JOURNAL_MODE" default:"WAL"`
	Migrate     bool          `env:"SQLITE_MIGRATE" default:"true"`
}

type options struct {
	path        string
	busyTimeout time.Duration
	journalMode string
	migrate     bool
	logger      *slog.Logger
}

// Option is a function that configures the database options
type Option func(*options)

// WithPath overrides the database file path.
func WithPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// WithLogger sets the logger used while migrating.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMigrate enables or disables running migrations on open.
func WithMigrate(enable bool) Option {
	return func(o *options) {
		o.migrate = enable
	}
}

// NewFromEnv opens the database configured through environment variables.
func NewFromEnv(ctx context.Context, prefix string, opts ...Option) (*DB, error) {
	var cfg Options
	if err := environment.ParseEnvTags(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing sqlite config: %w", err)
	}
	return Open(ctx, cfg, opts...)
}

// NewTestDB opens a migrated database at path without WAL, for tests.
func NewTestDB(ctx context.Context, path string, opts ...Option) (*DB, error) {
	cfg := Options{
		Path:        path,
		BusyTimeout: time.Second,
		JournalMode: "DELETE",
		Migrate:     true,
	}
	return Open(ctx, cfg, opts...)
}

// Open creates the parent directory, opens the database with a single
// connection so every statement goes through one writer, pings it and applies
// pending migrations.
func Open(ctx context.Context, cfg Options, opts ...Option) (*DB, error) {
	o := &options{
		path:        cfg.Path,
		busyTimeout: cfg.BusyTimeout,
		journalMode: cfg.JournalMode,
		migrate:     cfg.Migrate,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}

	if o.path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(o.path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(o))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if o.migrate {
		if err := Migrate(ctx, db, o.logger); err != nil {
			db.Close()
			return nil, err
		}
	}

	return db, nil
}

// StatusCheck returns nil if it can successfully talk to the database
func StatusCheck(ctx context.Context, db *DB) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Second)
		defer cancel()
	}
	return db.PingContext(ctx)
}

func dsn(o *options) string {
	q := url.Values{}
	if o.busyTimeout > 0 {
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", o.busyTimeout.Milliseconds()))
	}
	if o.journalMode != "" && o.path != MemoryPath {
		q.Add("_pragma", fmt.Sprintf("journal_mode(%s)", strings.ToUpper(o.journalMode)))
	}
	q.Add("_pragma", "foreign_keys(1)")

	if o.path == MemoryPath {
		return MemoryPath + "?" + q.Encode()
	}
	u := url.URL{Scheme: "file", OmitHost: true, Path: o.path, RawQuery: q.Encode()}
	return u.String()
}
