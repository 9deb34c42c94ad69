// Package redisdb opens a go-redis client for the redis task store.
package redisdb

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jrazmi/todolist/sdk/environment"
)

type Client = redis.Client

// Options represents the exportable redis configuration
type Options struct {
	Addr         string        `env:"REDIS_ADDR" default:"localhost:6379"`
	Username     string        `env:"REDIS_USERNAME"`
	Password     string        `env:"REDIS_PASSWORD"`
	DB           int           `env:"REDIS_DB" default:"0"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

type options struct {
	addr string
	db   int
}

// Option is a function that configures the client options
type Option func(*options)

// WithAddr overrides the server address.
func WithAddr(addr string) Option {
	return func(o *options) {
		o.addr = addr
	}
}

// WithDB selects the logical database.
func WithDB(db int) Option {
	return func(o *options) {
		o.db = db
	}
}

// NewFromEnv creates a client configured through environment variables.
func NewFromEnv(ctx context.Context, prefix string, opts ...Option) (*redis.Client, error) {
	var cfg Options
	if err := environment.ParseEnvTags(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing redis config: %w", err)
	}
	return Open(ctx, cfg, opts...)
}

// Open creates the client and pings the server.
func Open(ctx context.Context, cfg Options, opts ...Option) (*redis.Client, error) {
	o := &options{addr: cfg.Addr, db: cfg.DB}
	for _, opt := range opts {
		opt(o)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         o.addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           o.db,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := StatusCheck(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

// StatusCheck returns nil if it can successfully talk to redis.
func StatusCheck(ctx context.Context, client *redis.Client) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Second)
		defer cancel()
	}
	return client.Ping(ctx).Err()
}
