package aipprof

import (
	"os"
	"strings"
	"time"

	"github.com/volcengine/apminsight-pprof-go/aipprof/collectors"
	"github.com/volcengine/apminsight-pprof-go/logger"
)

const (
	defaultAddr       = "localhost:8080"
	defaultPathPrefix = "/debug/pprof"

	defaultMaxDuration = 10 * time.Minute

	envAddr = "AIPPROF_ADDR"
)

type Config struct {
	Addr       string
	PathPrefix string

	// DefaultDuration is used by profile and wall when seconds is absent.
	DefaultDuration time.Duration
	// MaxDuration bounds the seconds parameter. Longer requests are rejected.
	MaxDuration time.Duration

	WallHz int
	// HeapTracer backs the heap route. nil means heap profiling is unavailable.
	HeapTracer collectors.HeapTracer

	Logger logger.Logger
}

type Option func(*Config)

// the listen address can be overridden by AIPPROF_ADDR
func newDefaultConfig() *Config {
	cfg := &Config{
		Addr:            defaultAddr,
		PathPrefix:      defaultPathPrefix,
		DefaultDuration: collectors.DefaultDuration,
		MaxDuration:     defaultMaxDuration,
		WallHz:          collectors.DefaultWallHz,
	}
	if addr := os.Getenv(envAddr); addr != "" {
		cfg.Addr = addr
	}
	return cfg
}

func newConfig(opts ...Option) *Config {
	cfg := newDefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.Logger = logger.OrNoop(cfg.Logger)
	cfg.PathPrefix = "/" + strings.Trim(cfg.PathPrefix, "/")
	if cfg.PathPrefix == "/" {
		cfg.PathPrefix = ""
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = collectors.DefaultDuration
	}
	if cfg.MaxDuration < cfg.DefaultDuration {
		cfg.MaxDuration = cfg.DefaultDuration
	}
	return cfg
}

// WithAddr sets the host:port the server listens on
func WithAddr(addr string) Option {
	return func(cfg *Config) {
		cfg.Addr = addr
	}
}

// WithPathPrefix sets the path the routes are mounted under, /debug/pprof by default
func WithPathPrefix(prefix string) Option {
	return func(cfg *Config) {
		cfg.PathPrefix = prefix
	}
}

// WithLogger set logger used in server and service
func WithLogger(l logger.Logger) Option {
	return func(cfg *Config) {
		cfg.Logger = l
	}
}

// WithHeapTracer enables the heap route. Use collectors.NewRuntimeHeapTracer and call Start on it
// to read allocations sampled by the Go runtime.
func WithHeapTracer(t collectors.HeapTracer) Option {
	return func(cfg *Config) {
		cfg.HeapTracer = t
	}
}

// WithWallSampleRate sets the wall sampler frequency in Hz. The process-wide sampler keeps the
// rate of the first server that registers it.
func WithWallSampleRate(hz int) Option {
	return func(cfg *Config) {
		cfg.WallHz = hz
	}
}

func WithDefaultDuration(d time.Duration) Option {
	return func(cfg *Config) {
		cfg.DefaultDuration = d
	}
}

func WithMaxDuration(d time.Duration) Option {
	return func(cfg *Config) {
		cfg.MaxDuration = d
	}
}
