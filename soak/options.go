package soak

import (
	"errors"
	"fmt"
	"strings"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"

	"github.com/benz9527/xcontainer/xlog"
)

type ContainerKind string

const (
	MapKind      ContainerKind = "map"
	SetKind      ContainerKind = "set"
	MultiSetKind ContainerKind = "multiset"
)

var (
	ErrUnknownContainerKind = errors.New("[soak] unknown container kind")
	ErrInvalidConfig        = errors.New("[soak] invalid config")
	ErrModelMismatch        = errors.New("[soak] container diverged from model")
)

func ParseContainerKind(text string) (ContainerKind, error) {
	switch kind := ContainerKind(strings.ToLower(strings.TrimSpace(text))); kind {
	case MapKind, SetKind, MultiSetKind:
		return kind, nil
	default:
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownContainerKind, text)
}

type runnerCfg struct {
	kind          ContainerKind
	trees         int
	ops           int64
	keys          uint64
	workers       int
	checkEvery    int64
	scanSteps     int
	seed          uint64
	logger        xlog.XLogger
	pool          *ants.Pool
	statsName     string
	statsProvider metric.MeterProvider
	statsEnabled  bool
}

func defaultRunnerCfg() *runnerCfg {
	return &runnerCfg{
		kind:       MapKind,
		trees:      8,
		ops:        10_000,
		keys:       1024,
		workers:    4,
		checkEvery: 1000,
		scanSteps:  16,
		seed:       1,
	}
}

func (cfg *runnerCfg) validate() error {
	var err error
	if _, kindErr := ParseContainerKind(string(cfg.kind)); kindErr != nil {
		err = multierr.Append(err, kindErr)
	}
	if cfg.trees <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: trees must be positive, got %d", ErrInvalidConfig, cfg.trees))
	}
	if cfg.ops <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: ops must be positive, got %d", ErrInvalidConfig, cfg.ops))
	}
	if cfg.keys == 0 {
		err = multierr.Append(err, fmt.Errorf("%w: key space must be positive", ErrInvalidConfig))
	}
	if cfg.workers <= 0 && cfg.pool == nil {
		err = multierr.Append(err, fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, cfg.workers))
	}
	if cfg.checkEvery < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: check interval must not be negative, got %d", ErrInvalidConfig, cfg.checkEvery))
	}
	return err
}

type Option func(*runnerCfg)

func WithKind(kind ContainerKind) Option {
	return func(cfg *runnerCfg) {
		cfg.kind = kind
	}
}

// WithTrees sets how many independent containers are soaked, one per task.
func WithTrees(trees int) Option {
	return func(cfg *runnerCfg) {
		cfg.trees = trees
	}
}

func WithOps(ops int64) Option {
	return func(cfg *runnerCfg) {
		cfg.ops = ops
	}
}

// WithKeys bounds the keys to [1, keys]. Small key spaces produce more
// hits and duplicates.
func WithKeys(keys uint64) Option {
	return func(cfg *runnerCfg) {
		cfg.keys = keys
	}
}

func WithWorkers(workers int) Option {
	return func(cfg *runnerCfg) {
		cfg.workers = workers
	}
}

// WithCheckEvery runs the full validation every n operations. Zero
// validates only once the task is done.
func WithCheckEvery(n int64) Option {
	return func(cfg *runnerCfg) {
		cfg.checkEvery = n
	}
}

func WithSeed(seed uint64) Option {
	return func(cfg *runnerCfg) {
		cfg.seed = seed
	}
}

func WithLogger(logger xlog.XLogger) Option {
	return func(cfg *runnerCfg) {
		cfg.logger = logger
	}
}

// WithPool runs the tasks on a caller owned pool. The runner does not
// release it.
func WithPool(pool *ants.Pool) Option {
	return func(cfg *runnerCfg) {
		cfg.pool = pool
	}
}

// WithStats enables the tree metrics of every soaked container.
func WithStats(name string, provider metric.MeterProvider) Option {
	return func(cfg *runnerCfg) {
		cfg.statsEnabled = true
		cfg.statsName = name
		cfg.statsProvider = provider
	}
}
