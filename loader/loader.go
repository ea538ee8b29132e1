package loader

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caffeineduck/fnhost/artifact"
	"github.com/caffeineduck/fnhost/hostfunc"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
)

// Loader turns artifacts into handlers. It owns the compilation cache shared
// by every artifact runtime it creates.
type Loader struct {
	cfg    config
	cache  wazero.CompilationCache
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// New creates a Loader.
func New(opts ...Option) (*Loader, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var cache wazero.CompilationCache
	if cfg.diskCache {
		dir := cfg.cacheDir
		if dir == "" {
			dir = defaultCacheDir()
		}
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(dir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	} else {
		cache = wazero.NewCompilationCache()
	}

	return &Loader{
		cfg:    cfg,
		cache:  cache,
		logger: cfg.logger,
	}, nil
}

// Inspect enumerates the modules of the artifact at location.
func (l *Loader) Inspect(ctx context.Context, location string) (*artifact.ModuleSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	set, err := artifact.Inspect(location)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("artifact inspected",
		zap.String("location", location),
		zap.String("kind", string(set.Kind)),
		zap.Stringer("digest", set.Digest),
		zap.Strings("modules", set.Names()),
		zap.Duration("duration", time.Since(start)),
	)
	return set, nil
}

// newRuntime creates the isolated runtime for one artifact.
func (l *Loader) newRuntime(ctx context.Context) wazero.Runtime {
	rtConfig := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true).
		WithCompilationCache(l.cache)
	if l.cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(l.cfg.memoryLimitPages)
	}
	return wazero.NewRuntimeWithConfig(ctx, rtConfig)
}

// newRegistry builds the host functions of one handler.
func (l *Loader) newRegistry() *hostfunc.Registry {
	registry := l.cfg.registry.Clone()

	registry.Register("time_now", func(ctx context.Context, args map[string]any) (any, error) {
		return float64(time.Now().UnixNano()) / 1e9, nil
	})
	hostfunc.NewKV(l.cfg.kvConfig).Register(registry)
	if len(l.cfg.httpConfig.AllowedHosts) > 0 {
		hostfunc.NewHTTP(l.cfg.httpConfig).Register(registry)
	}
	return registry
}

func (l *Loader) moduleConfig(name string) wazero.ModuleConfig {
	logger := l.logger.With(zap.String("module", name))
	return wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions(initializeExport).
		WithStdout(&logWriter{logger: logger, stream: "stdout"}).
		WithStderr(&logWriter{logger: logger, stream: "stderr"}).
		WithSysWalltime().
		WithSysNanotime().
		WithRandSource(rand.Reader)
}

// Close releases the compilation cache. Handlers already returned keep their
// own runtimes and must be closed separately.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.cache.Close(context.Background())
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "fnhost")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "fnhost")
	}
	return filepath.Join(os.TempDir(), "fnhost-cache")
}
