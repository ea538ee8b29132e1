package loader

import (
	"runtime"
	"time"

	"github.com/caffeineduck/fnhost/hostfunc"
	"go.uber.org/zap"
)

// Option configures a Loader.
type Option func(*config)

type config struct {
	logger           *zap.Logger
	diskCache        bool
	cacheDir         string
	memoryLimitPages uint32 // 0 = wazero default (4GB)
	wasi             bool
	hostFunctions    bool
	poolSize         int
	invokeTimeout    time.Duration
	registry         *hostfunc.Registry
	kvConfig         hostfunc.KVConfig
	httpConfig       hostfunc.HTTPConfig
}

func defaultConfig() config {
	return config{
		logger:        zap.NewNop(),
		wasi:          true,
		hostFunctions: true,
		poolSize:      runtime.GOMAXPROCS(0),
		kvConfig:      hostfunc.DefaultKVConfig(),
	}
}

// WithLogger sets the logger used for load events and guest output.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDiskCache persists compiled modules across restarts.
// Optionally provide a custom directory; otherwise uses XDG_CACHE_HOME/fnhost
// or ~/.cache/fnhost.
//
//	loader.New(loader.WithDiskCache())            // default dir
//	loader.New(loader.WithDiskCache("/tmp/cache")) // custom dir
func WithDiskCache(dir ...string) Option {
	return func(c *config) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithMemoryLimit caps the linear memory of every module. Each page is 64KB:
//   - WithMemoryLimit(16) = 1MB max
//   - WithMemoryLimit(256) = 16MB max
//   - WithMemoryLimit(1024) = 64MB max
//
// Default is 0 (no limit, up to 4GB).
func WithMemoryLimit(pages uint32) Option {
	return func(c *config) {
		c.memoryLimitPages = pages
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit1MB   uint32 = 16    // 1 MB
	MemoryLimit16MB  uint32 = 256   // 16 MB
	MemoryLimit64MB  uint32 = 1024  // 64 MB
	MemoryLimit256MB uint32 = 4096  // 256 MB
	MemoryLimit1GB   uint32 = 16384 // 1 GB
)

// WithWASI grants or denies wasi_snapshot_preview1 imports. Granted by default.
func WithWASI(allow bool) Option {
	return func(c *config) {
		c.wasi = allow
	}
}

// WithHostFunctions grants or denies fnhost imports. Granted by default.
func WithHostFunctions(allow bool) Option {
	return func(c *config) {
		c.hostFunctions = allow
	}
}

// WithPoolSize bounds how many idle instances a handler keeps. More are
// created on demand under load and closed when returned to a full pool.
func WithPoolSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

// WithInvokeTimeout bounds every handler call. Zero means no limit.
func WithInvokeTimeout(d time.Duration) Option {
	return func(c *config) {
		c.invokeTimeout = d
	}
}

// WithRegistry adds caller-supplied host functions. Built-ins are registered
// on a per-handler copy, so the registry is not modified.
func WithRegistry(r *hostfunc.Registry) Option {
	return func(c *config) {
		c.registry = r
	}
}

// WithKVConfig sets the limits of each handler's key-value store.
func WithKVConfig(cfg hostfunc.KVConfig) Option {
	return func(c *config) {
		c.kvConfig = cfg
	}
}

// WithHTTP enables http_request and http_get for the configured hosts.
func WithHTTP(cfg hostfunc.HTTPConfig) Option {
	return func(c *config) {
		c.httpConfig = cfg
	}
}
