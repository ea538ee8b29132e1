// Package config loads the host configuration: defaults, then an optional
// TOML file, then FNHOST_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration written as a string ("15s") in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Listen       string `toml:"listen"`
	CodePath     string `toml:"code_path"`
	EntryPoint   string `toml:"entrypoint"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`

	Runtime Runtime `toml:"runtime"`
	Log     Log     `toml:"log"`
	Server  Server  `toml:"server"`
}

type Runtime struct {
	MemoryLimitPages   uint32   `toml:"memory_limit_pages"`
	AllowWASI          bool     `toml:"allow_wasi"`
	AllowHostFunctions bool     `toml:"allow_host_functions"`
	PoolSize           int      `toml:"pool_size"`
	CacheDir           string   `toml:"cache_dir"`
	InvokeTimeout      Duration `toml:"invoke_timeout"`
	AllowedHosts       []string `toml:"allowed_hosts"`
}

type Log struct {
	Level   string `toml:"level"`
	Dir     string `toml:"dir"`
	File    string `toml:"file"`
	Console bool   `toml:"console"`
}

type Server struct {
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	IdleTimeout     Duration `toml:"idle_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Listen:       ":8888",
		CodePath:     "/userfunc/user",
		MaxBodyBytes: 10 << 20,
		Runtime: Runtime{
			AllowWASI:          true,
			AllowHostFunctions: true,
		},
		Log: Log{
			Level:   "info",
			Dir:     "log",
			Console: true,
		},
		Server: Server{
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(60 * time.Second),
			IdleTimeout:     Duration(60 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive, got %d", c.MaxBodyBytes)
	}
	if c.Runtime.MemoryLimitPages > 65536 {
		return fmt.Errorf("memory_limit_pages must be at most 65536, got %d", c.Runtime.MemoryLimitPages)
	}
	if c.Runtime.PoolSize < 0 {
		return fmt.Errorf("pool_size must not be negative, got %d", c.Runtime.PoolSize)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var err error
	set := func(key string, parse func(string) error) {
		v, ok := lookup(key)
		if !ok || v == "" || err != nil {
			return
		}
		if perr := parse(v); perr != nil {
			err = fmt.Errorf("%s: %w", key, perr)
		}
	}

	str("FNHOST_LISTEN", &c.Listen)
	str("FNHOST_CODE_PATH", &c.CodePath)
	str("FNHOST_ENTRYPOINT", &c.EntryPoint)
	set("FNHOST_MAX_BODY_BYTES", func(v string) (e error) {
		c.MaxBodyBytes, e = strconv.ParseInt(v, 10, 64)
		return e
	})

	set("FNHOST_MEMORY_LIMIT_PAGES", func(v string) error {
		n, e := strconv.ParseUint(v, 10, 32)
		c.Runtime.MemoryLimitPages = uint32(n)
		return e
	})
	set("FNHOST_ALLOW_WASI", func(v string) (e error) {
		c.Runtime.AllowWASI, e = strconv.ParseBool(v)
		return e
	})
	set("FNHOST_ALLOW_HOST_FUNCTIONS", func(v string) (e error) {
		c.Runtime.AllowHostFunctions, e = strconv.ParseBool(v)
		return e
	})
	set("FNHOST_POOL_SIZE", func(v string) (e error) {
		c.Runtime.PoolSize, e = strconv.Atoi(v)
		return e
	})
	str("FNHOST_CACHE_DIR", &c.Runtime.CacheDir)
	set("FNHOST_INVOKE_TIMEOUT", func(v string) error {
		return c.Runtime.InvokeTimeout.UnmarshalText([]byte(v))
	})
	set("FNHOST_ALLOWED_HOSTS", func(v string) error {
		c.Runtime.AllowedHosts = splitList(v)
		return nil
	})

	str("FNHOST_LOG_LEVEL", &c.Log.Level)
	str("FNHOST_LOG_DIR", &c.Log.Dir)
	str("FNHOST_LOG_FILE", &c.Log.File)
	set("FNHOST_LOG_CONSOLE", func(v string) (e error) {
		c.Log.Console, e = strconv.ParseBool(v)
		return e
	})
	return err
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
