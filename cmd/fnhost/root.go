package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/caffeineduck/fnhost/config"
	"github.com/caffeineduck/fnhost/host"
	"github.com/caffeineduck/fnhost/loader"
	"github.com/caffeineduck/fnhost/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fnhost",
		Short: "Specializing WebAssembly function host",
		Long: `fnhost - Load a function artifact into a generic container and serve it.

An artifact is a zip archive (.jar/.zip), a directory of .wasm modules or a
single .wasm module. The host starts unspecialized; a specialize request
names the artifact and the entry point module, and every HTTP request after
that is handled by the loaded function.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "Config file (TOML)")
	root.PersistentFlags().Bool("no-cache", false, "Disable the on-disk compilation cache")
	root.PersistentFlags().BoolP("verbose", "v", false, "Log load events and guest output to stderr")

	root.AddCommand(newServeCmd(), newInspectCmd(), newInvokeCmd(), newReplCmd())
	return root
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads --config and applies the flags shared by the local
// commands.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.Runtime.CacheDir = ""
	}
	if f := cmd.Flags().Lookup("memory"); f != nil && f.Changed {
		pages, err := parseMemoryLimit(f.Value.String())
		if err != nil {
			return config.Config{}, err
		}
		cfg.Runtime.MemoryLimitPages = pages
	}
	if f := cmd.Flags().Lookup("allow-host"); f != nil && f.Changed {
		cfg.Runtime.AllowedHosts, _ = cmd.Flags().GetStringSlice("allow-host")
	}
	if f := cmd.Flags().Lookup("timeout"); f != nil && f.Changed {
		d, _ := cmd.Flags().GetDuration("timeout")
		cfg.Runtime.InvokeTimeout = config.Duration(d)
	}
	return cfg, nil
}

func addRuntimeFlags(cmd *cobra.Command) {
	cmd.Flags().String("memory", "", "Memory limit: 1mb, 16mb, 64mb, 256mb, 1gb")
	cmd.Flags().StringSlice("allow-host", nil, "Allow guest HTTP to host (repeatable)")
	cmd.Flags().Duration("timeout", 0, "Invocation timeout (0 = none)")
}

func cliLogger(cmd *cobra.Command) *zap.Logger {
	if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose {
		return zap.NewNop()
	}
	enc := zap.NewDevelopmentEncoderConfig()
	return zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stderr), zap.DebugLevel))
}

// specializeLocal builds a host in process and specializes it with the
// artifact and entry point. The returned func releases everything.
func specializeLocal(cmd *cobra.Command, location, entryPoint string) (*host.Host, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger := cliLogger(cmd)

	l, err := loader.New(server.LoaderOptions(cfg.Runtime, logger)...)
	if err != nil {
		return nil, nil, err
	}
	h := host.New(l, host.WithLogger(logger))
	cleanup := func() {
		h.Close(context.Background())
		l.Close()
		_ = logger.Sync()
	}

	if err := h.Specialize(cmd.Context(), host.Request{Location: location, EntryPoint: entryPoint}); err != nil {
		cleanup()
		return nil, nil, err
	}
	return h, cleanup, nil
}

func parseMemoryLimit(s string) (uint32, error) {
	switch strings.ToLower(s) {
	case "", "0":
		return 0, nil
	case "1mb":
		return loader.MemoryLimit1MB, nil
	case "16mb":
		return loader.MemoryLimit16MB, nil
	case "64mb":
		return loader.MemoryLimit64MB, nil
	case "256mb":
		return loader.MemoryLimit256MB, nil
	case "1gb":
		return loader.MemoryLimit1GB, nil
	default:
		return 0, fmt.Errorf("unknown memory limit %q: use 1mb, 16mb, 64mb, 256mb or 1gb", s)
	}
}
