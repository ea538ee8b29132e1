package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/caffeineduck/fnhost/config"
	"github.com/caffeineduck/fnhost/hostfunc"
	"github.com/caffeineduck/fnhost/host"
	"github.com/caffeineduck/fnhost/loader"
	"github.com/caffeineduck/fnhost/logging"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// LoaderOptions translates the runtime settings into loader options.
func LoaderOptions(cfg config.Runtime, logger *zap.Logger) []loader.Option {
	opts := []loader.Option{
		loader.WithLogger(logger),
		loader.WithMemoryLimit(cfg.MemoryLimitPages),
		loader.WithWASI(cfg.AllowWASI),
		loader.WithHostFunctions(cfg.AllowHostFunctions),
		loader.WithPoolSize(cfg.PoolSize),
		loader.WithInvokeTimeout(cfg.InvokeTimeout.Std()),
	}
	if cfg.CacheDir != "" {
		opts = append(opts, loader.WithDiskCache(cfg.CacheDir))
	}
	if len(cfg.AllowedHosts) > 0 {
		opts = append(opts, loader.WithHTTP(hostfunc.HTTPConfig{AllowedHosts: cfg.AllowedHosts}))
	}
	return opts
}

func provideLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log)
}

func provideLoader(cfg config.Config, logger *zap.Logger) (*loader.Loader, error) {
	return loader.New(LoaderOptions(cfg.Runtime, logger.Named("loader"))...)
}

func provideHost(l *loader.Loader, logger *zap.Logger) *host.Host {
	return host.New(l, host.WithLogger(logger.Named("host")))
}

func provideRouter(s *Server) http.Handler {
	return s.Routes()
}

type serverDeps struct {
	fx.In

	Config config.Config
	Logger *zap.Logger
	App    http.Handler `name:"app"`
	Host   *host.Host
	Loader *loader.Loader
}

func registerHooks(lc fx.Lifecycle, d serverDeps) {
	srv := &http.Server{
		Addr:         d.Config.Listen,
		Handler:      d.App,
		ReadTimeout:  d.Config.Server.ReadTimeout.Std(),
		WriteTimeout: d.Config.Server.WriteTimeout.Std(),
		IdleTimeout:  d.Config.Server.IdleTimeout.Std(),
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			d.Logger.Info("server starting", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					d.Logger.Error("server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			d.Logger.Info("server stopping")
			if timeout := d.Config.Server.ShutdownTimeout.Std(); timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			err := srv.Shutdown(ctx)
			if herr := d.Host.Close(ctx); herr != nil {
				err = errors.Join(err, herr)
			}
			if lerr := d.Loader.Close(); lerr != nil {
				err = errors.Join(err, lerr)
			}
			_ = d.Logger.Sync()
			return err
		},
	})
}

// Module wires the host, its HTTP server and their lifecycle for cfg.
func Module(cfg config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideLoader,
			provideHost,
			New,
			fx.Annotate(provideRouter, fx.ResultTags(`name:"app"`)),
		),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		fx.Invoke(registerHooks),
	)
}
