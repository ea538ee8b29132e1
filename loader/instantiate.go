package loader

import (
	"context"
	"errors"

	"github.com/caffeineduck/fnhost/fnerr"
	"github.com/caffeineduck/fnhost/function"
	"github.com/caffeineduck/fnhost/hostfunc"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

var errUnresolved = errors.New("symbol was not resolved by this loader")

// Instantiate creates the handler for sym. Exactly one instance of the entry
// module is created and its _initialize export, if any, is run. On success
// the returned *Handler owns the artifact runtime; on error it is closed.
func (l *Loader) Instantiate(ctx context.Context, sym *Symbol) (function.Handler, error) {
	if sym == nil || sym.runtime == nil {
		return nil, fnerr.InstantiationFailed("", errUnresolved)
	}
	module := sym.EntryPoint.Module

	if sym.imports[wasi_snapshot_preview1.ModuleName] && !l.cfg.wasi {
		sym.Close(ctx)
		return nil, fnerr.AccessDenied(module, "WASI imports are not granted")
	}
	if sym.imports[hostfunc.ModuleName] && !l.cfg.hostFunctions {
		sym.Close(ctx)
		return nil, fnerr.AccessDenied(module, "host function imports are not granted")
	}

	h := newHandler(sym, l.moduleConfig(module).WithName(""), l.cfg.poolSize, l.cfg.invokeTimeout, l.logger)
	inst, err := h.newInstance(ctx)
	if err != nil {
		sym.Close(ctx)
		return nil, fnerr.InstantiationFailed(module, err)
	}
	h.release(ctx, inst)

	l.logger.Info("handler instantiated",
		zap.String("entry_point", sym.EntryPoint.String()),
		zap.Int("pool_size", l.cfg.poolSize),
	)
	return h, nil
}
