package loader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/caffeineduck/fnhost/artifact"
	"github.com/caffeineduck/fnhost/fnerr"
	"github.com/caffeineduck/fnhost/hostfunc"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

const (
	memoryExport     = "memory"
	allocExport      = "alloc"
	initializeExport = "_initialize"
)

// Symbol is a resolved entry point: every module of its artifact is
// compiled, its dependencies are instantiated, and the entry module has the
// handler exports. A Symbol owns its artifact runtime until Instantiate hands
// it to a Handler.
type Symbol struct {
	EntryPoint EntryPoint
	Set        *artifact.ModuleSet

	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	imports  map[string]bool // namespaces imported by the entry module
}

// Close releases the artifact runtime.
func (s *Symbol) Close(ctx context.Context) error {
	if s == nil || s.runtime == nil {
		return nil
	}
	return s.runtime.Close(ctx)
}

// Resolve loads every module of set into a runtime scoped to this artifact
// and checks that entryPoint exposes the handler exports. Loading stops at
// the first module that fails. On error nothing is kept.
func (l *Loader) Resolve(ctx context.Context, set *artifact.ModuleSet, entryPoint string) (sym *Symbol, err error) {
	if strings.TrimSpace(entryPoint) == "" {
		return nil, fnerr.EntryPointMissing(fnerr.StageResolve, "")
	}
	ep := ParseEntryPoint(entryPoint)

	rt := l.newRuntime(ctx)
	defer func() {
		if err != nil {
			rt.Close(ctx)
		}
	}()

	if l.cfg.wasi {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
			return nil, fnerr.DependencyLoadFailed(wasi_snapshot_preview1.ModuleName, "instantiate WASI", err)
		}
	}
	if l.cfg.hostFunctions {
		if _, err := hostfunc.Instantiate(ctx, rt, l.newRegistry(), l.logger); err != nil {
			return nil, fnerr.DependencyLoadFailed(hostfunc.ModuleName, "instantiate host functions", err)
		}
	}

	compiled := make(map[string]wazero.CompiledModule, len(set.Modules))
	imported := make(map[string][]string, len(set.Modules))
	for _, m := range set.Modules {
		c, err := rt.CompileModule(ctx, m.Binary)
		if err != nil {
			return nil, fnerr.DependencyLoadFailed(m.Name, "compile failed", err)
		}
		compiled[m.Name] = c
		if imported[m.Name], err = importNamespaces(m.Binary); err != nil {
			return nil, fnerr.DependencyLoadFailed(m.Name, "read imports", err)
		}
	}

	entry, ok := compiled[ep.Module]
	if !ok {
		return nil, fnerr.EntryPointMissing(fnerr.StageResolve, entryPoint)
	}

	for _, m := range set.Modules {
		for _, dep := range imported[m.Name] {
			if _, ok := compiled[dep]; ok || isHostNamespace(dep) {
				continue
			}
			return nil, fnerr.DependencyLoadFailed(m.Name, fmt.Sprintf("missing dependency %s", dep), nil)
		}
	}

	order, err := dependencyOrder(set, imported, ep.Module)
	if err != nil {
		return nil, err
	}
	for _, name := range order {
		if _, err := rt.InstantiateModule(ctx, compiled[name], l.moduleConfig(name)); err != nil {
			return nil, fnerr.DependencyLoadFailed(name, "instantiate failed", err)
		}
	}

	if err := checkCapability(ep, entry); err != nil {
		return nil, err
	}

	imports := make(map[string]bool)
	for _, dep := range imported[ep.Module] {
		imports[dep] = true
	}

	l.logger.Info("entry point resolved",
		zap.String("entry_point", ep.String()),
		zap.Stringer("digest", set.Digest),
		zap.Strings("modules", set.Names()),
	)

	return &Symbol{
		EntryPoint: ep,
		Set:        set,
		runtime:    rt,
		compiled:   entry,
		imports:    imports,
	}, nil
}

func isHostNamespace(name string) bool {
	return name == wasi_snapshot_preview1.ModuleName || name == hostfunc.ModuleName
}

var errCycle = errors.New("import cycle")

// dependencyOrder lists the non-entry modules so that each comes after the
// modules it imports. Set order breaks ties.
func dependencyOrder(set *artifact.ModuleSet, imported map[string][]string, entry string) ([]string, error) {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(imported))
	var order []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fnerr.DependencyLoadFailed(name, "import cycle", errCycle)
		}
		state[name] = visiting
		for _, dep := range imported[name] {
			if isHostNamespace(dep) {
				continue
			}
			if dep == entry {
				return fnerr.DependencyLoadFailed(name, fmt.Sprintf("imports the entry point %s", entry), nil)
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = done
		order = append(order, name)
		return nil
	}

	for _, m := range set.Modules {
		if m.Name == entry {
			continue
		}
		if err := visit(m.Name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// checkCapability verifies the entry module exports memory, alloc and the
// handler with the expected signatures.
func checkCapability(ep EntryPoint, c wazero.CompiledModule) error {
	if _, ok := c.ExportedMemories()[memoryExport]; !ok {
		return fnerr.CapabilityMismatch(ep.Module, "no exported memory")
	}

	fns := c.ExportedFunctions()
	want := []struct {
		name    string
		params  []api.ValueType
		results []api.ValueType
	}{
		{allocExport, []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}},
		{ep.Export, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI64}},
	}
	for _, w := range want {
		def, ok := fns[w.name]
		if !ok {
			return fnerr.CapabilityMismatch(ep.Module, fmt.Sprintf("no exported function %s", w.name))
		}
		if !slices.Equal(def.ParamTypes(), w.params) || !slices.Equal(def.ResultTypes(), w.results) {
			return fnerr.CapabilityMismatch(ep.Module, fmt.Sprintf("%s has signature %s, want %s",
				w.name, signature(def.ParamTypes(), def.ResultTypes()), signature(w.params, w.results)))
		}
	}
	return nil
}

func signature(params, results []api.ValueType) string {
	names := func(ts []api.ValueType) string {
		s := make([]string, len(ts))
		for i, t := range ts {
			s[i] = api.ValueTypeName(t)
		}
		return strings.Join(s, ", ")
	}
	return fmt.Sprintf("(%s) -> (%s)", names(params), names(results))
}
