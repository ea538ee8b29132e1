package hostfunc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/caffeineduck/fnhost/function"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// ModuleName is the import namespace guests use for host functions.
const ModuleName = "fnhost"

// Instantiate defines the fnhost module in rt. Calls are dispatched through
// registry; guest log lines go to logger.
//
//	log(ptr, len i32)
//	call(ptr, len i32) -> i64
func Instantiate(ctx context.Context, rt wazero.Runtime, registry *Registry, logger *zap.Logger) (api.Module, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &hostModule{registry: registry, logger: logger}

	i32 := api.ValueTypeI32
	return rt.NewHostModuleBuilder(ModuleName).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.log), []api.ValueType{i32, i32}, nil).
		WithParameterNames("ptr", "len").
		Export("log").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.call), []api.ValueType{i32, i32}, []api.ValueType{api.ValueTypeI64}).
		WithParameterNames("ptr", "len").
		Export("call").
		Instantiate(ctx)
}

type hostModule struct {
	registry *Registry
	logger   *zap.Logger
}

func (h *hostModule) log(ctx context.Context, mod api.Module, stack []uint64) {
	ptr, size := api.DecodeU32(stack[0]), api.DecodeU32(stack[1])
	msg, ok := mod.Memory().Read(ptr, size)
	if !ok {
		h.logger.Warn("guest log out of range", zap.Uint32("ptr", ptr), zap.Uint32("len", size))
		return
	}
	h.logger.Info(string(msg),
		zap.String("source", "guest"),
		zap.String("invocation_id", function.InvocationID(ctx)),
	)
}

func (h *hostModule) call(ctx context.Context, mod api.Module, stack []uint64) {
	ptr, size := api.DecodeU32(stack[0]), api.DecodeU32(stack[1])

	var reply Reply
	if raw, ok := mod.Memory().Read(ptr, size); !ok {
		reply.Error = "call out of range"
	} else {
		reply = h.dispatch(ctx, raw)
	}

	out, err := json.Marshal(reply)
	if err != nil {
		out, _ = json.Marshal(Reply{Error: fmt.Sprintf("encode result: %v", err)})
	}
	stack[0] = h.writeBack(ctx, mod, out)
}

func (h *hostModule) dispatch(ctx context.Context, raw []byte) Reply {
	var c Call
	if err := json.Unmarshal(raw, &c); err != nil {
		return Reply{Error: fmt.Sprintf("invalid call: %v", err)}
	}

	fn, ok := h.registry.Get(c.Fn)
	if !ok {
		return Reply{Error: fmt.Sprintf("unknown function: %s", c.Fn)}
	}
	if c.Args == nil {
		c.Args = map[string]any{}
	}

	data, err := fn(ctx, c.Args)
	if err != nil {
		h.logger.Debug("host function failed", zap.String("fn", c.Fn), zap.Error(err))
		return Reply{Error: err.Error()}
	}
	return Reply{Data: data}
}

// writeBack copies out into guest memory obtained from its alloc export and
// returns the packed pointer and length, or 0 when that is not possible.
func (h *hostModule) writeBack(ctx context.Context, mod api.Module, out []byte) uint64 {
	alloc := mod.ExportedFunction("alloc")
	if alloc == nil {
		return 0
	}
	res, err := alloc.Call(ctx, uint64(len(out)))
	if err != nil || len(res) == 0 {
		h.logger.Warn("guest alloc failed", zap.Error(err))
		return 0
	}
	p := api.DecodeU32(res[0])
	if !mod.Memory().Write(p, out) {
		h.logger.Warn("guest alloc returned out of range pointer", zap.Uint32("ptr", p))
		return 0
	}
	return uint64(p)<<32 | uint64(len(out))
}
