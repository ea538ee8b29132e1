package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/caffeineduck/fnhost/function"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// ErrHandlerClosed is returned by Handle after Close.
var ErrHandlerClosed = errors.New("handler closed")

// Handler runs requests against instances of an entry module. A wasm instance
// serves one call at a time, so Handler keeps a bounded pool of idle
// instances and creates more when all are busy. An instance whose call fails
// is discarded since its memory may be inconsistent.
type Handler struct {
	sym     *Symbol
	config  wazero.ModuleConfig
	timeout time.Duration
	logger  *zap.Logger

	idle   chan *instance
	closed atomic.Bool
	once   sync.Once
}

type instance struct {
	mod    api.Module
	alloc  api.Function
	handle api.Function
}

func newHandler(sym *Symbol, config wazero.ModuleConfig, poolSize int, timeout time.Duration, logger *zap.Logger) *Handler {
	if poolSize < 1 {
		poolSize = 1
	}
	return &Handler{
		sym:     sym,
		config:  config,
		timeout: timeout,
		logger:  logger.With(zap.String("entry_point", sym.EntryPoint.String())),
		idle:    make(chan *instance, poolSize),
	}
}

// EntryPoint returns the entry point this handler runs.
func (h *Handler) EntryPoint() EntryPoint {
	return h.sym.EntryPoint
}

// Handle implements function.Handler.
func (h *Handler) Handle(ctx context.Context, req *function.Request) (*function.Response, error) {
	if h.closed.Load() {
		return nil, ErrHandlerClosed
	}
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	payload, err := encodeRequest(req)
	if err != nil {
		return nil, err
	}

	inst, err := h.acquire(ctx)
	if err != nil {
		return nil, err
	}

	out, err := inst.call(ctx, payload)
	if err != nil {
		inst.mod.Close(context.Background())
		if ctx.Err() == context.DeadlineExceeded && h.timeout > 0 {
			return nil, fmt.Errorf("timeout after %v", h.timeout)
		}
		return nil, err
	}
	h.release(ctx, inst)

	return decodeResponse(out)
}

func (h *Handler) acquire(ctx context.Context) (*instance, error) {
	select {
	case inst := <-h.idle:
		return inst, nil
	default:
	}
	inst, err := h.newInstance(ctx)
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	return inst, nil
}

func (h *Handler) release(ctx context.Context, inst *instance) {
	if !h.closed.Load() {
		select {
		case h.idle <- inst:
			return
		default:
		}
	}
	inst.mod.Close(ctx)
}

func (h *Handler) newInstance(ctx context.Context) (*instance, error) {
	mod, err := h.sym.runtime.InstantiateModule(ctx, h.sym.compiled, h.config)
	if err != nil {
		return nil, err
	}
	return &instance{
		mod:    mod,
		alloc:  mod.ExportedFunction(allocExport),
		handle: mod.ExportedFunction(h.sym.EntryPoint.Export),
	}, nil
}

// call writes payload into guest memory, runs the handler export and copies
// out the response document.
func (i *instance) call(ctx context.Context, payload []byte) ([]byte, error) {
	res, err := i.alloc.Call(ctx, uint64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("alloc: %w", err)
	}
	ptr := api.DecodeU32(res[0])
	if !i.mod.Memory().Write(ptr, payload) {
		return nil, fmt.Errorf("request of %d bytes does not fit at %#x", len(payload), ptr)
	}

	res, err = i.handle.Call(ctx, uint64(ptr), uint64(len(payload)))
	if err != nil {
		return nil, err
	}
	outPtr, outLen := uint32(res[0]>>32), uint32(res[0])
	out, ok := i.mod.Memory().Read(outPtr, outLen)
	if !ok {
		return nil, fmt.Errorf("response %#x+%d out of range", outPtr, outLen)
	}
	return bytes.Clone(out), nil
}

// Close retires the handler and releases its runtime. In-flight calls fail.
func (h *Handler) Close(ctx context.Context) error {
	var err error
	h.once.Do(func() {
		h.closed.Store(true)
	drain:
		for {
			select {
			case inst := <-h.idle:
				inst.mod.Close(ctx)
			default:
				break drain
			}
		}
		err = h.sym.Close(ctx)
		h.logger.Debug("handler closed")
	})
	return err
}

// wireResponse is the response document a guest returns. Body takes
// precedence over Text, which takes precedence over JSON.
type wireResponse struct {
	Status  int             `json:"status"`
	Headers function.Header `json:"headers"`
	Body    []byte          `json:"body"`
	Text    *string         `json:"text"`
	JSON    json.RawMessage `json:"json"`
}

func decodeResponse(out []byte) (*function.Response, error) {
	resp := &function.Response{Status: 200}
	if len(bytes.TrimSpace(out)) == 0 {
		return resp, nil
	}

	var w wireResponse
	if err := json.Unmarshal(out, &w); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if w.Status != 0 {
		resp.Status = w.Status
	}
	resp.Header = w.Headers

	switch {
	case w.Body != nil:
		resp.Body = w.Body
	case w.Text != nil:
		resp.Body = []byte(*w.Text)
	case len(w.JSON) > 0 && string(w.JSON) != "null":
		var v any
		if err := json.Unmarshal(w.JSON, &v); err != nil {
			return nil, fmt.Errorf("decode response json: %w", err)
		}
		resp.Value = v
	}
	return resp, nil
}

// encodeRequest marshals req for the guest. Value is advisory; when it holds
// something JSON cannot represent (NaN or Inf from a TOML or msgpack body) it
// is dropped and the guest gets the raw body only.
func encodeRequest(req *function.Request) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil && req.Value != nil {
		r := *req
		r.Value = nil
		payload, err = json.Marshal(&r)
	}
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return payload, nil
}
