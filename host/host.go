package host

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/caffeineduck/fnhost/artifact"
	"github.com/caffeineduck/fnhost/fnerr"
	"github.com/caffeineduck/fnhost/function"
	"github.com/caffeineduck/fnhost/loader"
	"go.uber.org/zap"
)

// Loader is the load pipeline a Host drives. *loader.Loader implements it.
type Loader interface {
	Inspect(ctx context.Context, location string) (*artifact.ModuleSet, error)
	Resolve(ctx context.Context, set *artifact.ModuleSet, entryPoint string) (*loader.Symbol, error)
	Instantiate(ctx context.Context, sym *loader.Symbol) (function.Handler, error)
}

// Request asks the host to specialize.
type Request struct {
	Location   string
	EntryPoint string
	// URL is where the artifact was fetched from. It is recorded but not
	// consulted; fetching is done before Specialize is called.
	URL string
}

// Status is a point-in-time view of the host.
type Status struct {
	State         State     `json:"state"`
	EntryPoint    string    `json:"entryPoint,omitempty"`
	Location      string    `json:"location,omitempty"`
	URL           string    `json:"url,omitempty"`
	Digest        string    `json:"digest,omitempty"`
	Modules       []string  `json:"modules,omitempty"`
	Generation    uint64    `json:"generation"`
	SpecializedAt time.Time `json:"specializedAt,omitzero"`
	LastError     string    `json:"lastError,omitempty"`
}

// slot is one published handler. mu is read-held for the duration of each
// call so retire can wait for in-flight calls to drain.
type slot struct {
	handler       function.Handler
	req           Request
	entryPoint    string
	set           *artifact.ModuleSet
	generation    uint64
	specializedAt time.Time

	mu      sync.RWMutex
	retired bool
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the host logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Host owns the active handler.
type Host struct {
	loader Loader
	logger *zap.Logger

	mu         sync.Mutex // serializes Specialize and Close
	state      atomic.Int32
	active     atomic.Pointer[slot]
	generation atomic.Uint64
	lastErr    atomic.Value // string

	retiring sync.WaitGroup
}

// New creates an unspecialized Host.
func New(l Loader, opts ...Option) *Host {
	h := &Host{
		loader: l,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.lastErr.Store("")
	return h
}

// State returns the current lifecycle state.
func (h *Host) State() State {
	return State(h.state.Load())
}

// Specialize loads req and publishes its handler. Calls are serialized; the
// last one to complete successfully wins. On failure the host enters Failed
// and the previously active handler, if any, stays active.
func (h *Host) Specialize(ctx context.Context, req Request) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := time.Now()
	h.state.Store(int32(Specializing))
	logger := h.logger.With(zap.String("location", req.Location), zap.String("entry_point", req.EntryPoint))
	logger.Info("specializing")

	handler, set, err := h.load(ctx, req)
	if err != nil {
		h.state.Store(int32(Failed))
		h.lastErr.Store(err.Error())
		logger.Error("specialization failed",
			zap.String("kind", string(fnerr.KindOf(err))),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return err
	}

	s := &slot{
		handler:       handler,
		req:           req,
		entryPoint:    loader.ParseEntryPoint(req.EntryPoint).String(),
		set:           set,
		generation:    h.generation.Add(1),
		specializedAt: time.Now(),
	}
	old := h.active.Swap(s)
	h.state.Store(int32(Ready))
	h.lastErr.Store("")

	logger.Info("specialized",
		zap.Uint64("generation", s.generation),
		zap.Stringer("digest", set.Digest),
		zap.Duration("duration", time.Since(start)),
	)

	if old != nil {
		h.retire(old)
	}
	return nil
}

func (h *Host) load(ctx context.Context, req Request) (function.Handler, *artifact.ModuleSet, error) {
	if err := artifact.Exists(req.Location); err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(req.EntryPoint) == "" {
		return nil, nil, fnerr.EntryPointMissing(fnerr.StageValidate, "")
	}

	set, err := h.loader.Inspect(ctx, req.Location)
	if err != nil {
		return nil, nil, err
	}
	if set == nil {
		set = &artifact.ModuleSet{Location: req.Location}
	}
	sym, err := h.loader.Resolve(ctx, set, req.EntryPoint)
	if err != nil {
		return nil, nil, err
	}
	handler, err := h.loader.Instantiate(ctx, sym)
	if err != nil {
		return nil, nil, err
	}
	if handler == nil {
		return nil, nil, fnerr.InstantiationFailed(req.EntryPoint, fmt.Errorf("loader returned no handler"))
	}
	return handler, set, nil
}

// Invoke dispatches req to the active handler. Errors and panics raised by
// the handler are returned as HandlerExecutionError; a nil response becomes
// an empty 200.
func (h *Host) Invoke(ctx context.Context, req *function.Request) (*function.Response, error) {
	for {
		s := h.active.Load()
		if s == nil {
			return nil, fnerr.NotSpecialized()
		}
		// A writer on mu means s is being retired and a newer slot, or
		// none, is already published.
		if !s.mu.TryRLock() {
			continue
		}
		if s.retired {
			s.mu.RUnlock()
			continue
		}
		resp, err := h.call(ctx, s, req)
		s.mu.RUnlock()
		return resp, err
	}
}

func (h *Host) call(ctx context.Context, s *slot, req *function.Request) (resp *function.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = fnerr.HandlerExecution(s.entryPoint, fmt.Errorf("panic: %v", r))
			h.logger.Error("handler panicked",
				zap.String("entry_point", s.entryPoint),
				zap.String("invocation_id", function.InvocationID(ctx)),
				zap.Any("panic", r),
			)
		}
	}()

	resp, err = s.handler.Handle(ctx, req)
	if err != nil {
		h.logger.Warn("handler failed",
			zap.String("entry_point", s.entryPoint),
			zap.String("invocation_id", function.InvocationID(ctx)),
			zap.Error(err),
		)
		return nil, fnerr.HandlerExecution(s.entryPoint, err)
	}
	if resp == nil {
		resp = &function.Response{Status: 200}
	}
	return resp, nil
}

// retire waits for in-flight calls on s and closes its handler.
func (h *Host) retire(s *slot) {
	h.retiring.Add(1)
	go func() {
		defer h.retiring.Done()

		s.mu.Lock()
		s.retired = true
		s.mu.Unlock()

		if c, ok := s.handler.(function.Closer); ok {
			if err := c.Close(context.Background()); err != nil {
				h.logger.Warn("close superseded handler", zap.Uint64("generation", s.generation), zap.Error(err))
				return
			}
		}
		h.logger.Debug("handler retired", zap.Uint64("generation", s.generation))
	}()
}

// Status returns a snapshot of the host.
func (h *Host) Status() Status {
	st := Status{
		State:      h.State(),
		Generation: h.generation.Load(),
		LastError:  h.lastErr.Load().(string),
	}
	if s := h.active.Load(); s != nil {
		st.EntryPoint = s.entryPoint
		st.Location = s.req.Location
		st.URL = s.req.URL
		st.SpecializedAt = s.specializedAt
		if s.set != nil {
			st.Digest = s.set.Digest.String()
			st.Modules = s.set.Names()
		}
	}
	return st
}

// Close unpublishes the active handler and waits until every superseded
// handler has drained and closed, or ctx is done. The host returns to
// Unspecialized and may be specialized again.
func (h *Host) Close(ctx context.Context) error {
	h.mu.Lock()
	if old := h.active.Swap(nil); old != nil {
		h.retire(old)
	}
	h.state.Store(int32(Unspecialized))
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.retiring.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
