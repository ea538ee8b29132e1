// Package server exposes a Host over HTTP: the invocation route, the
// specialize endpoints and the operational routes.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/caffeineduck/fnhost/adapter"
	"github.com/caffeineduck/fnhost/codec"
	"github.com/caffeineduck/fnhost/config"
	"github.com/caffeineduck/fnhost/fnerr"
	"github.com/caffeineduck/fnhost/function"
	"github.com/caffeineduck/fnhost/host"
	"github.com/caffeineduck/fnhost/logging"
	"github.com/caffeineduck/fnhost/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InvocationHeader carries the id assigned to each invocation.
const InvocationHeader = "X-Fnhost-Invocation-Id"

const maxSpecializeBody = 64 << 10

// Server routes HTTP requests to a Host.
type Server struct {
	host   *host.Host
	cfg    config.Config
	logger *zap.Logger
}

// New creates a Server for h.
func New(h *host.Host, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.SetState(h.State())
	return &Server{host: h, cfg: cfg, logger: logger}
}

// Routes returns the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(logging.AccessLog(s.logger))
	r.Use(metrics.Collect)

	r.Post("/specialize", s.specializeV1)
	r.Post("/v2/specialize", s.specializeV2)
	r.Get("/healthz", s.healthz)
	r.Get("/v2/status", s.status)
	r.Handle("/metrics", metrics.Handler())

	r.HandleFunc("/", s.invoke)
	r.HandleFunc("/*", s.invoke)
	return r
}

func (s *Server) invoke(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	w.Header().Set(InvocationHeader, id)
	ctx := function.WithInvocationID(r.Context(), id)

	req, err := adapter.FromHTTP(r, s.cfg.MaxBodyBytes)
	if err != nil {
		if errors.Is(err, adapter.ErrBodyTooLarge) {
			writeText(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeText(w, http.StatusBadRequest, "Error reading request body")
		return
	}

	start := time.Now()
	resp, err := s.host.Invoke(ctx, req)
	metrics.ObserveInvoke(time.Since(start), err)
	if err != nil {
		if errors.Is(err, fnerr.ErrNotSpecialized) {
			writeText(w, http.StatusBadRequest, "Container not specialized")
			return
		}
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := adapter.WriteHTTP(w, resp); err != nil {
		s.logger.Error("write response", zap.String("invocation_id", id), zap.Error(err))
		if errors.Is(err, adapter.ErrEncodeResponse) {
			writeText(w, http.StatusInternalServerError, "Error encoding function response")
		}
	}
}

type specializeRequest struct {
	FilePath     string `json:"filepath"`
	FunctionName string `json:"functionName"`
	URL          string `json:"url,omitempty"`
}

func (s *Server) specializeV2(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSpecializeBody))
	if err != nil {
		writeText(w, http.StatusBadRequest, "invalid specialize request")
		return
	}
	var req specializeRequest
	if err := codec.JSON.Unmarshal(body, &req); err != nil {
		writeText(w, http.StatusBadRequest, "invalid specialize request")
		return
	}
	s.specialize(w, r, host.Request{
		Location:   req.FilePath,
		EntryPoint: req.FunctionName,
		URL:        req.URL,
	})
}

// specializeV1 loads the configured code path and entry point.
func (s *Server) specializeV1(w http.ResponseWriter, r *http.Request) {
	s.specialize(w, r, host.Request{
		Location:   s.cfg.CodePath,
		EntryPoint: s.cfg.EntryPoint,
	})
}

func (s *Server) specialize(w http.ResponseWriter, r *http.Request, req host.Request) {
	// A client hanging up must not abort a load halfway.
	ctx := context.WithoutCancel(r.Context())

	start := time.Now()
	err := s.host.Specialize(ctx, req)
	metrics.ObserveSpecialize(time.Since(start), err)
	metrics.SetState(s.host.State())
	if err != nil {
		code, msg := specializeError(err)
		writeText(w, code, msg)
		return
	}
	writeText(w, http.StatusOK, "Done")
}

func specializeError(err error) (int, string) {
	switch fnerr.KindOf(err) {
	case fnerr.KindArtifactNotFound:
		return http.StatusBadRequest, "/userfunc/user not found"
	case fnerr.KindEntryPointMissing:
		return http.StatusBadRequest, "Entrypoint class is missing in the JAR or the name is incorrect"
	case fnerr.KindArtifactUnreadable:
		return http.StatusBadRequest, "Error reading the artifact archive"
	case fnerr.KindDependencyLoadFailed:
		return http.StatusBadRequest, "Error loading Function or dependent module: " + fnerr.ModuleOf(err)
	case fnerr.KindCapabilityMismatch:
		return http.StatusBadRequest, "Entrypoint does not implement the function handler interface"
	case fnerr.KindInstantiationFailed:
		return http.StatusBadRequest, "Error creating a new instance of function"
	case fnerr.KindAccessDenied:
		return http.StatusBadRequest, "Access denied creating a new instance of function"
	default:
		return http.StatusInternalServerError, "Error specializing function"
	}
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "OK")
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	b, err := codec.JSON.Marshal(s.host.Status())
	if err != nil {
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", codec.JSON.ContentType())
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// writeText writes msg as the whole body, without the trailing newline
// http.Error adds.
func writeText(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	io.WriteString(w, msg)
}
