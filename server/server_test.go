package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/caffeineduck/fnhost/config"
	"github.com/caffeineduck/fnhost/host"
	"github.com/caffeineduck/fnhost/internal/wasmtest"
	"github.com/caffeineduck/fnhost/loader"
	"go.uber.org/zap"
)

type testServer struct {
	*httptest.Server
	host *host.Host
	srv  *Server
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Runtime.PoolSize = 2
	for _, m := range mutate {
		m(&cfg)
	}

	l, err := loader.New(LoaderOptions(cfg.Runtime, zap.NewNop())...)
	if err != nil {
		t.Fatalf("loader: %v", err)
	}
	h := host.New(l)
	server := New(h, cfg, zap.NewNop())
	srv := httptest.NewServer(server.Routes())
	t.Cleanup(func() {
		srv.Close()
		h.Close(t.Context())
		l.Close()
	})
	return &testServer{Server: srv, host: h, srv: server}
}

func (s *testServer) do(t *testing.T, method, path, body string) (int, string, http.Header) {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, s.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, string(b), resp.Header
}

func (s *testServer) specialize(t *testing.T, path, entry string) (int, string) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"filepath": path, "functionName": entry})
	code, msg, _ := s.do(t, "POST", "/v2/specialize", string(body))
	return code, msg
}

func TestInvokeBeforeSpecialize(t *testing.T) {
	s := newTestServer(t)

	for _, method := range []string{"GET", "POST", "PUT", "DELETE"} {
		code, body, hdr := s.do(t, method, "/", "")
		if code != http.StatusBadRequest || body != "Container not specialized" {
			t.Errorf("%s: expected 400 Container not specialized, got %d %q", method, code, body)
		}
		if hdr.Get(InvocationHeader) == "" {
			t.Errorf("%s: invocation id missing", method)
		}
	}
}

func TestSpecializeThenInvoke(t *testing.T) {
	s := newTestServer(t)

	code, msg := s.specialize(t, wasmtest.HelloJar(t), "io.fission.HelloWorld")
	if code != http.StatusOK || msg != "Done" {
		t.Fatalf("expected 200 Done, got %d %q", code, msg)
	}

	for _, path := range []string{"/", "/any/path?q=1"} {
		code, body, hdr := s.do(t, "GET", path, "")
		if code != http.StatusOK || body != "Hello World!" {
			t.Errorf("%s: expected 200 Hello World!, got %d %q", path, code, body)
		}
		if ct := hdr.Get("Content-Type"); ct != "text/plain" {
			t.Errorf("%s: expected text/plain, got %q", path, ct)
		}
	}
}

func TestSpecializeMissingArtifact(t *testing.T) {
	s := newTestServer(t)

	code, msg := s.specialize(t, "/nonexistent/user.jar", "io.fission.HelloWorld")
	if code != http.StatusBadRequest || msg != "/userfunc/user not found" {
		t.Errorf("expected 400 /userfunc/user not found, got %d %q", code, msg)
	}
	if s.host.State() != host.Failed {
		t.Errorf("expected Failed, got %s", s.host.State())
	}
}

func TestSpecializeErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   func(tb testing.TB) string
		entry  string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:  "empty function name",
			path:  wasmtest.HelloJar,
			entry: "",
			want:  "Entrypoint class is missing in the JAR or the name is incorrect",
		},
		{
			name:  "unknown function name",
			path:  wasmtest.HelloJar,
			entry: "io.fission.Missing",
			want:  "Entrypoint class is missing in the JAR or the name is incorrect",
		},
		{
			name: "corrupt archive",
			path: func(t testing.TB) string {
				return wasmtest.WriteFile(t, "user.jar", []byte("not a zip archive"))
			},
			entry: "io.fission.HelloWorld",
			want:  "Error reading the artifact archive",
		},
		{
			name: "missing dependency",
			path: func(t testing.TB) string {
				return wasmtest.WriteZip(t, "user.jar", wasmtest.E("io/fission/Fn.wasm", wasmtest.MissingImport()))
			},
			entry: "io.fission.Fn",
			want:  "Error loading Function or dependent module: io.fission.Fn",
		},
		{
			name: "no handler capability",
			path: func(t testing.TB) string {
				return wasmtest.WriteZip(t, "user.jar", wasmtest.E("io/fission/Fn.wasm", wasmtest.NoHandler()))
			},
			entry: "io.fission.Fn",
			want:  "Entrypoint does not implement the function handler interface",
		},
		{
			name: "initialization traps",
			path: func(t testing.TB) string {
				return wasmtest.WriteZip(t, "user.jar", wasmtest.E("io/fission/Fn.wasm", wasmtest.InitTrap()))
			},
			entry: "io.fission.Fn",
			want:  "Error creating a new instance of function",
		},
		{
			name: "wasi not granted",
			path: func(t testing.TB) string {
				return wasmtest.WriteZip(t, "user.jar", wasmtest.E("io/fission/Fn.wasm", wasmtest.ImportsWASI()))
			},
			entry:  "io.fission.Fn",
			mutate: func(c *config.Config) { c.Runtime.AllowWASI = false },
			want:   "Access denied creating a new instance of function",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mutate []func(*config.Config)
			if tt.mutate != nil {
				mutate = append(mutate, tt.mutate)
			}
			s := newTestServer(t, mutate...)

			code, msg := s.specialize(t, tt.path(t), tt.entry)
			if code != http.StatusBadRequest || msg != tt.want {
				t.Errorf("expected 400 %q, got %d %q", tt.want, code, msg)
			}
		})
	}
}

func TestSpecializeMalformedRequest(t *testing.T) {
	s := newTestServer(t)

	code, msg, _ := s.do(t, "POST", "/v2/specialize", "{not json")
	if code != http.StatusBadRequest || msg != "invalid specialize request" {
		t.Errorf("expected 400 invalid specialize request, got %d %q", code, msg)
	}
	if s.host.State() != host.Unspecialized {
		t.Errorf("malformed request changed state to %s", s.host.State())
	}
}

func TestFailedSpecializeKeepsHandler(t *testing.T) {
	s := newTestServer(t)

	if code, msg := s.specialize(t, wasmtest.HelloJar(t), "io.fission.HelloWorld"); code != http.StatusOK {
		t.Fatalf("specialize: %d %q", code, msg)
	}

	bad := wasmtest.WriteZip(t, "bad.jar", wasmtest.E("io/fission/Fn.wasm", wasmtest.NoHandler()))
	code, msg := s.specialize(t, bad, "io.fission.Fn")
	if code != http.StatusBadRequest || msg != "Entrypoint does not implement the function handler interface" {
		t.Fatalf("expected capability mismatch, got %d %q", code, msg)
	}

	code, body, _ := s.do(t, "GET", "/", "")
	if code != http.StatusOK || body != "Hello World!" {
		t.Errorf("prior handler not callable: %d %q", code, body)
	}
}

func TestSpecializeV1UsesConfig(t *testing.T) {
	jar := wasmtest.HelloJar(t)
	s := newTestServer(t, func(c *config.Config) {
		c.CodePath = jar
		c.EntryPoint = "io.fission.HelloWorld"
	})

	code, msg, _ := s.do(t, "POST", "/specialize", "")
	if code != http.StatusOK || msg != "Done" {
		t.Fatalf("expected 200 Done, got %d %q", code, msg)
	}
	if code, body, _ := s.do(t, "GET", "/", ""); code != http.StatusOK || body != "Hello World!" {
		t.Errorf("unexpected response: %d %q", code, body)
	}
}

func TestEchoRoundTrip(t *testing.T) {
	s := newTestServer(t)

	jar := wasmtest.WriteZip(t, "echo.jar", wasmtest.E("io/fission/Echo.wasm", wasmtest.Echo()))
	if code, msg := s.specialize(t, jar, "io.fission.Echo"); code != http.StatusOK {
		t.Fatalf("specialize: %d %q", code, msg)
	}

	code, body, _ := s.do(t, "PUT", "/items/7", "ping")
	if code != http.StatusOK || body != "ping" {
		t.Errorf("expected 200 ping, got %d %q", code, body)
	}
}

func TestEchoNonFiniteValue(t *testing.T) {
	s := newTestServer(t)

	jar := wasmtest.WriteZip(t, "echo.jar", wasmtest.E("io/fission/Echo.wasm", wasmtest.Echo()))
	if code, msg := s.specialize(t, jar, "io.fission.Echo"); code != http.StatusOK {
		t.Fatalf("specialize: %d %q", code, msg)
	}

	for _, body := range []string{"x = nan\n", "x = inf\n", "x = -inf\n"} {
		req, err := http.NewRequestWithContext(t.Context(), "POST", s.URL+"/", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Content-Type", "application/toml")
		resp, err := s.Client().Do(req)
		if err != nil {
			t.Fatal(err)
		}
		got, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || string(got) != body {
			t.Errorf("%q: expected 200 with raw body, got %d %q", body, resp.StatusCode, got)
		}
	}
}

// brokenConn accepts headers and fails every body write, like a client that
// hung up mid-response.
type brokenConn struct {
	header       http.Header
	writeHeaders int
}

func (c *brokenConn) Header() http.Header { return c.header }

func (c *brokenConn) WriteHeader(int) { c.writeHeaders++ }

func (c *brokenConn) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestInvokeWriteFailureWritesHeaderOnce(t *testing.T) {
	s := newTestServer(t)
	if code, msg := s.specialize(t, wasmtest.HelloJar(t), "io.fission.HelloWorld"); code != http.StatusOK {
		t.Fatalf("specialize: %d %q", code, msg)
	}

	w := &brokenConn{header: http.Header{}}
	s.srv.invoke(w, httptest.NewRequest("GET", "/", nil))
	if w.writeHeaders != 1 {
		t.Errorf("expected one WriteHeader call, got %d", w.writeHeaders)
	}
	if ct := w.header.Get("Content-Type"); ct != "text/plain" {
		t.Errorf("function headers replaced after failed write: %q", ct)
	}
}

func TestHandlerFailureIs500(t *testing.T) {
	s := newTestServer(t)

	jar := wasmtest.WriteZip(t, "trap.jar", wasmtest.E("io/fission/Trap.wasm", wasmtest.Trap()))
	if code, msg := s.specialize(t, jar, "io.fission.Trap"); code != http.StatusOK {
		t.Fatalf("specialize: %d %q", code, msg)
	}

	code, body, _ := s.do(t, "GET", "/", "")
	if code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", code)
	}
	if !strings.Contains(body, "HandlerExecutionError") {
		t.Errorf("expected handler error in body, got %q", body)
	}
}

func TestBodyTooLarge(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.MaxBodyBytes = 4 })

	code, _, _ := s.do(t, "POST", "/", "0123456789")
	if code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", code)
	}
}

func TestOperationalRoutes(t *testing.T) {
	s := newTestServer(t)

	if code, body, _ := s.do(t, "GET", "/healthz", ""); code != http.StatusOK || body != "OK" {
		t.Errorf("healthz: %d %q", code, body)
	}

	if code, msg := s.specialize(t, wasmtest.HelloJar(t), "io.fission.HelloWorld"); code != http.StatusOK {
		t.Fatalf("specialize: %d %q", code, msg)
	}

	code, body, hdr := s.do(t, "GET", "/v2/status", "")
	if code != http.StatusOK || hdr.Get("Content-Type") != "application/json" {
		t.Fatalf("status: %d %s", code, hdr.Get("Content-Type"))
	}
	var st struct {
		State      string   `json:"state"`
		EntryPoint string   `json:"entryPoint"`
		Generation uint64   `json:"generation"`
		Modules    []string `json:"modules"`
		Digest     string   `json:"digest"`
	}
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.State != "Ready" || st.Generation != 1 || st.EntryPoint != "io.fission.HelloWorld" {
		t.Errorf("unexpected status: %+v", st)
	}
	if len(st.Modules) != 1 || !strings.HasPrefix(st.Digest, "sha256:") {
		t.Errorf("unexpected artifact view: %+v", st)
	}

	code, body, _ = s.do(t, "GET", "/metrics", "")
	if code != http.StatusOK || !strings.Contains(body, "fnhost_specializations_total") {
		t.Errorf("metrics: %d", code)
	}
}
