package logging

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/caffeineduck/fnhost/config"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewWritesFile(t *testing.T) {
	dir := t.TempDir()
	l, err := New(config.Log{Level: "debug", Dir: dir, File: "fnhost.log"})
	if err != nil {
		t.Fatal(err)
	}
	l.Debug("hello", zap.String("k", "v"))
	_ = l.Sync()

	b, err := os.ReadFile(filepath.Join(dir, "fnhost.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"msg":"hello"`) || !strings.Contains(string(b), `"k":"v"`) {
		t.Errorf("unexpected log output: %s", b)
	}
}

func TestNewLevel(t *testing.T) {
	dir := t.TempDir()
	l, err := New(config.Log{Level: "warn", Dir: dir, File: "fnhost.log"})
	if err != nil {
		t.Fatal(err)
	}
	l.Info("dropped")
	_ = l.Sync()

	b, _ := os.ReadFile(filepath.Join(dir, "fnhost.log"))
	if strings.Contains(string(b), "dropped") {
		t.Error("info entry written at warn level")
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New(config.Log{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewNop(t *testing.T) {
	l, err := New(config.Log{})
	if err != nil {
		t.Fatal(err)
	}
	if l.Core().Enabled(zap.ErrorLevel) {
		t.Error("expected a no-op logger")
	}
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := chimw.RequestID(AccessLog(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("made"))
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("PUT", "/things?x=1", nil))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusCreated) {
		t.Errorf("expected status 201, got %v", fields["status"])
	}
	if fields["responseSize"] != int64(4) {
		t.Errorf("expected size 4, got %v", fields["responseSize"])
	}
	if fields["httpMethod"] != "PUT" || fields["uri"] != "/things" {
		t.Errorf("unexpected fields: %v", fields)
	}
	if fields["requestId"] == "" {
		t.Error("request id missing")
	}
	if entries[0].LoggerName != "access" {
		t.Errorf("expected logger access, got %s", entries[0].LoggerName)
	}
}
