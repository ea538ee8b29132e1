package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/caffeineduck/fnhost/fnerr"
	"github.com/caffeineduck/fnhost/host"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestResultLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fnerr.NotSpecialized(), "NotSpecialized"},
		{errors.New("plain"), "error"},
	}
	for _, tt := range tests {
		if got := result(tt.err); got != tt.want {
			t.Errorf("expected %s, got %s", tt.want, got)
		}
	}
}

func TestObserve(t *testing.T) {
	before := testutil.ToFloat64(specializations.WithLabelValues("ArtifactNotFound"))
	ObserveSpecialize(time.Millisecond, fnerr.ArtifactNotFound("/x", nil))
	if got := testutil.ToFloat64(specializations.WithLabelValues("ArtifactNotFound")); got != before+1 {
		t.Errorf("expected %v, got %v", before+1, got)
	}

	before = testutil.ToFloat64(invocations.WithLabelValues("ok"))
	ObserveInvoke(time.Millisecond, nil)
	if got := testutil.ToFloat64(invocations.WithLabelValues("ok")); got != before+1 {
		t.Errorf("expected %v, got %v", before+1, got)
	}
}

func TestSetState(t *testing.T) {
	SetState(host.Ready)
	if testutil.ToFloat64(hostState.WithLabelValues("Ready")) != 1 {
		t.Error("Ready not set")
	}
	SetState(host.Failed)
	if testutil.ToFloat64(hostState.WithLabelValues("Ready")) != 0 ||
		testutil.ToFloat64(hostState.WithLabelValues("Failed")) != 1 {
		t.Error("state gauge not switched")
	}
}

func TestCollectUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Collect)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", Handler())

	before := testutil.ToFloat64(totalHTTPRequests.WithLabelValues("418", "GET", "/items/{id}"))
	for _, id := range []string{"1", "2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/items/"+id, nil))
	}
	if got := testutil.ToFloat64(totalHTTPRequests.WithLabelValues("418", "GET", "/items/{id}")); got != before+2 {
		t.Errorf("expected %v, got %v", before+2, got)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "fnhost_http_requests_total") {
		t.Error("metrics endpoint does not expose collectors")
	}
}
