package ops

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHealthz(t *testing.T) {
	ok := true
	r := NewRouter(prometheus.NewRegistry(), func() (Health, bool) {
		if ok {
			return Health{Status: "LIVE", Principal: "me"}, true
		}
		return Health{Status: "DEGRADED"}, false
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	var h Health
	if err := json.Unmarshal(w.Body.Bytes(), &h); err != nil {
		t.Fatal(err)
	}
	if h.Status != "LIVE" || h.Principal != "me" {
		t.Errorf("health = %+v", h)
	}

	ok = false
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("code = %d, want 503", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "chatalyst_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Add(3)

	r := NewRouter(reg, func() (Health, bool) { return Health{}, true })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "chatalyst_test_total 3") {
		t.Errorf("body = %s", w.Body.String())
	}
}
