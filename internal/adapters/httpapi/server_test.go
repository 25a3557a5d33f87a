package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghalamif/VoltLog/internal/adapters/ringbuffer"
	"github.com/ghalamif/VoltLog/internal/domain"
)

func filledBuffer(t *testing.T) *ringbuffer.Buffer {
	t.Helper()
	buf := ringbuffer.New(3, []int{2, 0})
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		at := ts.Add(time.Duration(i) * time.Second)
		buf.Push(domain.Batch{Seq: uint64(i + 1), Timestamp: at, Readings: []domain.Reading{
			{Timestamp: at, ChannelID: 2, Value: float64(i), Status: domain.StatusOK},
			{Timestamp: at, ChannelID: 0, Value: float64(10 + i), Status: domain.StatusOK},
		}})
	}
	return buf
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandleChannels(t *testing.T) {
	srv := NewServer(filledBuffer(t), nil, nil)
	rr := get(t, srv, "/api/v1/channels")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var ids []int
	if err := json.Unmarshal(rr.Body.Bytes(), &ids); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 0 {
		t.Fatalf("expected configured order [2 0], got %v", ids)
	}
}

func TestHandleChannelReadings(t *testing.T) {
	srv := NewServer(filledBuffer(t), nil, nil)

	rr := get(t, srv, "/api/v1/channels/2/readings")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var readings []domain.Reading
	if err := json.Unmarshal(rr.Body.Bytes(), &readings); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(readings) != 3 || readings[0].Value != 1 || readings[2].Value != 3 {
		t.Fatalf("expected the 3 newest readings oldest first, got %+v", readings)
	}

	rr = get(t, srv, "/api/v1/channels/2/readings?limit=1")
	readings = nil
	if err := json.Unmarshal(rr.Body.Bytes(), &readings); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(readings) != 1 || readings[0].Value != 3 {
		t.Fatalf("limit=1 should return the newest reading, got %+v", readings)
	}
}

func TestHandleChannelReadingsErrors(t *testing.T) {
	srv := NewServer(filledBuffer(t), nil, nil)
	cases := map[string]int{
		"/api/v1/channels/7/readings":          http.StatusNotFound,
		"/api/v1/channels/x/readings":          http.StatusBadRequest,
		"/api/v1/channels/2/history":           http.StatusNotFound,
		"/api/v1/channels/2/readings?limit=-1": http.StatusBadRequest,
	}
	for path, want := range cases {
		if rr := get(t, srv, path); rr.Code != want {
			t.Fatalf("%s: expected %d, got %d", path, want, rr.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/channels", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestHandleAllReadings(t *testing.T) {
	srv := NewServer(filledBuffer(t), nil, nil)
	rr := get(t, srv, "/api/v1/readings?limit=2")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var all map[string][]domain.Reading
	if err := json.Unmarshal(rr.Body.Bytes(), &all); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(all) != 2 || len(all["0"]) != 2 || all["0"][1].Value != 13 {
		t.Fatalf("unexpected snapshot %+v", all)
	}
}

func TestHealthz(t *testing.T) {
	degraded := false
	srv := NewServer(filledBuffer(t), func() bool { return degraded }, nil)
	if rr := get(t, srv, "/healthz"); rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("expected ok, got %d %q", rr.Code, rr.Body.String())
	}
	degraded = true
	if rr := get(t, srv, "/healthz"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while degraded, got %d", rr.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "voltlog_polls_total", Help: "polls"})
	reg.MustRegister(c)
	c.Inc()

	srv := NewServer(filledBuffer(t), nil, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	rr := get(t, srv, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body := rr.Body.String(); !strings.Contains(body, "voltlog_polls_total 1") {
		t.Fatalf("metrics body missing counter:\n%s", body)
	}
}
