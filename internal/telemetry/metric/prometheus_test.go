package metric

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestDispatcherMetrics(t *testing.T) {
	r := NewRegistry()

	r.RecordRequest("get", "ok")
	r.RecordRequest("get", "ok")
	r.RecordRequest("set", "Invalid key")
	r.ObserveRequestDuration("get", 0.001)
	r.RecordRejected("badrequest")
	r.IncDispatchers()
	r.IncDispatchers()
	r.DecDispatchers()

	body := scrape(t, r)

	for _, want := range []string{
		`corslight_requests_total{result="ok",verb="get"} 2`,
		`corslight_requests_total{result="Invalid key",verb="set"} 1`,
		`corslight_request_duration_seconds_count{verb="get"} 1`,
		`corslight_rejected_messages_total{reason="badrequest"} 1`,
		`corslight_dispatchers_active 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s", want)
		}
	}
}

func TestStorageMetrics(t *testing.T) {
	r := NewRegistry()

	r.RecordEviction("deadline")
	r.RecordEviction("session")
	r.RecordEviction("session")

	body := scrape(t, r)
	if !strings.Contains(body, `corslight_evictions_total{reason="deadline"} 1`) {
		t.Error(`expected corslight_evictions_total{reason="deadline"} 1`)
	}
	if !strings.Contains(body, `corslight_evictions_total{reason="session"} 2`) {
		t.Error(`expected corslight_evictions_total{reason="session"} 2`)
	}
}

func TestClientMetrics(t *testing.T) {
	r := NewRegistry()

	r.SetClientOpenRequests(3)
	r.RecordClientError("unsolicited")
	r.ObserveClientRoundTrip("set", "ok", 0.02)

	body := scrape(t, r)
	for _, want := range []string{
		"corslight_client_open_requests 3",
		`corslight_client_errors_total{kind="unsolicited"} 1`,
		`corslight_client_round_trip_seconds_count{result="ok",verb="set"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s", want)
		}
	}
}

func TestRuntimeCollectors(t *testing.T) {
	body := scrape(t, NewRegistry())
	if !strings.Contains(body, "go_goroutines") {
		t.Error("expected go runtime metrics")
	}
}

func TestNilRegistry(t *testing.T) {
	var r *Registry

	// Must not panic.
	r.RecordRequest("get", "ok")
	r.ObserveRequestDuration("get", 1)
	r.RecordRejected("badaction")
	r.IncDispatchers()
	r.DecDispatchers()
	r.RecordEviction("deadline")
	r.ObserveClientRoundTrip("get", "ok", 1)
	r.SetClientOpenRequests(1)
	r.RecordClientError("malformed")
}

func TestConcurrentMetricUpdates(t *testing.T) {
	r := NewRegistry()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				r.RecordRequest("get", "ok")
				r.ObserveRequestDuration("get", 0.001)
				r.RecordEviction("session")
				r.SetClientOpenRequests(j)
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if !strings.Contains(scrape(t, r), `corslight_requests_total{result="ok",verb="get"} 1000`) {
		t.Error("expected 1000 counted requests")
	}
}
