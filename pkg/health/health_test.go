package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestRegisterCheck(t *testing.T) {
	hc := NewChecker()

	called := false
	hc.RegisterCheck("test", func() Check {
		called = true
		return Check{Status: StatusHealthy}
	})

	resp := hc.Check()
	if !called {
		t.Error("registered check was not called")
	}
	check, exists := resp.Checks["test"]
	if !exists {
		t.Fatal("check result not in response")
	}
	if check.Name != "test" {
		t.Errorf("expected check name to be filled in, got %q", check.Name)
	}
	if check.LastChecked.IsZero() {
		t.Error("LastChecked not set")
	}
}

func TestReadinessChecksAreSeparate(t *testing.T) {
	hc := NewChecker()

	called := false
	hc.RegisterReadinessCheck("ready", func() Check {
		called = true
		return Check{Status: StatusUnhealthy}
	})

	if resp := hc.Check(); resp.Status != StatusHealthy || called {
		t.Error("readiness check should not run for Check()")
	}
	if resp := hc.CheckReadiness(); resp.Status != StatusUnhealthy || !called {
		t.Error("readiness check should run for CheckReadiness()")
	}
}

func TestCheckStatusAggregation(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"no checks", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewChecker()
			for i, s := range tt.statuses {
				hc.RegisterCheck(string(rune('a'+i)), func() Check { return Check{Status: s} })
			}
			if got := hc.Check().Status; got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestTransportCheck(t *testing.T) {
	tests := []struct {
		name  string
		stats TransportStats
		want  Status
	}{
		{"not listening", TransportStats{}, StatusUnhealthy},
		{"idle", TransportStats{Listening: true}, StatusHealthy},
		{"some failures", TransportStats{Listening: true, Served: 10, Failed: 5}, StatusHealthy},
		{"mostly failing", TransportStats{Listening: true, Served: 10, Failed: 6}, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := TransportCheck(func() TransportStats { return tt.stats })()
			if check.Status != tt.want {
				t.Errorf("expected %s, got %s (%s)", tt.want, check.Status, check.Message)
			}
			if check.Details["served"] != tt.stats.Served {
				t.Errorf("expected served detail %d, got %v", tt.stats.Served, check.Details["served"])
			}
		})
	}
}

func TestMemoryCheck(t *testing.T) {
	if got := MemoryCheck(func() (uint64, uint64) { return 95, 100 })().Status; got != StatusDegraded {
		t.Errorf("expected degraded, got %s", got)
	}
	if got := MemoryCheck(func() (uint64, uint64) { return 10, 100 })().Status; got != StatusHealthy {
		t.Errorf("expected healthy, got %s", got)
	}
	if got := MemoryCheck(func() (uint64, uint64) { return 10, 0 })().Status; got != StatusHealthy {
		t.Errorf("zero sys should not divide by zero, got %s", got)
	}

	alloc, sys := RuntimeMemory()
	if alloc == 0 || sys == 0 {
		t.Errorf("expected non-zero runtime memory, got %d/%d", alloc, sys)
	}
}

func TestHTTPHandler(t *testing.T) {
	tests := []struct {
		name         string
		checkStatus  Status
		expectedCode int
	}{
		{"healthy returns 200", StatusHealthy, http.StatusOK},
		{"degraded returns 200", StatusDegraded, http.StatusOK},
		{"unhealthy returns 503", StatusUnhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewChecker()
			hc.RegisterCheck("test", func() Check {
				return Check{Status: tt.checkStatus}
			})

			rec := httptest.NewRecorder()
			hc.HTTPHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tt.expectedCode {
				t.Errorf("expected status code %d, got %d", tt.expectedCode, rec.Code)
			}
			if rec.Header().Get("Content-Type") != "application/json" {
				t.Error("expected Content-Type application/json")
			}

			var resp Response
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Status != tt.checkStatus {
				t.Errorf("expected response status %s, got %s", tt.checkStatus, resp.Status)
			}
		})
	}
}

func TestReadinessHandlerIsBinary(t *testing.T) {
	hc := NewChecker()
	hc.RegisterReadinessCheck("transport", func() Check { return Check{Status: StatusDegraded} })

	rec := httptest.NewRecorder()
	hc.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded readiness should return 503, got %d", rec.Code)
	}
}

func TestConcurrentCheckRegistration(t *testing.T) {
	hc := NewChecker()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			hc.RegisterCheck(string(rune('a'+i)), func() Check { return Check{Status: StatusHealthy} })
		}()
		go func() {
			defer wg.Done()
			hc.Check()
		}()
	}
	wg.Wait()

	if n := len(hc.Check().Checks); n != 20 {
		t.Errorf("expected 20 checks, got %d", n)
	}
}
