package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type mockPinger struct{ err error }

func (m *mockPinger) Ping(context.Context) error { return m.err }

type mockPolicyChecker struct{ err error }

func (m *mockPolicyChecker) HealthCheck(context.Context) error { return m.err }

func TestHealth(t *testing.T) {
	testCases := []struct {
		name       string
		pinger     Pinger
		policy     PolicyChecker
		wantCode   int
		wantStatus string
	}{
		{"no dependencies", nil, nil, http.StatusOK, "SERVING"},
		{"all healthy", &mockPinger{}, &mockPolicyChecker{}, http.StatusOK, "SERVING"},
		{"database down", &mockPinger{err: errors.New("connection refused")}, &mockPolicyChecker{}, http.StatusServiceUnavailable, "NOT_SERVING"},
		{"policy broken", &mockPinger{}, &mockPolicyChecker{err: errors.New("compile")}, http.StatusServiceUnavailable, "NOT_SERVING"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHandler(tc.pinger, tc.policy).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rec.Code != tc.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tc.wantCode)
			}
			var body healthResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tc.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tc.wantStatus)
			}
		})
	}
}
