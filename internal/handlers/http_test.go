package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/engclin/melwatch/internal/services"
	"github.com/engclin/melwatch/internal/testhelpers"
)

type fakePassStatus struct {
	result *services.ReconcileResult
	at     time.Time
	err    error
}

func (f fakePassStatus) Last() (*services.ReconcileResult, time.Time, error) {
	return f.result, f.at, f.err
}

func healthMux(h *HTTPHandler) *http.ServeMux {
	mux := http.NewServeMux()
	h.SetupRoutes(mux)
	return mux
}

func TestHTTPHandler_Health(t *testing.T) {
	h := NewHTTPHandler(func(context.Context) error { return nil }, nil, nil)

	var body map[string]interface{}
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/health", nil).
		Execute(healthMux(h)).
		AssertStatus(http.StatusOK).
		DecodeJSON(&body)

	if body["status"] != "ok" || body["version"] != Version || body["database"] != "ok" {
		t.Errorf("unexpected health body %v", body)
	}
	if _, ok := body["last_reconcile"]; ok {
		t.Error("last_reconcile should be absent before any pass")
	}
}

func TestHTTPHandler_HealthDatabaseDown(t *testing.T) {
	h := NewHTTPHandler(func(context.Context) error { return errors.New("connection refused") }, nil, nil)
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/health", nil).
		Execute(healthMux(h)).
		AssertStatus(http.StatusServiceUnavailable).
		AssertBodyContains("degraded").
		AssertBodyContains("connection refused")
}

func TestHTTPHandler_HealthReportsLastPass(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	h := NewHTTPHandler(nil, fakePassStatus{result: &services.ReconcileResult{AlertsCreated: 2}, at: at}, nil)
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/health", nil).
		Execute(healthMux(h)).
		AssertStatus(http.StatusOK).
		AssertBodyContains(`"alerts_created":2`)

	h = NewHTTPHandler(nil, fakePassStatus{at: at, err: errors.New("fetch_work_orders failed")}, nil)
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/health", nil).
		Execute(healthMux(h)).
		AssertStatus(http.StatusOK).
		AssertBodyContains("fetch_work_orders failed")
}

func TestHTTPHandler_MethodNotAllowed(t *testing.T) {
	h := NewHTTPHandler(nil, nil, nil)
	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/health", nil).
		Execute(healthMux(h)).
		AssertStatus(http.StatusMethodNotAllowed)
}

func TestHTTPHandler_Metrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("melwatch_up 1")) // ignore: recorder never fails
	})
	h := NewHTTPHandler(nil, nil, metrics)
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/metrics", nil).
		Execute(healthMux(h)).
		AssertStatus(http.StatusOK).
		AssertBodyContains("melwatch_up")
}
