package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/engclin/melwatch/internal/mel"
	"github.com/engclin/melwatch/internal/ratelimit"
)

func TestHTTPSource_FetchEquipment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/equipamentos" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected authorization header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"Id": 101, "Name": "Ventilador", "SectorId": 10}]`))
	}))
	defer server.Close()

	src := NewHTTPSource(HTTPConfig{BaseURL: server.URL + "/api/", Token: "secret", EquipmentPath: "/equipamentos"}, nil, nil, nil)
	equipment, err := src.FetchEquipment(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(equipment) != 1 || equipment[0].ID != "101" || equipment[0].SectorID != "10" {
		t.Errorf("unexpected equipment %+v", equipment)
	}
}

func TestHTTPSource_FollowsPages(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		switch r.URL.Query().Get("page") {
		case "":
			w.Write([]byte(`{"data": [{"serialCode": "OS-1", "status": "aberta", "tipo": "corretiva"}], "totalPages": 2}`))
		case "2":
			w.Write([]byte(`{"data": [{"serialCode": "OS-2", "status": "aberta", "tipo": "corretiva"}], "totalPages": 2}`))
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
		}
	}))
	defer server.Close()

	src := NewHTTPSource(HTTPConfig{BaseURL: server.URL, WorkOrderPath: "ordens"}, nil, ratelimit.New(1000, 5), nil)
	orders, err := src.FetchWorkOrders(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 2 {
		t.Errorf("expected 2 orders, got %d", len(orders))
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected 2 requests, got %d", calls)
	}
}

func TestHTTPSource_ErrorStatusIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	src := NewHTTPSource(HTTPConfig{BaseURL: server.URL, EquipmentPath: "equipamentos"}, nil, nil, nil)
	_, err := src.FetchEquipment(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, mel.ErrTransientExternal) {
		t.Errorf("expected transient error, got %v", err)
	}
	var srcErr *mel.SourceError
	if !errors.As(err, &srcErr) || srcErr.Source != SourceEquipment {
		t.Errorf("expected equipment SourceError, got %v", err)
	}
}

func TestHTTPSource_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	src := NewHTTPSource(HTTPConfig{BaseURL: server.URL, WorkOrderPath: "ordens", Timeout: 50 * time.Millisecond}, nil, nil, nil)
	start := time.Now()
	_, err := src.FetchWorkOrders(context.Background())
	if !errors.Is(err, mel.ErrTransientExternal) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("fetch was not bounded by the timeout")
	}
}

func TestHTTPSource_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"id": "7", "nome": "Monitor", "setorId": "10"}]`))
	}))
	defer server.Close()

	src := NewHTTPSource(HTTPConfig{BaseURL: server.URL, EquipmentPath: "equipamentos", Retries: 2}, nil, nil, nil)
	equipment, err := src.FetchEquipment(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(equipment) != 1 || atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected one record after one retry, got %d records in %d calls", len(equipment), calls)
	}
}

func TestHTTPSource_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	src := NewHTTPSource(HTTPConfig{BaseURL: server.URL, EquipmentPath: "equipamentos", Retries: 3}, nil, nil, nil)
	if _, err := src.FetchEquipment(context.Background()); !errors.Is(err, mel.ErrTransientExternal) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected a single request for a 4xx, got %d", got)
	}
}
