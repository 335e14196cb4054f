package testhelpers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/engclin/melwatch/internal/database"
)

func TestHTTPTestContext_NewAndExecute(t *testing.T) {
	ctx := NewHTTPTestContext(t, http.MethodGet, "/test", nil)

	if ctx.T == nil {
		t.Error("T should not be nil")
	}
	if ctx.Recorder == nil {
		t.Error("Recorder should not be nil")
	}
	if ctx.Request.Method != http.MethodGet {
		t.Errorf("expected method GET, got %s", ctx.Request.Method)
	}
}

func TestHTTPTestContext_WithBearerToken(t *testing.T) {
	ctx := NewHTTPTestContext(t, http.MethodGet, "/test", nil)
	ctx.WithBearerToken("my-token")

	expected := "Bearer my-token"
	if ctx.Request.Header.Get("Authorization") != expected {
		t.Errorf("expected %q, got %q", expected, ctx.Request.Header.Get("Authorization"))
	}
}

func TestHTTPTestContext_WithJSONBodyKeepsHeaders(t *testing.T) {
	ctx := NewHTTPTestContext(t, http.MethodPost, "/test", nil).
		WithBearerToken("tok").
		WithJSONBody(map[string]string{"key": "value"})

	if got := ctx.Request.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", got)
	}
	if got := ctx.Request.Header.Get("Authorization"); got != "Bearer tok" {
		t.Errorf("authorization header lost, got %q", got)
	}
}

func TestHTTPTestContext_DecodeJSON(t *testing.T) {
	ctx := NewHTTPTestContext(t, http.MethodGet, "/test", nil)

	ctx.ExecuteFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"result": "ok"})
	})

	var result map[string]string
	ctx.AssertStatus(http.StatusOK).AssertHeader("Content-Type", "application/json").DecodeJSON(&result)

	if result["result"] != "ok" {
		t.Errorf("expected result 'ok', got %q", result["result"])
	}
}

func TestHTTPTestContext_WithPathValue(t *testing.T) {
	ctx := NewHTTPTestContext(t, http.MethodGet, "/api/mel/rules/7", nil).WithPathValue("id", "7")
	if got := ctx.Request.PathValue("id"); got != "7" {
		t.Errorf("expected path value 7, got %q", got)
	}
}

func TestSetupTestDB(t *testing.T) {
	db := SetupTestDB(t)

	rule := NewMelRuleBuilder().Build()
	if err := db.Create(&rule).Error; err != nil {
		t.Fatalf("create rule: %v", err)
	}
	var count int64
	db.Model(&database.MelRule{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 rule, got %d", count)
	}
}

func TestFixedClock(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := NewFixedClock(start)
	clock.Advance(time.Hour)
	if !clock.Now().Equal(start.Add(time.Hour)) {
		t.Errorf("expected %v, got %v", start.Add(time.Hour), clock.Now())
	}
}

func TestMustCompleteWithin_Success(t *testing.T) {
	MustCompleteWithin(t, time.Second, func() {
		time.Sleep(5 * time.Millisecond)
	})
}

func TestEventually(t *testing.T) {
	start := time.Now()
	Eventually(t, time.Second, func() bool {
		return time.Since(start) > 10*time.Millisecond
	}, "elapsed")
}
