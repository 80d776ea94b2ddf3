package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeRuntime struct {
	running  bool
	stopped  int
	refreshs int
	stopErr  error
}

func (f *fakeRuntime) Start() { f.running = true }

func (f *fakeRuntime) Stop(ctx context.Context) error {
	f.stopped++
	if f.stopErr != nil {
		return f.stopErr
	}
	f.running = false
	return nil
}

func (f *fakeRuntime) Running() bool { return f.running }

func (f *fakeRuntime) Refresh(ctx context.Context) error {
	f.refreshs++
	return nil
}

func TestStartTrading(t *testing.T) {
	rt := &fakeRuntime{}
	h := NewTradingHandler(rt, testLogger())

	rec := httptest.NewRecorder()
	h.StartTrading(rec, httptest.NewRequest(http.MethodPost, "/api/trading/start", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !rt.running {
		t.Error("runtime not started")
	}
	var resp struct {
		Running bool `json:"running"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Running {
		t.Error("response running = false, want true")
	}
}

func TestStopTrading(t *testing.T) {
	rt := &fakeRuntime{running: true}
	h := NewTradingHandler(rt, testLogger())

	rec := httptest.NewRecorder()
	h.StopTrading(rec, httptest.NewRequest(http.MethodPost, "/api/trading/stop", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rt.running || rt.stopped != 1 {
		t.Errorf("runtime running=%v stops=%d, want stopped once", rt.running, rt.stopped)
	}
}

func TestTriggerRefresh(t *testing.T) {
	rt := &fakeRuntime{}
	h := NewTradingHandler(rt, testLogger())

	rec := httptest.NewRecorder()
	h.TriggerRefresh(rec, httptest.NewRequest(http.MethodPost, "/api/trading/refresh", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rt.refreshs != 1 {
		t.Errorf("refreshes = %d, want 1", rt.refreshs)
	}
}

func TestTradingEndpointsWithoutRuntime(t *testing.T) {
	// Server mode has no trading loop; the controls answer 409.
	h := NewTradingHandler(nil, testLogger())

	endpoints := []func(http.ResponseWriter, *http.Request){
		h.StartTrading, h.StopTrading, h.TriggerRefresh,
	}
	for _, endpoint := range endpoints {
		rec := httptest.NewRecorder()
		endpoint(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409 without runtime", rec.Code)
		}
	}
}
