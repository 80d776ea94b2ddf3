package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lachlanbr/shortbot/internal/domain"
)

type fakeWatchlistService struct {
	entries []domain.WatchlistEntry
	removed []string
}

func (f *fakeWatchlistService) Add(ctx context.Context, symbol string) (domain.WatchlistEntry, error) {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if !strings.HasSuffix(normalized, ".AX") {
		normalized += ".AX"
	}
	if strings.ContainsAny(normalized, " !;") {
		return domain.WatchlistEntry{}, domain.ErrInvalidSymbol
	}
	entry := domain.WatchlistEntry{Symbol: normalized, LastPrice: 42.5, AddedAt: time.Now().UTC()}
	f.entries = append(f.entries, entry)
	return entry, nil
}

func (f *fakeWatchlistService) Remove(ctx context.Context, symbol string) error {
	for _, e := range f.entries {
		if strings.EqualFold(strings.TrimSuffix(e.Symbol, ".AX"), strings.TrimSuffix(strings.ToUpper(symbol), ".AX")) {
			f.removed = append(f.removed, e.Symbol)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeWatchlistService) List(ctx context.Context) ([]domain.WatchlistEntry, error) {
	return f.entries, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestListWatchlist(t *testing.T) {
	svc := &fakeWatchlistService{entries: []domain.WatchlistEntry{
		{Symbol: "BHP.AX", LastPrice: 41.2, AddedAt: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)},
	}}
	h := NewWatchlistHandler(svc, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/watchlist", nil)
	rec := httptest.NewRecorder()
	h.ListWatchlist(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Symbols []struct {
			Symbol    string  `json:"symbol"`
			LastPrice float64 `json:"last_price"`
			AddedAt   string  `json:"added_at"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Symbols) != 1 || resp.Symbols[0].Symbol != "BHP.AX" {
		t.Errorf("symbols = %+v, want BHP.AX", resp.Symbols)
	}
	if resp.Symbols[0].AddedAt != "2025-07-01T00:00:00Z" {
		t.Errorf("added_at = %q, want RFC3339", resp.Symbols[0].AddedAt)
	}
}

func TestAddSymbol(t *testing.T) {
	svc := &fakeWatchlistService{}
	h := NewWatchlistHandler(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/watchlist", strings.NewReader(`{"symbol":"bhp"}`))
	rec := httptest.NewRecorder()
	h.AddSymbol(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Symbol string `json:"symbol"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Symbol != "BHP.AX" {
		t.Errorf("symbol = %q, want normalized BHP.AX", resp.Symbol)
	}
}

func TestAddSymbolValidation(t *testing.T) {
	h := NewWatchlistHandler(&fakeWatchlistService{}, testLogger())

	cases := []struct {
		name string
		body string
	}{
		{"empty body symbol", `{"symbol":""}`},
		{"invalid symbol", `{"symbol":"not a symbol"}`},
		{"malformed json", `{"symbol"`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/watchlist", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.AddSymbol(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestRemoveSymbol(t *testing.T) {
	svc := &fakeWatchlistService{entries: []domain.WatchlistEntry{{Symbol: "BHP.AX"}}}
	h := NewWatchlistHandler(svc, testLogger())

	req := httptest.NewRequest(http.MethodDelete, "/api/watchlist/BHP.AX", nil)
	req.SetPathValue("symbol", "BHP.AX")
	rec := httptest.NewRecorder()
	h.RemoveSymbol(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if len(svc.removed) != 1 {
		t.Errorf("removed = %v, want one removal", svc.removed)
	}
}

func TestRemoveSymbolNotFound(t *testing.T) {
	h := NewWatchlistHandler(&fakeWatchlistService{}, testLogger())

	req := httptest.NewRequest(http.MethodDelete, "/api/watchlist/ZZZ", nil)
	req.SetPathValue("symbol", "ZZZ")
	rec := httptest.NewRecorder()
	h.RemoveSymbol(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
