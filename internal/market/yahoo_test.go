package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lachlanbr/shortbot/internal/domain"
)

const chartBody = `{
  "chart": {
    "result": [
      {
        "meta": {
          "currency": "AUD",
          "symbol": "BHP.AX",
          "exchangeName": "ASX",
          "regularMarketPrice": 42.5,
          "regularMarketTime": 1718150400
        },
        "timestamp": [1717977600, 1718064000, 1718150400],
        "indicators": {
          "quote": [
            {
              "open":   [41.0, 42.0, 42.4],
              "high":   [41.5, 42.8, 42.6],
              "low":    [40.8, 41.9, 42.1],
              "close":  [41.2, 42.5, null],
              "volume": [1000000, 1200000, 900000]
            }
          ]
        }
      }
    ],
    "error": null
  }
}`

const chartErrorBody = `{
  "chart": {
    "result": null,
    "error": {
      "code": "Not Found",
      "description": "No data found, symbol may be delisted"
    }
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *YahooClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewYahooClient(YahooConfig{
		BaseURL:   srv.URL,
		UserAgent: "shortbot-test",
		Timeout:   5 * time.Second,
	})
}

func TestHistoryParsesBars(t *testing.T) {
	var gotPath, gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartBody))
	})

	bars, err := client.History(context.Background(), "BHP", domain.PeriodThreeMonths, domain.IntervalDay)
	if err != nil {
		t.Fatalf("History: %v", err)
	}

	// The bare ASX code gets the Yahoo exchange suffix.
	if !strings.HasSuffix(gotPath, "/BHP.AX") {
		t.Errorf("request path = %q, want .AX suffix", gotPath)
	}
	if !strings.Contains(gotQuery, "range=3mo") || !strings.Contains(gotQuery, "interval=1d") {
		t.Errorf("query = %q, want range=3mo and interval=1d", gotQuery)
	}

	// The third bar has a null close and must be dropped.
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	if bars[0].Close != 41.2 || bars[1].Close != 42.5 {
		t.Errorf("closes = %v, %v; want 41.2, 42.5", bars[0].Close, bars[1].Close)
	}
	if bars[1].Volume != 1200000 {
		t.Errorf("volume = %d, want 1200000", bars[1].Volume)
	}
	if bars[0].Timestamp != time.Unix(1717977600, 0).UTC() {
		t.Errorf("timestamp = %v", bars[0].Timestamp)
	}
}

func TestHistorySuffixPassthrough(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(chartBody))
	})

	if _, err := client.History(context.Background(), "BHP.AX", domain.PeriodDay, domain.IntervalDay); err != nil {
		t.Fatalf("History: %v", err)
	}
	if strings.HasSuffix(gotPath, ".AX.AX") {
		t.Errorf("suffix doubled: %q", gotPath)
	}
}

func TestLatestBuildsQuote(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chartBody))
	})

	q, err := client.Latest(context.Background(), "BHP")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}

	if q.Symbol != "BHP" {
		t.Errorf("symbol = %q, want BHP (bare code, not Yahoo ticker)", q.Symbol)
	}
	if q.Last != 42.5 {
		t.Errorf("last = %v, want 42.5 from meta", q.Last)
	}
	if q.Open != 41.0 {
		t.Errorf("open = %v, want 41.0 from first bar", q.Open)
	}
	if q.High != 42.8 {
		t.Errorf("high = %v, want 42.8", q.High)
	}
	if q.Low != 40.8 {
		t.Errorf("low = %v, want 40.8", q.Low)
	}
	if q.Volume != 2200000 {
		t.Errorf("volume = %d, want sum of non-null bars 2200000", q.Volume)
	}
}

func TestChartErrorIsNoData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chartErrorBody))
	})

	_, err := client.History(context.Background(), "NOPE", domain.PeriodMonth, domain.IntervalDay)
	if !errors.Is(err, domain.ErrNoData) {
		t.Errorf("got %v, want ErrNoData", err)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, domain.ErrNoData},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusUnauthorized, domain.ErrUnauthorized},
	}
	for _, tc := range cases {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		})
		_, err := client.Latest(context.Background(), "BHP")
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: got %v, want %v", tc.status, err, tc.want)
		}
	}
}
