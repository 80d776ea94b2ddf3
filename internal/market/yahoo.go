// Package market provides ASX market data via the Yahoo Finance chart API,
// with cache-backed quote lookups and request rate limiting.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lachlanbr/shortbot/internal/domain"
)

// YahooClient is the REST client for the Yahoo Finance chart API.
type YahooClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// YahooConfig holds construction parameters for YahooClient.
type YahooConfig struct {
	// BaseURL is the API root, e.g. "https://query1.finance.yahoo.com".
	BaseURL string
	// UserAgent is sent with every request; Yahoo rejects the Go default.
	UserAgent string
	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// NewYahooClient creates a new Yahoo Finance chart API client.
func NewYahooClient(cfg YahooConfig) *YahooClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &YahooClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// yahooSymbol maps a bare ASX code to its Yahoo ticker by appending the .AX
// suffix. Symbols that already carry an exchange suffix pass through.
func yahooSymbol(symbol string) string {
	if strings.Contains(symbol, ".") {
		return symbol
	}
	return symbol + ".AX"
}

// Latest returns the most recent quote for a symbol, built from today's
// one-minute bars. It returns domain.ErrNoData when Yahoo has no bars for the
// symbol.
func (y *YahooClient) Latest(ctx context.Context, symbol string) (domain.Quote, error) {
	result, err := y.chart(ctx, symbol, domain.PeriodDay, domain.IntervalMinute)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("market/yahoo: latest %s: %w", symbol, err)
	}

	q, err := result.ToQuote(symbol)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("market/yahoo: latest %s: %w", symbol, err)
	}
	return q, nil
}

// History returns OHLCV bars for a symbol over the given period and interval.
// Bars with a missing close are dropped. It returns domain.ErrNoData when no
// usable bars remain.
func (y *YahooClient) History(ctx context.Context, symbol string, period domain.Period, interval domain.Interval) ([]domain.Bar, error) {
	result, err := y.chart(ctx, symbol, period, interval)
	if err != nil {
		return nil, fmt.Errorf("market/yahoo: history %s: %w", symbol, err)
	}

	bars := result.ToBars()
	if len(bars) == 0 {
		return nil, fmt.Errorf("market/yahoo: history %s: %w", symbol, domain.ErrNoData)
	}
	return bars, nil
}

// chart fetches and decodes a chart API response for one symbol.
func (y *YahooClient) chart(ctx context.Context, symbol string, period domain.Period, interval domain.Interval) (*apiChartResult, error) {
	params := url.Values{}
	params.Set("range", string(period))
	params.Set("interval", string(interval))
	params.Set("includePrePost", "false")

	path := "/v8/finance/chart/" + url.PathEscape(yahooSymbol(symbol)) + "?" + params.Encode()

	body, err := y.doGet(ctx, path)
	if err != nil {
		return nil, err
	}

	var resp apiChartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode chart: %w", err)
	}

	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s", domain.ErrNoData, resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, domain.ErrNoData
	}

	return &resp.Chart.Result[0], nil
}

// doGet sends an unauthenticated GET request to the chart API.
func (y *YahooClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if y.userAgent != "" {
		req.Header.Set("User-Agent", y.userAgent)
	}

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}

// checkHTTPStatus maps HTTP error responses onto domain sentinel errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNoData, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
