package market

import (
	"time"

	"github.com/lachlanbr/shortbot/internal/domain"
)

// apiChartResponse mirrors the Yahoo Finance v8 chart API envelope.
type apiChartResponse struct {
	Chart struct {
		Result []apiChartResult `json:"result"`
		Error  *apiChartError   `json:"error"`
	} `json:"chart"`
}

// apiChartError is the error object Yahoo returns for unknown symbols.
type apiChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// apiChartResult is a single symbol's chart data. Price arrays run parallel
// to Timestamp and use pointers because Yahoo emits null for missing bars.
type apiChartResult struct {
	Meta struct {
		Currency           string  `json:"currency"`
		Symbol             string  `json:"symbol"`
		ExchangeName       string  `json:"exchangeName"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
		RegularMarketTime  int64   `json:"regularMarketTime"`
		ChartPreviousClose float64 `json:"chartPreviousClose"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []apiQuoteBlock `json:"quote"`
	} `json:"indicators"`
}

// apiQuoteBlock holds the parallel OHLCV arrays.
type apiQuoteBlock struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

// ToBars converts the chart result into domain bars, dropping entries whose
// close is null.
func (r *apiChartResult) ToBars() []domain.Bar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]

	bars := make([]domain.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(q.Close) || q.Close[i] == nil {
			continue
		}
		bar := domain.Bar{
			Timestamp: time.Unix(ts, 0).UTC(),
			Close:     *q.Close[i],
		}
		if i < len(q.Open) && q.Open[i] != nil {
			bar.Open = *q.Open[i]
		}
		if i < len(q.High) && q.High[i] != nil {
			bar.High = *q.High[i]
		}
		if i < len(q.Low) && q.Low[i] != nil {
			bar.Low = *q.Low[i]
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			bar.Volume = *q.Volume[i]
		}
		bars = append(bars, bar)
	}
	return bars
}

// ToQuote condenses the chart result into a single quote for the symbol. The
// last price prefers the meta regularMarketPrice and falls back to the final
// bar close; open/high/low/volume aggregate over the day's bars.
func (r *apiChartResult) ToQuote(symbol string) (domain.Quote, error) {
	bars := r.ToBars()
	if len(bars) == 0 && r.Meta.RegularMarketPrice == 0 {
		return domain.Quote{}, domain.ErrNoData
	}

	q := domain.Quote{
		Symbol:    symbol,
		Last:      r.Meta.RegularMarketPrice,
		Timestamp: time.Unix(r.Meta.RegularMarketTime, 0).UTC(),
	}

	if len(bars) > 0 {
		first, last := bars[0], bars[len(bars)-1]
		if q.Last == 0 {
			q.Last = last.Close
		}
		if q.Timestamp.IsZero() || r.Meta.RegularMarketTime == 0 {
			q.Timestamp = last.Timestamp
		}
		q.Open = first.Open
		q.High = bars[0].High
		q.Low = bars[0].Low
		for _, b := range bars {
			if b.High > q.High {
				q.High = b.High
			}
			if b.Low > 0 && (q.Low == 0 || b.Low < q.Low) {
				q.Low = b.Low
			}
			q.Volume += b.Volume
		}
	}

	return q, nil
}
