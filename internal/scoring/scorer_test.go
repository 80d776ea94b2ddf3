package scoring

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/lachlanbr/shortbot/internal/domain"
)

func testScorer() *Scorer {
	return NewScorer(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// barsFrom builds a daily bar series from closes, oldest first. Volume is
// constant unless overridden per index via volumes.
func barsFrom(closes []float64, volumes map[int]int64) []domain.Bar {
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		vol := int64(1000)
		if v, ok := volumes[i]; ok {
			vol = v
		}
		bars[i] = domain.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    vol,
		}
	}
	return bars
}

// decliningSeries: 35 bars falling from 200, then 15 bars oscillating around
// 165. Price sits under SMA20, SMA20 under SMA50, and the oscillating tail
// keeps RSI balanced at 50 so only the two trend factors fire.
func decliningSeries() []domain.Bar {
	closes := make([]float64, 0, 50)
	for i := 0; i < 35; i++ {
		closes = append(closes, 200-float64(i))
	}
	for j := 0; j < 15; j++ {
		if j%2 == 0 {
			closes = append(closes, 165.5)
		} else {
			closes = append(closes, 165.0)
		}
	}
	return barsFrom(closes, nil)
}

func TestScoreEmptySeries(t *testing.T) {
	rec := testScorer().Score("BHP.AX", nil)

	if rec.Action != domain.ActionNeutral {
		t.Errorf("action = %s, want NEUTRAL", rec.Action)
	}
	if rec.Confidence != domain.ConfidenceLow {
		t.Errorf("confidence = %s, want LOW", rec.Confidence)
	}
	if rec.Score != 0 {
		t.Errorf("score = %d, want 0", rec.Score)
	}
	if rec.Reason != "Insufficient data" {
		t.Errorf("reason = %q, want %q", rec.Reason, "Insufficient data")
	}
	if rec.Symbol != "BHP.AX" {
		t.Errorf("symbol = %q, want BHP.AX", rec.Symbol)
	}
}

func TestScoreDowntrendIsStrongShort(t *testing.T) {
	rec := testScorer().Score("XYZ.AX", decliningSeries())

	// Neutral 50 + below-SMA20 (10) + death cross (15).
	if rec.Score != 75 {
		t.Errorf("score = %d, want 75", rec.Score)
	}
	if rec.Action != domain.ActionStrongShort {
		t.Errorf("action = %s, want STRONG SHORT", rec.Action)
	}
	if rec.Confidence != domain.ConfidenceHigh {
		t.Errorf("confidence = %s, want HIGH", rec.Confidence)
	}
	if rec.GeneratedAt.IsZero() {
		t.Error("expected GeneratedAt to be set")
	}
}

func TestScoreShortBand(t *testing.T) {
	// Ten bars at 110 then an oscillating tail around 100: price is under
	// SMA20 but the series is too short for SMA50 and RSI stays balanced.
	closes := make([]float64, 0, 25)
	for i := 0; i < 10; i++ {
		closes = append(closes, 110)
	}
	for j := 0; j < 15; j++ {
		if j%2 == 0 {
			closes = append(closes, 100.5)
		} else {
			closes = append(closes, 100.0)
		}
	}

	rec := testScorer().Score("ABC.AX", barsFrom(closes, nil))

	if rec.Score != 60 {
		t.Errorf("score = %d, want 60", rec.Score)
	}
	if rec.Action != domain.ActionShort {
		t.Errorf("action = %s, want SHORT", rec.Action)
	}
	if rec.Confidence != domain.ConfidenceMedium {
		t.Errorf("confidence = %s, want MEDIUM", rec.Confidence)
	}
}

func TestScoreFlatSeriesIsNeutral(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 75
	}

	rec := testScorer().Score("FLT.AX", barsFrom(closes, nil))

	if rec.Score != 50 {
		t.Errorf("score = %d, want 50", rec.Score)
	}
	if rec.Action != domain.ActionNeutral {
		t.Errorf("action = %s, want NEUTRAL", rec.Action)
	}
	if rec.Reason != "Mixed signals, no clear direction" {
		t.Errorf("reason = %q", rec.Reason)
	}
}

func TestScoreRunUpTriggersOverboughtAndMomentum(t *testing.T) {
	// Sixteen rising closes: RSI saturates overbought and the last three
	// closes average well over a 1% gain.
	closes := make([]float64, 16)
	for i := range closes {
		closes[i] = 100 + 2*float64(i)
	}

	rec := testScorer().Score("RUN.AX", barsFrom(closes, nil))

	// Neutral 50 + overbought RSI (15) + recent run-up (10).
	if rec.Score != 75 {
		t.Errorf("score = %d, want 75", rec.Score)
	}
	if rec.Action != domain.ActionStrongShort {
		t.Errorf("action = %s, want STRONG SHORT", rec.Action)
	}
}

func TestScoreVolumeSpike(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 80
	}

	rec := testScorer().Score("VOL.AX", barsFrom(closes, map[int]int64{29: 2000}))

	// Neutral 50 + volume spike (5); flat closes contribute nothing else.
	if rec.Score != 55 {
		t.Errorf("score = %d, want 55", rec.Score)
	}
	if rec.Action != domain.ActionNeutral {
		t.Errorf("action = %s, want NEUTRAL", rec.Action)
	}
}

func TestShortableActions(t *testing.T) {
	cases := []struct {
		action domain.RecommendationAction
		want   bool
	}{
		{domain.ActionStrongShort, true},
		{domain.ActionShort, true},
		{domain.ActionNeutral, false},
		{domain.ActionAvoidShort, false},
	}
	for _, tc := range cases {
		if got := tc.action.Shortable(); got != tc.want {
			t.Errorf("%s.Shortable() = %v, want %v", tc.action, got, tc.want)
		}
	}
}
