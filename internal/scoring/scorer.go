// Package scoring rates ASX symbols as short candidates. The score is a
// 0-100 rubric built from trend, momentum, volatility, and volume factors;
// higher scores mean better shorting conditions.
package scoring

import (
	"log/slog"
	"math"
	"time"

	"github.com/lachlanbr/shortbot/internal/domain"
)

const (
	rsiPeriod = 14

	// Score thresholds for the recommendation bands.
	strongShortScore = 70
	shortScore       = 60
	avoidShortScore  = 30
)

// Scorer turns bar history into shortability recommendations.
type Scorer struct {
	logger *slog.Logger
}

// NewScorer creates a Scorer.
func NewScorer(logger *slog.Logger) *Scorer {
	return &Scorer{
		logger: logger.With(slog.String("component", "scorer")),
	}
}

// Score rates the symbol from its bar history (oldest first). It never
// fails: an empty series yields a zero-score NEUTRAL recommendation, and a
// series the rubric cannot price yields the neutral starting point with
// whichever factors still applied.
func (s *Scorer) Score(symbol string, bars []domain.Bar) domain.Recommendation {
	now := time.Now().UTC()

	if len(bars) == 0 {
		return domain.Recommendation{
			Symbol:      symbol,
			Action:      domain.ActionNeutral,
			Confidence:  domain.ConfidenceLow,
			Score:       0,
			Reason:      "Insufficient data",
			GeneratedAt: now,
		}
	}

	score := s.shortabilityScore(symbol, bars)

	var (
		action     domain.RecommendationAction
		confidence domain.Confidence
		reason     string
	)
	switch {
	case score >= strongShortScore:
		action = domain.ActionStrongShort
		confidence = domain.ConfidenceHigh
		reason = "Multiple indicators suggest a strong shorting opportunity"
	case score >= shortScore:
		action = domain.ActionShort
		confidence = domain.ConfidenceMedium
		reason = "Favorable conditions for shorting"
	case score <= avoidShortScore:
		action = domain.ActionAvoidShort
		confidence = domain.ConfidenceHigh
		reason = "Unfavorable conditions for shorting"
	default:
		action = domain.ActionNeutral
		confidence = domain.ConfidenceLow
		reason = "Mixed signals, no clear direction"
	}

	return domain.Recommendation{
		Symbol:      symbol,
		Action:      action,
		Confidence:  confidence,
		Score:       score,
		Reason:      reason,
		GeneratedAt: now,
	}
}

// shortabilityScore applies the rubric. Factors whose lookback exceeds the
// series simply do not fire, so short histories drift toward the neutral 50.
func (s *Scorer) shortabilityScore(symbol string, bars []domain.Bar) int {
	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = float64(b.Volume)
	}
	latest := closes[len(closes)-1]

	score := 50

	// Trend: price under the 20-bar average.
	sma20, ok20 := sma(closes, 20)
	if ok20 && latest < sma20 {
		score += 10
	}

	// Death cross: short average under the long average.
	if sma50, ok := sma(closes, 50); ok20 && ok && sma20 < sma50 {
		score += 15
	}

	// Momentum: overbought favours the short side, oversold argues against.
	if r, ok := rsi(closes, rsiPeriod); ok {
		switch {
		case r > 70:
			score += 15
		case r > 60:
			score += 10
		case r < 30:
			score -= 15
		}
	}

	// Volatility over the last five closes.
	if len(closes) >= 5 {
		if sd, ok := sampleStdDev(pctChanges(closes[len(closes)-5:])); ok && !math.IsNaN(sd) && sd*100 > 3 {
			score += 5
		}
	}

	// Volume spike against the five-bar average.
	if len(volumes) >= 5 {
		avgVolume := mean(volumes[len(volumes)-5:])
		if volumes[len(volumes)-1] > avgVolume*1.5 {
			score += 5
		}
	}

	// Recent run-up: mean gain over the last three closes suggests reversion.
	if len(closes) >= 3 {
		if changes := pctChanges(closes[len(closes)-3:]); len(changes) > 0 && mean(changes) > 0.01 {
			score += 10
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	s.logger.Debug("shortability score computed",
		slog.String("symbol", symbol),
		slog.Int("score", score),
		slog.Int("bars", len(bars)),
	)
	return score
}
