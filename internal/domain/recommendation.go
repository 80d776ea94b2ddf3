package domain

import "time"

// RecommendationAction is the verdict of the scoring engine for one symbol.
type RecommendationAction string

const (
	ActionStrongShort RecommendationAction = "STRONG SHORT"
	ActionShort       RecommendationAction = "SHORT"
	ActionNeutral     RecommendationAction = "NEUTRAL"
	ActionAvoidShort  RecommendationAction = "AVOID SHORT"
)

// Shortable reports whether the action clears the bar for opening a short.
func (a RecommendationAction) Shortable() bool {
	return a == ActionShort || a == ActionStrongShort
}

// Confidence grades how strongly the score supports the action.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Recommendation is the scoring engine's output for one symbol. Score is a
// 0-100 shortability rating; higher means a better short candidate.
type Recommendation struct {
	Symbol      string
	Action      RecommendationAction
	Confidence  Confidence
	Score       int
	Reason      string
	GeneratedAt time.Time
}
