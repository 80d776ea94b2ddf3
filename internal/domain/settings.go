package domain

// AccountSettings holds the account balance and the trading parameters the
// operator can tune at runtime. Percentages are whole numbers (2.0 == 2%).
type AccountSettings struct {
	InitialBalance  float64
	CurrentBalance  float64
	TakeProfitPct   float64
	StopLossPct     float64
	PositionSizePct float64
}

// DefaultSettings returns the settings a fresh account starts with.
func DefaultSettings() AccountSettings {
	return AccountSettings{
		InitialBalance:  10000,
		CurrentBalance:  10000,
		TakeProfitPct:   2.0,
		StopLossPct:     1.0,
		PositionSizePct: 10.0,
	}
}

// PerformanceMetrics summarises closed trades.
type PerformanceMetrics struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64 // percent
	TotalPnL      float64
	ProfitFactor  float64 // gross profit / gross loss; 0 when no losses
	AverageWin    float64
	AverageLoss   float64
	LargestWin    float64
	LargestLoss   float64
}
