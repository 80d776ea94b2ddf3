package domain

import "time"

// TransactionAction labels a trade-history row.
type TransactionAction string

const (
	ActionShortOpen  TransactionAction = "Short Open"
	ActionShortClose TransactionAction = "Short Close"
)

// Close reasons recorded on "Short Close" transactions. The scheduler and
// trader use these exact strings so history rows stay greppable.
const (
	ReasonTakeProfit     = "Take profit"
	ReasonStopLoss       = "Stop loss"
	ReasonCycleRotation  = "End of cycle rotation"
	ReasonMarketClosed   = "Market closed"
	ReasonManualShutdown = "Manual shutdown"
)

// Transaction is one row of the append-only trade history.
type Transaction struct {
	ID        string
	Timestamp time.Time
	Symbol    string
	Action    TransactionAction
	Price     float64
	Quantity  int64
	// PnL is zero on opens and the realized profit/loss on closes.
	PnL float64
	// Reason records why the trade happened, suffixed with "(REAL)" or
	// "(SIM)" depending on how the fill was obtained.
	Reason string
}
