package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/lachlanbr/shortbot/internal/domain"
)

// TransactionHandler serves the trade-history endpoints.
type TransactionHandler struct {
	txs    domain.TransactionStore
	logger *slog.Logger
}

// NewTransactionHandler creates a TransactionHandler with the given store and logger.
func NewTransactionHandler(txs domain.TransactionStore, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{
		txs:    txs,
		logger: logger,
	}
}

// transactionResponse is the JSON view of one trade-history row.
type transactionResponse struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	Action    string    `json:"action"`
	Price     float64   `json:"price"`
	Quantity  int64     `json:"quantity"`
	PnL       float64   `json:"pnl"`
	Reason    string    `json:"reason"`
}

// listTransactionsResponse wraps a paginated trade-history listing.
type listTransactionsResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	Total        int64                 `json:"total"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

// ListTransactions returns the trade history, newest first.
// GET /api/transactions?limit=50&offset=0
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	txs, err := h.txs.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list transactions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	total, err := h.txs.Count(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: count transactions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to count transactions")
		return
	}

	resp := listTransactionsResponse{
		Transactions: make([]transactionResponse, 0, len(txs)),
		Total:        total,
		Limit:        opts.Limit,
		Offset:       opts.Offset,
	}
	for _, tx := range txs {
		resp.Transactions = append(resp.Transactions, transactionResponse{
			ID:        tx.ID,
			Timestamp: tx.Timestamp,
			Symbol:    tx.Symbol,
			Action:    string(tx.Action),
			Price:     tx.Price,
			Quantity:  tx.Quantity,
			PnL:       tx.PnL,
			Reason:    tx.Reason,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
