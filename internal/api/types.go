package api

import "solver/internal/models"

// ==================== Transfers ====================

// SubmitTransferResponse is returned for an accepted transfer: the
// refund-decorated transfer plus both post-commit balances.
type SubmitTransferResponse struct {
	Transfer        *models.Transfer `json:"transfer"`
	SenderBalance   *models.Balance  `json:"senderBalance"`
	ReceiverBalance *models.Balance  `json:"receiverBalance"`
}

// ==================== Revert ====================

// RevertResponse lists the transactions reverted by this run
type RevertResponse struct {
	Reverted []models.Transaction `json:"reverted"`
}

// ==================== Queries ====================

// BalancesResponse wraps a list of balance rows
type BalancesResponse struct {
	Balances []models.Balance `json:"balances"`
}

// TransactionsResponse wraps the transfer history
type TransactionsResponse struct {
	Transactions []models.Transaction `json:"transactions"`
}

// ==================== Error Response ====================

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==================== Health Check ====================

// HealthResponse represents health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
