package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"solver/internal/database"
	"solver/internal/models"
	"solver/internal/service"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	db       *database.DB
	transfer *service.TransferEngine
	revert   *service.RevertEngine
	logger   *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(
	db *database.DB,
	transfer *service.TransferEngine,
	revert *service.RevertEngine,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		db:       db,
		transfer: transfer,
		revert:   revert,
		logger:   logger,
	}
}

// ==================== Health Check ====================

// HandleHealth returns service health status
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:  "ok",
		Version: "1.0.0",
	}
	respondJSON(w, http.StatusOK, response)
}

// ==================== Transfers ====================

// HandleSubmitTransfer handles POST /api/v1/transfers
// Verifies, countersigns and commits a signed transfer
func (h *Handler) HandleSubmitTransfer(w http.ResponseWriter, r *http.Request) {
	var transfer models.Transfer
	if err := json.NewDecoder(r.Body).Decode(&transfer); err != nil {
		h.logger.Error("Failed to decode transfer", zap.Error(err))
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	h.logger.Info("Transfer received",
		zap.String("sender", transfer.Sender),
		zap.String("token", transfer.Token.Address),
		zap.String("receiver", transfer.TargetChain.Receiver))

	receipt, err := h.transfer.Submit(r.Context(), &transfer)
	if err != nil {
		h.logger.Warn("Transfer not accepted",
			zap.String("sender", transfer.Sender),
			zap.Error(err))
		respondError(w, statusForError(err), "Transfer not accepted", err)
		return
	}

	respondJSON(w, http.StatusOK, SubmitTransferResponse{
		Transfer:        receipt.Transfer,
		SenderBalance:   receipt.SenderBalance,
		ReceiverBalance: receipt.ReceiverBalance,
	})
}

// ==================== Revert ====================

// HandleRevertAll handles POST /api/v1/transactions/revert
// Reverses every not-yet-reverted transaction, most recent first
func (h *Handler) HandleRevertAll(w http.ResponseWriter, r *http.Request) {
	reverted, err := h.revert.RevertAll(r.Context())
	if err != nil {
		h.logger.Error("Revert run failed",
			zap.Int("reverted_before_failure", len(reverted)),
			zap.Error(err))
		respondError(w, statusForError(err), "Revert failed", err)
		return
	}

	respondJSON(w, http.StatusOK, RevertResponse{Reverted: reverted})
}

// ==================== Balances ====================

// HandleGetAllBalances handles GET /api/v1/balances
func (h *Handler) HandleGetAllBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.db.GetAllBalances(r.Context())
	if err != nil {
		h.logger.Error("Failed to read balances", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to read balances", err)
		return
	}
	respondJSON(w, http.StatusOK, BalancesResponse{Balances: balances})
}

// HandleGetAddressBalances handles GET /api/v1/balances/{address}
// Returns every token balance held by an address
func (h *Handler) HandleGetAddressBalances(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	balances, err := h.db.GetBalancesByAddress(r.Context(), address)
	if err != nil {
		h.logger.Error("Failed to read balances",
			zap.String("address", address),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to read balances", err)
		return
	}
	respondJSON(w, http.StatusOK, BalancesResponse{Balances: balances})
}

// HandleGetBalance handles GET /api/v1/balances/{address}/{token}
func (h *Handler) HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	address := vars["address"]
	token := vars["token"]

	balance, err := h.db.GetBalance(r.Context(), address, token)
	if err != nil {
		h.logger.Error("Failed to read balance",
			zap.String("address", address),
			zap.String("token", token),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to read balance", err)
		return
	}
	if balance == nil {
		respondError(w, http.StatusNotFound, "Balance not found", nil)
		return
	}
	respondJSON(w, http.StatusOK, balance)
}

// ==================== Transactions ====================

// HandleGetTransactions handles GET /api/v1/transactions
func (h *Handler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.db.GetTransactions(r.Context())
	if err != nil {
		h.logger.Error("Failed to read transactions", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to read transactions", err)
		return
	}
	respondJSON(w, http.StatusOK, TransactionsResponse{Transactions: txs})
}

// ==================== Helper Functions ====================

// statusForError maps the service error taxonomy onto HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidShape):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrBadSignature):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrSenderBalanceMissing),
		errors.Is(err, service.ErrReceiverBalanceMissing):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log error but can't send response since headers already written
		fmt.Printf("Failed to encode JSON response: %v\n", err)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errorMsg := message
	if err != nil {
		errorMsg = fmt.Sprintf("%s: %v", message, err)
	}

	response := ErrorResponse{
		Error:   message,
		Message: errorMsg,
	}

	respondJSON(w, statusCode, response)
}
