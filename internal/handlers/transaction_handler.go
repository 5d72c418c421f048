package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hisabkitab/backend/internal/models"
	"github.com/hisabkitab/backend/internal/services"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransactionHandler authorizes ledger requests for the acting user and
// hands verified identifiers to the ledger.
type TransactionHandler struct {
	ledger      Ledger
	entities    EntityStore
	connections ConnectionStore
	modes       PaymentModeStore
	validator   *services.ValidationHelper
	logger      *zap.Logger
}

func NewTransactionHandler(ledger Ledger, entities EntityStore, connections ConnectionStore, modes PaymentModeStore, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{
		ledger:      ledger,
		entities:    entities,
		connections: connections,
		modes:       modes,
		validator:   services.NewValidationHelper(),
		logger:      logger,
	}
}

type createTransactionRequest struct {
	PayerID     uuid.UUID       `json:"payer" validate:"required"`
	PayeeID     uuid.UUID       `json:"payee" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status,omitempty" validate:"omitempty,oneof=PENDING COMPLETED REJECTED"`
	Description *string         `json:"description,omitempty" validate:"omitempty,max=1000"`
	CategoryID  *uuid.UUID      `json:"category,omitempty"`
	ModeID      *uuid.UUID      `json:"mode,omitempty"`
	Date        *time.Time      `json:"date,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING COMPLETED REJECTED"`
}

// ListTransactions lists transactions touching the caller's entities
// @Summary List transactions
// @Description Transactions whose payer or payee belongs to the caller, newest first
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Transaction
// @Failure 401 {object} services.ErrorResponse
// @Router /transactions [get]
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}

	transactions, err := h.ledger.ListForUser(r.Context(), userID)
	if err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}
	services.SendJSON(w, http.StatusOK, transactions)
}

// CreateTransaction records a transaction between two entities
// @Summary Create transaction
// @Description The payer must belong to the caller. A payee owned by another user requires an accepted connection with that user. Transactions created COMPLETED move balances immediately.
// @Tags Transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{payer=string,payee=string,amount=string,status=string,description=string,category=string,mode=string,date=string} true "Transaction"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /transactions [post]
func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}

	var req createTransactionRequest
	if !h.validator.DecodeJSONBody(w, r, &req) {
		return
	}

	if err := h.authorizeParties(r.Context(), userID, req.PayerID, req.PayeeID); err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}
	if req.CategoryID != nil {
		if _, err := h.entities.GetOwned(r.Context(), *req.CategoryID, userID); err != nil {
			services.SendServiceError(w, h.logger, services.ErrInvalidCategory)
			return
		}
	}
	if req.ModeID != nil {
		if _, err := h.modes.Get(r.Context(), *req.ModeID, userID); err != nil {
			services.SendServiceError(w, h.logger, err)
			return
		}
	}

	in := services.CreateTransactionInput{
		PayerID:     req.PayerID,
		PayeeID:     req.PayeeID,
		Amount:      req.Amount,
		Status:      models.TransactionStatus(req.Status),
		Description: req.Description,
		CategoryID:  req.CategoryID,
		ModeID:      req.ModeID,
	}
	if req.Date != nil {
		in.Date = *req.Date
	}

	t, err := h.ledger.CreateTransaction(r.Context(), in)
	if err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}
	services.SendJSON(w, http.StatusCreated, t)
}

// GetTransaction returns a transaction visible to the caller
// @Summary Get transaction
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param txId path string true "Transaction ID"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/{txId} [get]
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	txID, ok := pathUUID(w, r, "txId")
	if !ok {
		return
	}

	t, err := h.ledger.GetForUser(r.Context(), txID, userID)
	if err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}
	services.SendJSON(w, http.StatusOK, t)
}

// UpdateTransactionStatus completes or rejects a pending transaction
// @Summary Update transaction status
// @Description PENDING may move once to COMPLETED or REJECTED. Completing applies the balance effect.
// @Tags Transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param txId path string true "Transaction ID"
// @Param request body object{status=string} true "New status"
// @Success 200 {object} models.Transaction
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /transactions/{txId}/status [patch]
func (h *TransactionHandler) UpdateTransactionStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	txID, ok := pathUUID(w, r, "txId")
	if !ok {
		return
	}

	var req updateStatusRequest
	if !h.validator.DecodeJSONBody(w, r, &req) {
		return
	}

	if err := h.authorizeChange(r.Context(), txID, userID); err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}

	t, err := h.ledger.UpdateStatus(r.Context(), txID, models.TransactionStatus(req.Status))
	if err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}
	services.SendJSON(w, http.StatusOK, t)
}

// DeleteTransaction removes a transaction, reversing it when completed
// @Summary Delete transaction
// @Tags Transactions
// @Security BearerAuth
// @Param txId path string true "Transaction ID"
// @Success 204
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /transactions/{txId} [delete]
func (h *TransactionHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	txID, ok := pathUUID(w, r, "txId")
	if !ok {
		return
	}

	if err := h.authorizeChange(r.Context(), txID, userID); err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}

	if err := h.ledger.DeleteTransaction(r.Context(), txID); err != nil {
		services.SendServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authorizeParties requires the payer to be the caller's own entity. A payee
// belonging to someone else is allowed only across an accepted connection.
func (h *TransactionHandler) authorizeParties(ctx context.Context, userID, payerID, payeeID uuid.UUID) error {
	if _, err := h.entities.GetOwned(ctx, payerID, userID); err != nil {
		return err
	}

	payee, err := h.entities.Get(ctx, payeeID)
	if err != nil {
		return err
	}
	if payee.OwnerID == userID {
		return nil
	}

	connected, err := h.connections.AreConnected(ctx, userID, payee.OwnerID)
	if err != nil {
		return err
	}
	if !connected {
		return services.ErrNotConnected
	}
	return nil
}

// authorizeChange lets only the owner of the paying entity complete, reject
// or delete a transaction. The payee side can see it but not change it.
func (h *TransactionHandler) authorizeChange(ctx context.Context, txID, userID uuid.UUID) error {
	t, err := h.ledger.GetForUser(ctx, txID, userID)
	if err != nil {
		return err
	}

	if _, err := h.entities.GetOwned(ctx, t.PayerID, userID); err != nil {
		if errors.Is(err, services.ErrEntityNotFound) {
			return services.ErrNotTransactionOwner
		}
		return err
	}
	return nil
}
