package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hisabkitab/backend/internal/middleware"
	"github.com/hisabkitab/backend/internal/models"
	"github.com/hisabkitab/backend/internal/services"
	"github.com/shopspring/decimal"
)

// EntityStore is the part of services.EntityService the handlers use
type EntityStore interface {
	Create(ctx context.Context, ownerID uuid.UUID, name string, kind models.EntityKind, initialBalance decimal.Decimal) (*models.Entity, error)
	Get(ctx context.Context, entityID uuid.UUID) (*models.Entity, error)
	GetOwned(ctx context.Context, entityID, ownerID uuid.UUID) (*models.Entity, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, kind *models.EntityKind) ([]models.Entity, error)
	AdjustBalance(ctx context.Context, entityID uuid.UUID, delta decimal.Decimal) (*models.Entity, error)
	Rename(ctx context.Context, entityID, ownerID uuid.UUID, name string) (*models.Entity, error)
	Delete(ctx context.Context, entityID, ownerID uuid.UUID) error
}

// ConnectionStore is the part of services.ConnectionService the handlers use
type ConnectionStore interface {
	ResolveUsername(ctx context.Context, username string) (uuid.UUID, error)
	Request(ctx context.Context, requesterID, receiverID uuid.UUID, message *string) (*models.UserConnection, error)
	Accept(ctx context.Context, connectionID, actingUserID uuid.UUID) (*models.UserConnection, error)
	Reject(ctx context.Context, connectionID, actingUserID uuid.UUID) (*models.UserConnection, error)
	Get(ctx context.Context, connectionID, userID uuid.UUID) (*models.UserConnection, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.UserConnection, error)
	AreConnected(ctx context.Context, a, b uuid.UUID) (bool, error)
}

// Ledger is the part of services.LedgerService the handlers use
type Ledger interface {
	CreateTransaction(ctx context.Context, in services.CreateTransactionInput) (*models.Transaction, error)
	UpdateStatus(ctx context.Context, transactionID uuid.UUID, newStatus models.TransactionStatus) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, transactionID uuid.UUID) error
	GetForUser(ctx context.Context, transactionID, userID uuid.UUID) (*models.Transaction, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)
}

// PaymentModeStore is the part of services.PaymentModeService the handlers use
type PaymentModeStore interface {
	Create(ctx context.Context, ownerID uuid.UUID, name, appKey string, linkedEntityID *uuid.UUID) (*models.PaymentMode, error)
	Get(ctx context.Context, modeID, ownerID uuid.UUID) (*models.PaymentMode, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]models.PaymentMode, error)
	Options(ctx context.Context) ([]models.SupportedApp, error)
}

// WalletProvisioner is the part of services.WalletService the handlers use
type WalletProvisioner interface {
	CreateWallet(ctx context.Context, paymentModeID, actingUserID uuid.UUID) (*models.Entity, error)
}

func actingUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return uuid.Nil, false
	}
	return userID, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		services.SendErrorResponse(w, "Invalid "+param, http.StatusBadRequest, nil)
		return uuid.Nil, false
	}
	return id, true
}
