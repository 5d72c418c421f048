package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/hisabkitab/backend/internal/middleware"
	"github.com/hisabkitab/backend/internal/models"
	"github.com/hisabkitab/backend/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockEntityStore struct {
	mock.Mock
}

func (m *MockEntityStore) Create(ctx context.Context, ownerID uuid.UUID, name string, kind models.EntityKind, initialBalance decimal.Decimal) (*models.Entity, error) {
	args := m.Called(ctx, ownerID, name, kind, initialBalance)
	return entityResult(args)
}

func (m *MockEntityStore) Get(ctx context.Context, entityID uuid.UUID) (*models.Entity, error) {
	return entityResult(m.Called(ctx, entityID))
}

func (m *MockEntityStore) GetOwned(ctx context.Context, entityID, ownerID uuid.UUID) (*models.Entity, error) {
	return entityResult(m.Called(ctx, entityID, ownerID))
}

func (m *MockEntityStore) ListByOwner(ctx context.Context, ownerID uuid.UUID, kind *models.EntityKind) ([]models.Entity, error) {
	args := m.Called(ctx, ownerID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Entity), args.Error(1)
}

func (m *MockEntityStore) AdjustBalance(ctx context.Context, entityID uuid.UUID, delta decimal.Decimal) (*models.Entity, error) {
	return entityResult(m.Called(ctx, entityID, delta))
}

func (m *MockEntityStore) Rename(ctx context.Context, entityID, ownerID uuid.UUID, name string) (*models.Entity, error) {
	return entityResult(m.Called(ctx, entityID, ownerID, name))
}

func (m *MockEntityStore) Delete(ctx context.Context, entityID, ownerID uuid.UUID) error {
	return m.Called(ctx, entityID, ownerID).Error(0)
}

func entityResult(args mock.Arguments) (*models.Entity, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Entity), args.Error(1)
}

type MockConnectionStore struct {
	mock.Mock
}

func (m *MockConnectionStore) ResolveUsername(ctx context.Context, username string) (uuid.UUID, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockConnectionStore) Request(ctx context.Context, requesterID, receiverID uuid.UUID, message *string) (*models.UserConnection, error) {
	return connectionResult(m.Called(ctx, requesterID, receiverID, message))
}

func (m *MockConnectionStore) Accept(ctx context.Context, connectionID, actingUserID uuid.UUID) (*models.UserConnection, error) {
	return connectionResult(m.Called(ctx, connectionID, actingUserID))
}

func (m *MockConnectionStore) Reject(ctx context.Context, connectionID, actingUserID uuid.UUID) (*models.UserConnection, error) {
	return connectionResult(m.Called(ctx, connectionID, actingUserID))
}

func (m *MockConnectionStore) Get(ctx context.Context, connectionID, userID uuid.UUID) (*models.UserConnection, error) {
	return connectionResult(m.Called(ctx, connectionID, userID))
}

func (m *MockConnectionStore) List(ctx context.Context, userID uuid.UUID) ([]models.UserConnection, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UserConnection), args.Error(1)
}

func (m *MockConnectionStore) AreConnected(ctx context.Context, a, b uuid.UUID) (bool, error) {
	args := m.Called(ctx, a, b)
	return args.Bool(0), args.Error(1)
}

func connectionResult(args mock.Arguments) (*models.UserConnection, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserConnection), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) CreateTransaction(ctx context.Context, in services.CreateTransactionInput) (*models.Transaction, error) {
	return transactionResult(m.Called(ctx, in))
}

func (m *MockLedger) UpdateStatus(ctx context.Context, transactionID uuid.UUID, newStatus models.TransactionStatus) (*models.Transaction, error) {
	return transactionResult(m.Called(ctx, transactionID, newStatus))
}

func (m *MockLedger) DeleteTransaction(ctx context.Context, transactionID uuid.UUID) error {
	return m.Called(ctx, transactionID).Error(0)
}

func (m *MockLedger) GetForUser(ctx context.Context, transactionID, userID uuid.UUID) (*models.Transaction, error) {
	return transactionResult(m.Called(ctx, transactionID, userID))
}

func (m *MockLedger) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Transaction), args.Error(1)
}

func transactionResult(args mock.Arguments) (*models.Transaction, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

type MockPaymentModeStore struct {
	mock.Mock
}

func (m *MockPaymentModeStore) Create(ctx context.Context, ownerID uuid.UUID, name, appKey string, linkedEntityID *uuid.UUID) (*models.PaymentMode, error) {
	args := m.Called(ctx, ownerID, name, appKey, linkedEntityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentMode), args.Error(1)
}

func (m *MockPaymentModeStore) Get(ctx context.Context, modeID, ownerID uuid.UUID) (*models.PaymentMode, error) {
	args := m.Called(ctx, modeID, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentMode), args.Error(1)
}

func (m *MockPaymentModeStore) List(ctx context.Context, ownerID uuid.UUID) ([]models.PaymentMode, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PaymentMode), args.Error(1)
}

func (m *MockPaymentModeStore) Options(ctx context.Context) ([]models.SupportedApp, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SupportedApp), args.Error(1)
}

type MockWalletProvisioner struct {
	mock.Mock
}

func (m *MockWalletProvisioner) CreateWallet(ctx context.Context, paymentModeID, actingUserID uuid.UUID) (*models.Entity, error) {
	return entityResult(m.Called(ctx, paymentModeID, actingUserID))
}

// asUser stands in for AuthMiddleware in handler tests.
func asUser(userID uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithUserID(r.Context(), userID)))
		})
	}
}
