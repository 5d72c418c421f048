package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/hisabkitab/backend/internal/config"
	"github.com/hisabkitab/backend/internal/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	fixedNow = time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)

	aliceID = uuid.MustParse("0a000000-0000-0000-0000-000000000001")
	bobID   = uuid.MustParse("0b000000-0000-0000-0000-000000000002")
	carolID = uuid.MustParse("0c000000-0000-0000-0000-000000000003")
)

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event Event) {
	m.Called(ctx, event)
}

// expectEvent registers an expectation for one event of the given type.
func (m *MockEventPublisher) expectEvent(eventType string) *mock.Call {
	return m.On("Publish", mock.Anything, mock.MatchedBy(func(e Event) bool {
		return e.Type == eventType
	})).Return()
}

type MockAppCatalog struct {
	mock.Mock
}

func (m *MockAppCatalog) Lookup(ctx context.Context, key string) (*models.SupportedApp, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SupportedApp), args.Error(1)
}

func (m *MockAppCatalog) List(ctx context.Context) ([]models.SupportedApp, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SupportedApp), args.Error(1)
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func testLedgerConfig() *config.LedgerConfig {
	return &config.LedgerConfig{
		AllowSelfTransfer:            false,
		AllowReRequestAfterRejection: true,
		MaxRetries:                   2,
		RetryBaseDelay:               time.Millisecond,
		EventQueueKey:                "ledger_events",
		CatalogCacheTTL:              time.Minute,
	}
}

func newTestUnitOfWork(db *sql.DB) *UnitOfWork {
	return NewUnitOfWork(db, testLedgerConfig(), zap.NewNop())
}

var (
	entityCols      = []string{"id", "owner_id", "name", "kind", "balance", "created_at", "updated_at"}
	transactionCols = []string{"id", "payer_id", "payee_id", "amount", "description", "category_id", "date", "status", "mode_id", "created_at", "updated_at"}
	connectionCols  = []string{"id", "requester_id", "receiver_id", "status", "message", "created_at", "updated_at"}
	paymentModeCols = []string{"id", "owner_id", "name", "app_key", "linked_entity_id", "created_at", "updated_at"}
)

func entityRow(id, owner uuid.UUID, name string, kind models.EntityKind, balance string) *sqlmock.Rows {
	return sqlmock.NewRows(entityCols).
		AddRow(id.String(), owner.String(), name, string(kind), balance, fixedNow, fixedNow)
}

func transactionRow(id, payer, payee uuid.UUID, amount string, status models.TransactionStatus) *sqlmock.Rows {
	return sqlmock.NewRows(transactionCols).
		AddRow(id.String(), payer.String(), payee.String(), amount, nil, nil, fixedNow, string(status), nil, fixedNow, fixedNow)
}

func connectionRow(id, requester, receiver uuid.UUID, status string) *sqlmock.Rows {
	return sqlmock.NewRows(connectionCols).
		AddRow(id.String(), requester.String(), receiver.String(), status, nil, fixedNow, fixedNow)
}

func paymentModeRow(id, owner uuid.UUID, name, appKey string, linked *uuid.UUID) *sqlmock.Rows {
	var linkedValue any
	if linked != nil {
		linkedValue = linked.String()
	}
	return sqlmock.NewRows(paymentModeCols).
		AddRow(id.String(), owner.String(), name, appKey, linkedValue, fixedNow, fixedNow)
}
