//go:build integration

package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hisabkitab/backend/internal/database"
	"github.com/hisabkitab/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

type ledgerStack struct {
	db          *sql.DB
	entities    *EntityService
	ledger      *LedgerService
	connections *ConnectionService
}

func startPostgres(t *testing.T) *ledgerStack {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("hisabkitab"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.PingContext(ctx))
	require.NoError(t, database.RunMigrations(db, "hisabkitab", zap.NewNop()))

	for id, name := range map[uuid.UUID]string{aliceID: "alice", bobID: "bob"} {
		_, err := db.ExecContext(ctx, `INSERT INTO users (id, username) VALUES ($1, $2)`, id, name)
		require.NoError(t, err)
	}

	cfg := testLedgerConfig()
	logger := zap.NewNop()
	uow := NewUnitOfWork(db, cfg, logger)
	events := NewRedisEventPublisher(nil, cfg.EventQueueKey, logger)
	return &ledgerStack{
		db:          db,
		entities:    NewEntityService(db, uow, events, logger),
		ledger:      NewLedgerService(db, uow, events, cfg, logger),
		connections: NewConnectionService(db, uow, cfg, logger),
	}
}

func (s *ledgerStack) balance(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	e, err := s.entities.Get(context.Background(), id)
	require.NoError(t, err)
	return e.Balance
}

func (s *ledgerStack) totalBalance(t *testing.T) decimal.Decimal {
	t.Helper()
	var total decimal.Decimal
	require.NoError(t, s.db.QueryRow(`SELECT COALESCE(SUM(balance), 0) FROM entities`).Scan(&total))
	return total
}

func TestIntegration_ConcurrentCompletionAppliesOnce(t *testing.T) {
	s := startPostgres(t)
	ctx := context.Background()

	bank, err := s.entities.Create(ctx, aliceID, "HDFC", models.EntityKindAccount, decimal.NewFromInt(1000))
	require.NoError(t, err)
	shop, err := s.entities.Create(ctx, aliceID, "Grocer", models.EntityKindExternalPayee, decimal.Zero)
	require.NoError(t, err)

	pending, err := s.ledger.CreateTransaction(ctx, CreateTransactionInput{
		PayerID: bank.ID,
		PayeeID: shop.ID,
		Amount:  decimal.RequireFromString("100.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionPending, pending.Status)
	assert.True(t, s.balance(t, bank.ID).Equal(decimal.NewFromInt(1000)))

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ledger.UpdateStatus(ctx, pending.ID, models.TransactionCompleted)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrTransientConflict), err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.True(t, s.balance(t, bank.ID).Equal(decimal.NewFromInt(900)))
	assert.True(t, s.balance(t, shop.ID).Equal(decimal.NewFromInt(100)))
	assert.True(t, s.totalBalance(t).Equal(decimal.NewFromInt(1000)))
}

func TestIntegration_CreateDeleteRoundTrip(t *testing.T) {
	s := startPostgres(t)
	ctx := context.Background()

	bank, err := s.entities.Create(ctx, aliceID, "HDFC", models.EntityKindAccount, decimal.RequireFromString("250.75"))
	require.NoError(t, err)
	bobCash, err := s.entities.Create(ctx, bobID, "Cash", models.EntityKindAccount, decimal.NewFromInt(40))
	require.NoError(t, err)
	before := s.totalBalance(t)

	tx, err := s.ledger.CreateTransaction(ctx, CreateTransactionInput{
		PayerID: bank.ID,
		PayeeID: bobCash.ID,
		Amount:  decimal.RequireFromString("50.25"),
		Status:  models.TransactionCompleted,
	})
	require.NoError(t, err)
	assert.True(t, s.balance(t, bank.ID).Equal(decimal.RequireFromString("200.50")))
	assert.True(t, s.balance(t, bobCash.ID).Equal(decimal.RequireFromString("90.25")))

	require.NoError(t, s.ledger.DeleteTransaction(ctx, tx.ID))
	assert.True(t, s.balance(t, bank.ID).Equal(decimal.RequireFromString("250.75")))
	assert.True(t, s.balance(t, bobCash.ID).Equal(decimal.NewFromInt(40)))
	assert.True(t, s.totalBalance(t).Equal(before))

	_, err = s.ledger.GetForUser(ctx, tx.ID, aliceID)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestIntegration_DeleteEntityReversesCounterparty(t *testing.T) {
	s := startPostgres(t)
	ctx := context.Background()

	bank, err := s.entities.Create(ctx, aliceID, "HDFC", models.EntityKindAccount, decimal.NewFromInt(500))
	require.NoError(t, err)
	shop, err := s.entities.Create(ctx, aliceID, "Grocer", models.EntityKindExternalPayee, decimal.Zero)
	require.NoError(t, err)

	_, err = s.ledger.CreateTransaction(ctx, CreateTransactionInput{
		PayerID: bank.ID, PayeeID: shop.ID, Amount: decimal.NewFromInt(120), Status: models.TransactionCompleted,
	})
	require.NoError(t, err)
	_, err = s.ledger.CreateTransaction(ctx, CreateTransactionInput{
		PayerID: bank.ID, PayeeID: shop.ID, Amount: decimal.NewFromInt(30),
	})
	require.NoError(t, err)

	require.NoError(t, s.entities.Delete(ctx, shop.ID, aliceID))
	assert.True(t, s.balance(t, bank.ID).Equal(decimal.NewFromInt(500)))

	remaining, err := s.ledger.ListForUser(ctx, aliceID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestIntegration_CrossedRequestsLeaveOneConnection(t *testing.T) {
	s := startPostgres(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, pair := range [][2]uuid.UUID{{aliceID, bobID}, {bobID, aliceID}} {
		wg.Add(1)
		go func(i int, from, to uuid.UUID) {
			defer wg.Done()
			_, errs[i] = s.connections.Request(ctx, from, to, nil)
		}(i, pair[0], pair[1])
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			assert.True(t, errors.Is(err, ErrReverseAlreadyPending) || errors.Is(err, ErrTransientConflict), err)
		}
	}
	assert.Equal(t, 1, failures)

	var rows int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM user_connections`).Scan(&rows))
	assert.Equal(t, 1, rows)

	connected, err := s.connections.AreConnected(ctx, aliceID, bobID)
	require.NoError(t, err)
	assert.False(t, connected)
}
