package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hisabkitab/backend/internal/config"
	"github.com/hisabkitab/backend/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerService owns the transaction lifecycle and is the only component
// that moves balances in response to it. Every operation that touches a
// transaction and its entities runs as one unit of work.
type LedgerService struct {
	db                *sql.DB
	uow               *UnitOfWork
	events            EventPublisher
	audit             *AuditLogger
	logger            *zap.Logger
	allowSelfTransfer bool
	now               func() time.Time
}

// CreateTransactionInput carries an already authorized request
type CreateTransactionInput struct {
	PayerID     uuid.UUID
	PayeeID     uuid.UUID
	Amount      decimal.Decimal
	Status      models.TransactionStatus
	Description *string
	CategoryID  *uuid.UUID
	ModeID      *uuid.UUID
	Date        time.Time
}

func NewLedgerService(db *sql.DB, uow *UnitOfWork, events EventPublisher, cfg *config.LedgerConfig, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		db:                db,
		uow:               uow,
		events:            events,
		audit:             NewAuditLogger(logger),
		logger:            logger.Named("ledger"),
		allowSelfTransfer: cfg.AllowSelfTransfer,
		now:               time.Now,
	}
}

// CreateTransaction records a transaction. When it is created COMPLETED the
// balance effect is applied in the same unit of work as the insert.
func (s *LedgerService) CreateTransaction(ctx context.Context, in CreateTransactionInput) (*models.Transaction, error) {
	if in.Status == "" {
		in.Status = models.TransactionPending
	}
	if err := s.validateCreate(in); err != nil {
		return nil, err
	}

	now := s.now()
	t := &models.Transaction{
		ID:          uuid.New(),
		PayerID:     in.PayerID,
		PayeeID:     in.PayeeID,
		Amount:      in.Amount,
		Description: in.Description,
		CategoryID:  in.CategoryID,
		Date:        in.Date,
		Status:      in.Status,
		ModeID:      in.ModeID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Date.IsZero() {
		t.Date = now
	}

	err := s.uow.Do(ctx, "create_transaction", func(tx *sql.Tx) error {
		if _, err := lockEntities(ctx, tx, t.PayerID, t.PayeeID); err != nil {
			return err
		}
		if t.CategoryID != nil {
			if err := checkCategory(ctx, tx, *t.CategoryID); err != nil {
				return err
			}
		}
		if t.ModeID != nil {
			if err := checkPaymentModeExists(ctx, tx, *t.ModeID); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (id, payer_id, payee_id, amount, description, category_id, date, status, mode_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			t.ID, t.PayerID, t.PayeeID, t.Amount, t.Description, t.CategoryID,
			t.Date, string(t.Status), t.ModeID, t.CreatedAt, t.UpdatedAt); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		if t.Status == models.TransactionCompleted {
			return s.applyEffect(ctx, tx, t, now)
		}
		return nil
	})
	if err != nil {
		s.logFailure(t.ID, "create_transaction", err)
		return nil, err
	}

	s.audit.LogTransfer(t.ID, t.PayerID, t.PayeeID, t.Amount, string(t.Status))
	s.publish(ctx, EventTransactionCreated, t)
	return t, nil
}

// UpdateStatus moves a PENDING transaction to COMPLETED or REJECTED exactly
// once. Completing applies the balance effect; rejecting applies none.
func (s *LedgerService) UpdateStatus(ctx context.Context, transactionID uuid.UUID, newStatus models.TransactionStatus) (*models.Transaction, error) {
	if newStatus != models.TransactionCompleted && newStatus != models.TransactionRejected {
		return nil, ErrInvalidTransition
	}

	var updated *models.Transaction
	err := s.uow.Do(ctx, "update_transaction_status", func(tx *sql.Tx) error {
		t, err := lockTransaction(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if t.Status != models.TransactionPending {
			return ErrInvalidTransition
		}

		if newStatus == models.TransactionCompleted {
			if _, err := lockEntities(ctx, tx, t.PayerID, t.PayeeID); err != nil {
				return err
			}
		}

		now := s.now()
		result, err := tx.ExecContext(ctx, `
			UPDATE transactions SET status = $1, updated_at = $2
			WHERE id = $3 AND status = $4`,
			string(newStatus), now, transactionID, string(models.TransactionPending))
		if err != nil {
			return fmt.Errorf("update transaction status: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			return ErrInvalidTransition
		}

		if newStatus == models.TransactionCompleted {
			if err := s.applyEffect(ctx, tx, t, now); err != nil {
				return err
			}
		}

		t.Status = newStatus
		t.UpdatedAt = now
		updated = t
		return nil
	})
	if err != nil {
		s.logFailure(transactionID, "update_transaction_status", err)
		return nil, err
	}

	s.audit.LogTransfer(updated.ID, updated.PayerID, updated.PayeeID, updated.Amount, string(updated.Status))
	if newStatus == models.TransactionCompleted {
		s.publish(ctx, EventTransactionCompleted, updated)
	} else {
		s.publish(ctx, EventTransactionRejected, updated)
	}
	return updated, nil
}

// DeleteTransaction removes a transaction, reversing its balance effect
// first when it was COMPLETED.
func (s *LedgerService) DeleteTransaction(ctx context.Context, transactionID uuid.UUID) error {
	var deleted *models.Transaction
	err := s.uow.Do(ctx, "delete_transaction", func(tx *sql.Tx) error {
		t, err := lockTransaction(ctx, tx, transactionID)
		if err != nil {
			return err
		}

		if t.Status == models.TransactionCompleted {
			if _, err := lockEntities(ctx, tx, t.PayerID, t.PayeeID); err != nil {
				return err
			}
			if err := s.reverseEffect(ctx, tx, t, s.now()); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, transactionID); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		deleted = t
		return nil
	})
	if err != nil {
		s.logFailure(transactionID, "delete_transaction", err)
		return err
	}

	if deleted.Status == models.TransactionCompleted {
		s.audit.LogReversal(deleted.ID, deleted.PayerID, deleted.PayeeID, deleted.Amount)
	}
	s.publish(ctx, EventTransactionDeleted, deleted)
	return nil
}

// GetForUser returns the transaction if userID owns its payer or payee.
func (s *LedgerService) GetForUser(ctx context.Context, transactionID, userID uuid.UUID) (*models.Transaction, error) {
	t, err := scanTransaction(s.db.QueryRowContext(ctx, `
		SELECT `+qualifiedTransactionColumns+`
		FROM transactions t
		JOIN entities p ON p.id = t.payer_id
		JOIN entities q ON q.id = t.payee_id
		WHERE t.id = $1 AND (p.owner_id = $2 OR q.owner_id = $2)`,
		transactionID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch transaction %s: %w", transactionID, err)
	}
	return t, nil
}

// ListForUser returns every transaction whose payer or payee is owned by
// userID, newest effective date first.
func (s *LedgerService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+qualifiedTransactionColumns+`
		FROM transactions t
		JOIN entities p ON p.id = t.payer_id
		JOIN entities q ON q.id = t.payee_id
		WHERE p.owner_id = $1 OR q.owner_id = $1
		ORDER BY t.date DESC, t.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

func (s *LedgerService) validateCreate(in CreateTransactionInput) error {
	if !in.Amount.IsPositive() || !hasMoneyScale(in.Amount) {
		return ErrInvalidAmount
	}
	if in.Status != models.TransactionPending && in.Status != models.TransactionCompleted {
		return ErrInvalidInitialStatus
	}
	if in.PayerID == in.PayeeID && !s.allowSelfTransfer {
		return ErrSelfTransfer
	}
	return nil
}

// applyEffect debits the payer and credits the payee. A permitted
// self-transfer nets to zero and writes nothing.
func (s *LedgerService) applyEffect(ctx context.Context, q querier, t *models.Transaction, now time.Time) error {
	return s.moveBalance(ctx, q, t.PayerID, t.PayeeID, t.Amount, now)
}

// reverseEffect undoes applyEffect.
func (s *LedgerService) reverseEffect(ctx context.Context, q querier, t *models.Transaction, now time.Time) error {
	return s.moveBalance(ctx, q, t.PayeeID, t.PayerID, t.Amount, now)
}

func (s *LedgerService) moveBalance(ctx context.Context, q querier, from, to uuid.UUID, amount decimal.Decimal, now time.Time) error {
	if from == to {
		return nil
	}
	if _, err := applyDelta(ctx, q, from, amount.Neg(), now); err != nil {
		return err
	}
	if _, err := applyDelta(ctx, q, to, amount, now); err != nil {
		return err
	}
	return nil
}

func (s *LedgerService) publish(ctx context.Context, eventType string, t *models.Transaction) {
	s.events.Publish(ctx, Event{
		Type:      eventType,
		SubjectID: t.ID,
		Data: map[string]string{
			"payer_id": t.PayerID.String(),
			"payee_id": t.PayeeID.String(),
			"amount":   t.Amount.StringFixed(2),
			"status":   string(t.Status),
		},
		OccurredAt: s.now(),
	})
}

// logFailure keeps business-rule rejections out of the audit error stream.
func (s *LedgerService) logFailure(subjectID uuid.UUID, operation string, err error) {
	if svcErr, ok := AsServiceError(err); ok && svcErr != ErrTransientConflict {
		s.logger.Debug("ledger operation rejected",
			zap.String("operation", operation),
			zap.Stringer("subject_id", subjectID),
			zap.String("code", svcErr.Code))
		return
	}
	s.audit.LogError(subjectID, operation, err)
}

func lockTransaction(ctx context.Context, q querier, transactionID uuid.UUID) (*models.Transaction, error) {
	t, err := scanTransaction(q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock transaction %s: %w", transactionID, err)
	}
	return t, nil
}

func checkCategory(ctx context.Context, q querier, categoryID uuid.UUID) error {
	var kind string
	err := q.QueryRowContext(ctx, `SELECT kind FROM entities WHERE id = $1`, categoryID).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidCategory
	}
	if err != nil {
		return fmt.Errorf("fetch category %s: %w", categoryID, err)
	}
	if models.EntityKind(kind) != models.EntityKindCategory {
		return ErrInvalidCategory
	}
	return nil
}

func checkPaymentModeExists(ctx context.Context, q querier, modeID uuid.UUID) error {
	var exists int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM payment_modes WHERE id = $1`, modeID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPaymentModeNotFound
	}
	if err != nil {
		return fmt.Errorf("fetch payment mode %s: %w", modeID, err)
	}
	return nil
}
