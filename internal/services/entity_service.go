package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hisabkitab/backend/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EntityService is the entity store. Outside of creation and manual
// adjustment, balances only move through the ledger.
type EntityService struct {
	db     *sql.DB
	uow    *UnitOfWork
	events EventPublisher
	audit  *AuditLogger
	logger *zap.Logger
	now    func() time.Time
}

func NewEntityService(db *sql.DB, uow *UnitOfWork, events EventPublisher, logger *zap.Logger) *EntityService {
	return &EntityService{
		db:     db,
		uow:    uow,
		events: events,
		audit:  NewAuditLogger(logger),
		logger: logger.Named("entities"),
		now:    time.Now,
	}
}

// Create inserts a new entity, optionally seeded with a non-zero balance.
func (s *EntityService) Create(ctx context.Context, ownerID uuid.UUID, name string, kind models.EntityKind, initialBalance decimal.Decimal) (*models.Entity, error) {
	if !kind.Valid() {
		return nil, ErrInvalidEntityKind
	}
	if !hasMoneyScale(initialBalance) {
		return nil, ErrInvalidBalance
	}

	now := s.now()
	entity := &models.Entity{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      name,
		Kind:      kind,
		Balance:   initialBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := insertEntity(ctx, s.db, entity); err != nil {
		return nil, err
	}

	s.logger.Info("entity created",
		zap.Stringer("entity_id", entity.ID),
		zap.Stringer("owner_id", ownerID),
		zap.String("kind", string(kind)))
	return entity, nil
}

// Get returns the entity or ErrEntityNotFound.
func (s *EntityService) Get(ctx context.Context, entityID uuid.UUID) (*models.Entity, error) {
	entity, err := scanEntity(s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = $1`, entityID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch entity %s: %w", entityID, err)
	}
	return entity, nil
}

// GetOwned is Get restricted to entities owned by ownerID. Entities of other
// users are reported as not found.
func (s *EntityService) GetOwned(ctx context.Context, entityID, ownerID uuid.UUID) (*models.Entity, error) {
	entity, err := scanEntity(s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = $1 AND owner_id = $2`, entityID, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch entity %s: %w", entityID, err)
	}
	return entity, nil
}

// ListByOwner returns the owner's entities ordered by name. A nil kind lists all kinds.
func (s *EntityService) ListByOwner(ctx context.Context, ownerID uuid.UUID, kind *models.EntityKind) ([]models.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE owner_id = $1`
	args := []any{ownerID}
	if kind != nil {
		query += ` AND kind = $2`
		args = append(args, string(*kind))
	}
	query += ` ORDER BY name ASC, created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	entities := []models.Entity{}
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		entities = append(entities, *entity)
	}
	return entities, rows.Err()
}

// AdjustBalance adds delta to the entity's balance in one atomic statement.
func (s *EntityService) AdjustBalance(ctx context.Context, entityID uuid.UUID, delta decimal.Decimal) (*models.Entity, error) {
	if !hasMoneyScale(delta) {
		return nil, ErrInvalidBalance
	}

	entity, err := applyDelta(ctx, s.db, entityID, delta, s.now())
	if err != nil {
		return nil, err
	}

	s.audit.LogAdjustment(entityID, delta, entity.Balance)
	return entity, nil
}

// Rename changes the display name of an owned entity.
func (s *EntityService) Rename(ctx context.Context, entityID, ownerID uuid.UUID, name string) (*models.Entity, error) {
	entity, err := scanEntity(s.db.QueryRowContext(ctx, `
		UPDATE entities SET name = $1, updated_at = $2
		WHERE id = $3 AND owner_id = $4
		RETURNING `+entityColumns,
		name, s.now(), entityID, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("rename entity %s: %w", entityID, err)
	}
	return entity, nil
}

// Delete removes an owned entity together with every transaction that
// references it as payer or payee. Completed transactions are reversed on
// their counterparties in the same unit of work.
func (s *EntityService) Delete(ctx context.Context, entityID, ownerID uuid.UUID) error {
	var removed []models.Transaction

	err := s.uow.Do(ctx, "delete_entity", func(tx *sql.Tx) error {
		removed = nil

		err := tx.QueryRowContext(ctx,
			`SELECT id FROM entities WHERE id = $1 AND owner_id = $2 FOR UPDATE`,
			entityID, ownerID).Scan(new(uuid.UUID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEntityNotFound
		}
		if err != nil {
			return fmt.Errorf("lock entity %s: %w", entityID, err)
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT `+transactionColumns+` FROM transactions
			WHERE payer_id = $1 OR payee_id = $1
			FOR UPDATE`, entityID)
		if err != nil {
			return fmt.Errorf("lock dependent transactions: %w", err)
		}
		for rows.Next() {
			t, err := scanTransaction(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("scan transaction: %w", err)
			}
			removed = append(removed, *t)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		deltas := counterpartyReversals(entityID, removed)
		counterparties := make([]uuid.UUID, 0, len(deltas))
		for id := range deltas {
			counterparties = append(counterparties, id)
		}
		if _, err := lockEntities(ctx, tx, counterparties...); err != nil {
			return err
		}

		now := s.now()
		for _, id := range sortedIDs(counterparties) {
			if deltas[id].IsZero() {
				continue
			}
			if _, err := applyDelta(ctx, tx, id, deltas[id], now); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM transactions WHERE payer_id = $1 OR payee_id = $1`, entityID); err != nil {
			return fmt.Errorf("delete dependent transactions: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE id = $1`, entityID); err != nil {
			return fmt.Errorf("delete entity: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, t := range removed {
		if t.Status == models.TransactionCompleted {
			s.audit.LogReversal(t.ID, t.PayerID, t.PayeeID, t.Amount)
		}
	}
	s.events.Publish(ctx, Event{
		Type:       EventEntityDeleted,
		SubjectID:  entityID,
		Data:       map[string]int{"removed_transactions": len(removed)},
		OccurredAt: s.now(),
	})
	return nil
}

// counterpartyReversals sums, per counterparty, the balance change that
// undoes every completed transaction between it and entityID.
func counterpartyReversals(entityID uuid.UUID, txs []models.Transaction) map[uuid.UUID]decimal.Decimal {
	deltas := make(map[uuid.UUID]decimal.Decimal)
	for _, t := range txs {
		if t.Status != models.TransactionCompleted || t.PayerID == t.PayeeID {
			continue
		}
		if t.PayerID == entityID {
			deltas[t.PayeeID] = deltas[t.PayeeID].Sub(t.Amount)
		} else {
			deltas[t.PayerID] = deltas[t.PayerID].Add(t.Amount)
		}
	}
	return deltas
}

func insertEntity(ctx context.Context, q querier, e *models.Entity) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO entities (id, owner_id, name, kind, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.OwnerID, e.Name, string(e.Kind), e.Balance, e.CreatedAt, e.UpdatedAt)
	if hasSQLState(err, sqlStateForeignKeyViolation) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("insert entity: %w", err)
	}
	return nil
}

// applyDelta is the only balance write in the system: a single atomic
// increment, never a read-modify-write.
func applyDelta(ctx context.Context, q querier, entityID uuid.UUID, delta decimal.Decimal, now time.Time) (*models.Entity, error) {
	entity, err := scanEntity(q.QueryRowContext(ctx, `
		UPDATE entities SET balance = balance + $1, updated_at = $2
		WHERE id = $3
		RETURNING `+entityColumns,
		delta, now, entityID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update balance of %s: %w", entityID, err)
	}
	return entity, nil
}

// lockEntities takes row locks in ascending id order so that units of work
// touching the same entities cannot deadlock on each other.
func lockEntities(ctx context.Context, q querier, ids ...uuid.UUID) (map[uuid.UUID]*models.Entity, error) {
	locked := make(map[uuid.UUID]*models.Entity, len(ids))
	for _, id := range sortedIDs(ids) {
		entity, err := scanEntity(q.QueryRowContext(ctx,
			`SELECT `+entityColumns+` FROM entities WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntityNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("lock entity %s: %w", id, err)
		}
		locked[id] = entity
	}
	return locked, nil
}

// sortedIDs returns the distinct ids in ascending byte order.
func sortedIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

func hasMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}
