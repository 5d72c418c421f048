package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hisabkitab/backend/internal/models"
	"go.uber.org/zap"
)

// PaymentModeService keeps each user's payment modes
type PaymentModeService struct {
	db      *sql.DB
	catalog AppCatalog
	logger  *zap.Logger
	now     func() time.Time
}

func NewPaymentModeService(db *sql.DB, catalog AppCatalog, logger *zap.Logger) *PaymentModeService {
	return &PaymentModeService{
		db:      db,
		catalog: catalog,
		logger:  logger.Named("payment_modes"),
		now:     time.Now,
	}
}

// Create registers a payment mode for a catalog app. A linked entity must
// belong to the same owner.
func (s *PaymentModeService) Create(ctx context.Context, ownerID uuid.UUID, name, appKey string, linkedEntityID *uuid.UUID) (*models.PaymentMode, error) {
	if _, err := s.catalog.Lookup(ctx, appKey); err != nil {
		return nil, err
	}

	if linkedEntityID != nil {
		var entityOwner uuid.UUID
		err := s.db.QueryRowContext(ctx,
			`SELECT owner_id FROM entities WHERE id = $1`, *linkedEntityID).Scan(&entityOwner)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntityNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("fetch linked entity: %w", err)
		}
		if entityOwner != ownerID {
			return nil, ErrForeignEntity
		}
	}

	now := s.now()
	mode := &models.PaymentMode{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		Name:           name,
		AppKey:         appKey,
		LinkedEntityID: linkedEntityID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_modes (id, owner_id, name, app_key, linked_entity_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		mode.ID, mode.OwnerID, mode.Name, mode.AppKey, mode.LinkedEntityID, mode.CreatedAt, mode.UpdatedAt)
	if hasSQLState(err, sqlStateForeignKeyViolation) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("insert payment mode: %w", err)
	}

	s.logger.Info("payment mode created",
		zap.Stringer("mode_id", mode.ID),
		zap.String("app_key", appKey))
	return mode, nil
}

// Get returns an owned payment mode.
func (s *PaymentModeService) Get(ctx context.Context, modeID, ownerID uuid.UUID) (*models.PaymentMode, error) {
	mode, err := scanPaymentMode(s.db.QueryRowContext(ctx,
		`SELECT `+paymentModeColumns+` FROM payment_modes WHERE id = $1 AND owner_id = $2`, modeID, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentModeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch payment mode %s: %w", modeID, err)
	}
	return mode, nil
}

func (s *PaymentModeService) List(ctx context.Context, ownerID uuid.UUID) ([]models.PaymentMode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+paymentModeColumns+` FROM payment_modes
		WHERE owner_id = $1
		ORDER BY name ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list payment modes: %w", err)
	}
	defer rows.Close()

	modes := []models.PaymentMode{}
	for rows.Next() {
		mode, err := scanPaymentMode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment mode: %w", err)
		}
		modes = append(modes, *mode)
	}
	return modes, rows.Err()
}

// Options lists the catalog apps a payment mode can be created for.
func (s *PaymentModeService) Options(ctx context.Context) ([]models.SupportedApp, error) {
	return s.catalog.List(ctx)
}
