package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hisabkitab/backend/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WalletService provisions a WALLET entity behind a payment mode whose app
// supports wallets.
type WalletService struct {
	uow     *UnitOfWork
	catalog AppCatalog
	events  EventPublisher
	logger  *zap.Logger
	now     func() time.Time
}

func NewWalletService(uow *UnitOfWork, catalog AppCatalog, events EventPublisher, logger *zap.Logger) *WalletService {
	return &WalletService{
		uow:     uow,
		catalog: catalog,
		events:  events,
		logger:  logger.Named("wallets"),
		now:     time.Now,
	}
}

// CreateWallet creates the wallet entity and links it to the payment mode.
// Both writes commit together; a mode ends up with at most one wallet.
func (s *WalletService) CreateWallet(ctx context.Context, paymentModeID, actingUserID uuid.UUID) (*models.Entity, error) {
	var wallet *models.Entity
	err := s.uow.Do(ctx, "create_wallet", func(tx *sql.Tx) error {
		mode, err := scanPaymentMode(tx.QueryRowContext(ctx,
			`SELECT `+paymentModeColumns+` FROM payment_modes WHERE id = $1 AND owner_id = $2 FOR UPDATE`,
			paymentModeID, actingUserID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPaymentModeNotFound
		}
		if err != nil {
			return fmt.Errorf("lock payment mode %s: %w", paymentModeID, err)
		}

		app, err := s.catalog.Lookup(ctx, mode.AppKey)
		if err != nil {
			return err
		}
		if !app.SupportsWallet {
			return ErrWalletsNotSupported
		}
		if mode.LinkedEntityID != nil {
			return ErrAlreadyLinked
		}

		now := s.now()
		wallet = &models.Entity{
			ID:        uuid.New(),
			OwnerID:   mode.OwnerID,
			Name:      mode.Name + " Wallet",
			Kind:      models.EntityKindWallet,
			Balance:   decimal.Zero,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := insertEntity(ctx, tx, wallet); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE payment_modes SET linked_entity_id = $1, updated_at = $2
			WHERE id = $3 AND linked_entity_id IS NULL`,
			wallet.ID, now, mode.ID)
		if err != nil {
			return fmt.Errorf("link wallet: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			return ErrAlreadyLinked
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("wallet created",
		zap.Stringer("mode_id", paymentModeID),
		zap.Stringer("entity_id", wallet.ID))
	s.events.Publish(ctx, Event{
		Type:       EventWalletCreated,
		SubjectID:  wallet.ID,
		Data:       map[string]string{"mode_id": paymentModeID.String()},
		OccurredAt: s.now(),
	})
	return wallet, nil
}
