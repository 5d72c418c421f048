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
	"go.uber.org/zap"
)

// ConnectionService runs the pending -> accepted|rejected state machine
// between two users.
type ConnectionService struct {
	db             *sql.DB
	uow            *UnitOfWork
	logger         *zap.Logger
	allowReRequest bool
	now            func() time.Time
}

func NewConnectionService(db *sql.DB, uow *UnitOfWork, cfg *config.LedgerConfig, logger *zap.Logger) *ConnectionService {
	return &ConnectionService{
		db:             db,
		uow:            uow,
		logger:         logger.Named("connections"),
		allowReRequest: cfg.AllowReRequestAfterRejection,
		now:            time.Now,
	}
}

// ResolveUsername maps a user handle to its id.
func (s *ConnectionService) ResolveUsername(ctx context.Context, username string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE username = $1`, username).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, ErrUserNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve username: %w", err)
	}
	return id, nil
}

// Request opens a pending connection from requester to receiver. At most one
// row exists per pair of users, whichever side asked first.
func (s *ConnectionService) Request(ctx context.Context, requesterID, receiverID uuid.UUID, message *string) (*models.UserConnection, error) {
	if requesterID == receiverID {
		return nil, ErrSelfRequest
	}

	var conn *models.UserConnection
	err := s.uow.Do(ctx, "request_connection", func(tx *sql.Tx) error {
		existing, err := scanConnection(tx.QueryRowContext(ctx, `
			SELECT `+connectionColumns+` FROM user_connections
			WHERE (requester_id = $1 AND receiver_id = $2) OR (requester_id = $2 AND receiver_id = $1)
			FOR UPDATE`, requesterID, receiverID))
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("fetch existing connection: %w", err)
		}

		now := s.now()
		if existing == nil {
			conn = &models.UserConnection{
				ID:          uuid.New(),
				RequesterID: requesterID,
				ReceiverID:  receiverID,
				Status:      models.ConnectionPending,
				Message:     message,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO user_connections (id, requester_id, receiver_id, status, message, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				conn.ID, conn.RequesterID, conn.ReceiverID, conn.Status, conn.Message, conn.CreatedAt, conn.UpdatedAt)
			switch {
			case hasSQLState(err, sqlStateUniqueViolation):
				// the other side inserted first; a new attempt sees their row
				return markRetryable(err)
			case hasSQLState(err, sqlStateForeignKeyViolation):
				return ErrUserNotFound
			case err != nil:
				return fmt.Errorf("insert connection: %w", err)
			}
			return nil
		}

		switch existing.Status {
		case models.ConnectionAccepted:
			return ErrAlreadyConnected
		case models.ConnectionPending:
			if existing.RequesterID == requesterID {
				return ErrAlreadyPending
			}
			return ErrReverseAlreadyPending
		}

		if !s.allowReRequest {
			return ErrPreviouslyRejected
		}

		// Reopen the rejected row as a fresh request from this requester.
		conn, err = scanConnection(tx.QueryRowContext(ctx, `
			UPDATE user_connections
			SET requester_id = $1, receiver_id = $2, status = $3, message = $4, created_at = $5, updated_at = $5
			WHERE id = $6 AND status = $7
			RETURNING `+connectionColumns,
			requesterID, receiverID, models.ConnectionPending, message, now, existing.ID, models.ConnectionRejected))
		if err != nil {
			return fmt.Errorf("reopen connection: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("connection requested",
		zap.Stringer("connection_id", conn.ID),
		zap.Stringer("requester_id", requesterID),
		zap.Stringer("receiver_id", receiverID))
	return conn, nil
}

// Accept moves a pending connection to accepted. Only the receiver may do so.
func (s *ConnectionService) Accept(ctx context.Context, connectionID, actingUserID uuid.UUID) (*models.UserConnection, error) {
	return s.respond(ctx, connectionID, actingUserID, models.ConnectionAccepted)
}

// Reject moves a pending connection to rejected. Only the receiver may do so.
func (s *ConnectionService) Reject(ctx context.Context, connectionID, actingUserID uuid.UUID) (*models.UserConnection, error) {
	return s.respond(ctx, connectionID, actingUserID, models.ConnectionRejected)
}

func (s *ConnectionService) respond(ctx context.Context, connectionID, actingUserID uuid.UUID, status string) (*models.UserConnection, error) {
	var conn *models.UserConnection
	err := s.uow.Do(ctx, "respond_connection", func(tx *sql.Tx) error {
		existing, err := scanConnection(tx.QueryRowContext(ctx,
			`SELECT `+connectionColumns+` FROM user_connections WHERE id = $1 FOR UPDATE`, connectionID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrConnectionNotFound
		}
		if err != nil {
			return fmt.Errorf("fetch connection: %w", err)
		}

		if !existing.Involves(actingUserID) {
			return ErrConnectionNotFound
		}
		if existing.ReceiverID != actingUserID {
			return ErrNotReceiver
		}
		if existing.Status != models.ConnectionPending {
			return ErrNotPending
		}

		conn, err = scanConnection(tx.QueryRowContext(ctx, `
			UPDATE user_connections SET status = $1, updated_at = $2
			WHERE id = $3 AND status = $4
			RETURNING `+connectionColumns,
			status, s.now(), connectionID, models.ConnectionPending))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotPending
		}
		if err != nil {
			return fmt.Errorf("update connection: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("connection answered",
		zap.Stringer("connection_id", conn.ID),
		zap.String("status", conn.Status))
	return conn, nil
}

// Get returns a connection the user takes part in.
func (s *ConnectionService) Get(ctx context.Context, connectionID, userID uuid.UUID) (*models.UserConnection, error) {
	conn, err := scanConnection(s.db.QueryRowContext(ctx, `
		SELECT `+connectionColumns+` FROM user_connections
		WHERE id = $1 AND (requester_id = $2 OR receiver_id = $2)`, connectionID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConnectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch connection: %w", err)
	}
	return conn, nil
}

// List returns every connection the user takes part in, newest first.
func (s *ConnectionService) List(ctx context.Context, userID uuid.UUID) ([]models.UserConnection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+connectionColumns+` FROM user_connections
		WHERE requester_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	connections := []models.UserConnection{}
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		connections = append(connections, *conn)
	}
	return connections, rows.Err()
}

// AreConnected reports whether an accepted connection exists between a and b
// in either direction. A user is always connected to themselves.
func (s *ConnectionService) AreConnected(ctx context.Context, a, b uuid.UUID) (bool, error) {
	if a == b {
		return true, nil
	}
	var connected bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_connections
			WHERE ((requester_id = $1 AND receiver_id = $2) OR (requester_id = $2 AND receiver_id = $1))
			AND status = $3
		)`, a, b, models.ConnectionAccepted).Scan(&connected)
	if err != nil {
		return false, fmt.Errorf("check connection: %w", err)
	}
	return connected, nil
}
