package services

import (
	"context"
	"database/sql"

	"github.com/hisabkitab/backend/internal/models"
)

// querier is the subset of *sql.DB and *sql.Tx the stores need, so the same
// helpers run inside and outside a unit of work.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

const (
	entityColumns      = "id, owner_id, name, kind, balance, created_at, updated_at"
	transactionColumns = "id, payer_id, payee_id, amount, description, category_id, date, status, mode_id, created_at, updated_at"
	connectionColumns  = "id, requester_id, receiver_id, status, message, created_at, updated_at"
	paymentModeColumns = "id, owner_id, name, app_key, linked_entity_id, created_at, updated_at"

	qualifiedTransactionColumns = "t.id, t.payer_id, t.payee_id, t.amount, t.description, t.category_id, t.date, t.status, t.mode_id, t.created_at, t.updated_at"
)

func scanEntity(row rowScanner) (*models.Entity, error) {
	var e models.Entity
	err := row.Scan(&e.ID, &e.OwnerID, &e.Name, &e.Kind, &e.Balance, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.PayerID, &t.PayeeID, &t.Amount, &t.Description, &t.CategoryID,
		&t.Date, &t.Status, &t.ModeID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanConnection(row rowScanner) (*models.UserConnection, error) {
	var c models.UserConnection
	err := row.Scan(&c.ID, &c.RequesterID, &c.ReceiverID, &c.Status, &c.Message, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanPaymentMode(row rowScanner) (*models.PaymentMode, error) {
	var m models.PaymentMode
	err := row.Scan(&m.ID, &m.OwnerID, &m.Name, &m.AppKey, &m.LinkedEntityID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
