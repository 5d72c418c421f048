package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle state of a transaction
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionRejected  TransactionStatus = "REJECTED"
)

// Valid reports whether s is a known status.
func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionPending, TransactionCompleted, TransactionRejected:
		return true
	}
	return false
}

// Transaction represents a directed movement of money from payer to payee
type Transaction struct {
	ID          uuid.UUID         `json:"transaction_id" db:"id"`
	PayerID     uuid.UUID         `json:"payer" db:"payer_id"`
	PayeeID     uuid.UUID         `json:"payee" db:"payee_id"`
	Amount      decimal.Decimal   `json:"amount" db:"amount"`
	Description *string           `json:"description" db:"description"`
	CategoryID  *uuid.UUID        `json:"category" db:"category_id"`
	Date        time.Time         `json:"date" db:"date"`
	Status      TransactionStatus `json:"status" db:"status"`
	ModeID      *uuid.UUID        `json:"mode" db:"mode_id"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
}

// MarshalJSON writes the amount at money scale.
func (t Transaction) MarshalJSON() ([]byte, error) {
	type transactionJSON Transaction
	return json.Marshal(struct {
		transactionJSON
		Amount string `json:"amount"`
	}{transactionJSON(t), t.Amount.StringFixed(2)})
}
