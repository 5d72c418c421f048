package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntityKind classifies what an entity represents
type EntityKind string

const (
	EntityKindAccount       EntityKind = "ACCOUNT"
	EntityKindExternalPayee EntityKind = "EXTERNAL_PAYEE"
	EntityKindCategory      EntityKind = "CATEGORY"
	EntityKindWallet        EntityKind = "WALLET"
	EntityKindSystem        EntityKind = "SYSTEM"
)

// Valid reports whether k is one of the known entity kinds.
func (k EntityKind) Valid() bool {
	switch k {
	case EntityKindAccount, EntityKindExternalPayee, EntityKindCategory, EntityKindWallet, EntityKindSystem:
		return true
	}
	return false
}

// Entity is a money-holding or categorical node. Balance is only ever
// changed through atomic increments.
type Entity struct {
	ID        uuid.UUID       `json:"entity_id" db:"id"`
	OwnerID   uuid.UUID       `json:"owner_id" db:"owner_id"`
	Name      string          `json:"name" db:"name"`
	Kind      EntityKind      `json:"type" db:"kind"`
	Balance   decimal.Decimal `json:"current_balance" db:"balance"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// MarshalJSON writes the balance at money scale, so 900 goes out as "900.00".
func (e Entity) MarshalJSON() ([]byte, error) {
	type entityJSON Entity
	return json.Marshal(struct {
		entityJSON
		Balance string `json:"current_balance"`
	}{entityJSON(e), e.Balance.StringFixed(2)})
}
