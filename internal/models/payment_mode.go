package models

import (
	"time"

	"github.com/google/uuid"
)

// SupportedApp is a catalog entry describing a payment app
type SupportedApp struct {
	Key            string  `json:"key" db:"key"`
	Name           string  `json:"name" db:"name"`
	SupportsWallet bool    `json:"supports_wallet" db:"supports_wallet"`
	Icon           *string `json:"icon" db:"icon"`
}

// PaymentMode is a user's named handle on a catalog app, optionally backed
// by one of the user's entities.
type PaymentMode struct {
	ID             uuid.UUID  `json:"mode_id" db:"id"`
	OwnerID        uuid.UUID  `json:"owner_id" db:"owner_id"`
	Name           string     `json:"name" db:"name"`
	AppKey         string     `json:"app_key" db:"app_key"`
	LinkedEntityID *uuid.UUID `json:"linked_entity" db:"linked_entity_id"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}
