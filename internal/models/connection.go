package models

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionStatus represents connection status
const (
	ConnectionPending  = "pending"
	ConnectionAccepted = "accepted"
	ConnectionRejected = "rejected"
)

// UserConnection is a social edge between two users
type UserConnection struct {
	ID          uuid.UUID `json:"connection_id" db:"id"`
	RequesterID uuid.UUID `json:"requester" db:"requester_id"`
	ReceiverID  uuid.UUID `json:"receiver" db:"receiver_id"`
	Status      string    `json:"status" db:"status"`
	Message     *string   `json:"message" db:"message"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Involves reports whether userID is either side of the connection.
func (c *UserConnection) Involves(userID uuid.UUID) bool {
	return c.RequesterID == userID || c.ReceiverID == userID
}
