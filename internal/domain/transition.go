package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transition is one audited state change of a payment. From is nil for the
// initial CREATED row.
type Transition struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	From      *PaymentStatus
	To        PaymentStatus
	Actor     string
	Reason    *string
	CreatedAt time.Time
}
