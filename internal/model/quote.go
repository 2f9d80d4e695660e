// internal/model/quote.go
package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	QuoteStatusPending  = "pending"
	QuoteStatusAccepted = "accepted"
	QuoteStatusRejected = "rejected"
	QuoteStatusExpired  = "expired"
	QuoteStatusVoid     = "void"
)

var quoteStatuses = []string{QuoteStatusPending, QuoteStatusAccepted, QuoteStatusRejected, QuoteStatusExpired, QuoteStatusVoid}

type Quote struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	ClientID   uuid.UUID  `db:"client_id" json:"client_id"`
	Title      *string    `db:"quote_title" json:"quote_title,omitempty"`
	Amount     float64    `db:"quote_amount" json:"quote_amount"`
	DateQuoted time.Time  `db:"date_quoted" json:"date_quoted"`
	ValidUntil *time.Time `db:"valid_until" json:"valid_until,omitempty"`
	Status     string     `db:"status" json:"status"`
	Notes      *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

func ValidQuoteStatus(s string) bool { return contains(quoteStatuses, s) }
