// internal/model/lead.go
package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	LeadStatusActive    = "active"
	LeadStatusLead      = "lead"
	LeadStatusArchived  = "archived"
	LeadStatusScheduled = "lead/scheduled"
	LeadStatusQuote     = "lead/quote"
)

var leadStatuses = []string{LeadStatusActive, LeadStatusLead, LeadStatusArchived, LeadStatusScheduled, LeadStatusQuote}

type Lead struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	ClientName  string     `db:"client_name" json:"client_name"`
	ClientPhone string     `db:"client_phone" json:"client_phone"`
	ProjectType string     `db:"project_type" json:"project_type"`
	QuoteAmount *float64   `db:"quote_amount" json:"quote_amount,omitempty"`
	VisitDate   *time.Time `db:"visit_date" json:"visit_date,omitempty"`
	DateQuoted  time.Time  `db:"date_quoted" json:"date_quoted"`
	Status      string     `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// InitialLeadStatus derives a new lead's status: a scheduled visit wins over a quoted amount.
func InitialLeadStatus(visitDate *time.Time, quoteAmount *float64) string {
	switch {
	case visitDate != nil:
		return LeadStatusScheduled
	case quoteAmount != nil && *quoteAmount != 0:
		return LeadStatusQuote
	default:
		return LeadStatusActive
	}
}

func ValidLeadStatus(s string) bool { return contains(leadStatuses, s) }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
