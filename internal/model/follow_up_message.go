// internal/model/follow_up_message.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type MessageStatus string

const (
	MessageStatusPending MessageStatus = "pending"
	MessageStatusSending MessageStatus = "sending" // claimed by a dispatch cycle
	MessageStatusSent    MessageStatus = "sent"
	MessageStatusFailed  MessageStatus = "failed"
)

type FollowUpMessage struct {
	ID                uuid.UUID     `db:"id" json:"id"`
	LeadID            *uuid.UUID    `db:"lead_id" json:"lead_id,omitempty"`
	QuoteID           *uuid.UUID    `db:"quote_id" json:"quote_id,omitempty"`
	ProjectID         *uuid.UUID    `db:"project_id" json:"project_id,omitempty"`
	MessageText       string        `db:"message_text" json:"message_text"`
	SequenceDay       int           `db:"sequence_day" json:"sequence_day"`
	ScheduledFor      time.Time     `db:"scheduled_for" json:"scheduled_for"`
	SentAt            *time.Time    `db:"sent_at" json:"sent_at,omitempty"`
	Status            MessageStatus `db:"status" json:"status"` // pending, sending, sent, failed
	ProviderMessageID string        `db:"provider_message_id" json:"provider_message_id,omitempty"`
	LastError         string        `db:"last_error" json:"last_error,omitempty"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// Parent returns the record owning the message. ok is false when no parent column is set.
func (m *FollowUpMessage) Parent() (ref ParentRef, ok bool) {
	switch {
	case m.LeadID != nil:
		return ParentRef{Kind: ParentLead, ID: *m.LeadID}, true
	case m.QuoteID != nil:
		return ParentRef{Kind: ParentQuote, ID: *m.QuoteID}, true
	case m.ProjectID != nil:
		return ParentRef{Kind: ParentProject, ID: *m.ProjectID}, true
	}
	return ParentRef{}, false
}

// SetParent points the message at ref, clearing the other parent columns.
func (m *FollowUpMessage) SetParent(ref ParentRef) {
	m.LeadID, m.QuoteID, m.ProjectID = nil, nil, nil
	id := ref.ID
	switch ref.Kind {
	case ParentLead:
		m.LeadID = &id
	case ParentQuote:
		m.QuoteID = &id
	case ParentProject:
		m.ProjectID = &id
	}
}

// DueMessage is a pending message selected for delivery together with the
// destination resolved from its parent.
type DueMessage struct {
	FollowUpMessage
	Destination  string `json:"destination"`
	ParentStatus string `json:"parent_status"`
}
