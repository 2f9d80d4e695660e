package controller

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/contractor-followups/internal/errors"
	"github.com/unclebandit/contractor-followups/internal/model"
	"github.com/unclebandit/contractor-followups/internal/service"
)

type FollowUpServiceInterface interface {
	CreateLead(ctx context.Context, in service.CreateLeadInput) (*service.LeadWithSequence, error)
	CreateQuote(ctx context.Context, in service.CreateQuoteInput) (*service.QuoteWithSequence, error)
	DuplicateQuote(ctx context.Context, id uuid.UUID) (*service.QuoteWithSequence, error)
	UpdateStatus(ctx context.Context, ref model.ParentRef, status string) error
	Delete(ctx context.Context, ref model.ParentRef) error
}

var _ FollowUpServiceInterface = (*service.FollowUpService)(nil)

type FollowUpController struct {
	Service  FollowUpServiceInterface
	Location *time.Location
}

func (c *FollowUpController) CreateLead(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ClientName  string   `json:"client_name"`
		ClientPhone string   `json:"client_phone"`
		ProjectType string   `json:"project_type"`
		QuoteAmount *float64 `json:"quote_amount"`
		VisitDate   *string  `json:"visit_date"`
		DateQuoted  *string  `json:"date_quoted"`
	}
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}

	visit, err := parseDate(body.VisitDate, c.Location)
	if err != nil {
		WriteError(w, err)
		return
	}
	quoted, err := parseDate(body.DateQuoted, c.Location)
	if err != nil {
		WriteError(w, err)
		return
	}

	out, err := c.Service.CreateLead(r.Context(), service.CreateLeadInput{
		ClientName:  body.ClientName,
		ClientPhone: body.ClientPhone,
		ProjectType: body.ProjectType,
		QuoteAmount: body.QuoteAmount,
		VisitDate:   visit,
		DateQuoted:  quoted,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, out)
}

func (c *FollowUpController) CreateQuote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ClientID   uuid.UUID `json:"client_id"`
		Title      *string   `json:"quote_title"`
		Amount     float64   `json:"quote_amount"`
		DateQuoted *string   `json:"date_quoted"`
		ValidUntil *string   `json:"valid_until"`
		Notes      *string   `json:"notes"`
	}
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}

	quoted, err := parseDate(body.DateQuoted, c.Location)
	if err != nil {
		WriteError(w, err)
		return
	}
	validUntil, err := parseDate(body.ValidUntil, c.Location)
	if err != nil {
		WriteError(w, err)
		return
	}

	out, err := c.Service.CreateQuote(r.Context(), service.CreateQuoteInput{
		ClientID:   body.ClientID,
		Title:      body.Title,
		Amount:     body.Amount,
		DateQuoted: quoted,
		ValidUntil: validUntil,
		Notes:      body.Notes,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, out)
}

func (c *FollowUpController) DuplicateQuote(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	out, err := c.Service.DuplicateQuote(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, out)
}

// UpdateStatus returns the PATCH /{kind}s/{id}/status handler.
func (c *FollowUpController) UpdateStatus(kind model.ParentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := ParseID(r)
		if err != nil {
			WriteError(w, err)
			return
		}
		var body struct {
			Status string `json:"status"`
		}
		if err := decode(r, &body); err != nil {
			WriteError(w, err)
			return
		}

		ref := model.ParentRef{Kind: kind, ID: id}
		if err := c.Service.UpdateStatus(r.Context(), ref, body.Status); err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"id":              id,
			"status":          body.Status,
			"follow_ups_live": model.IsLive(kind, body.Status),
		})
	}
}

// Delete returns the DELETE /{kind}s/{id} handler.
func (c *FollowUpController) Delete(kind model.ParentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := ParseID(r)
		if err != nil {
			WriteError(w, err)
			return
		}
		if err := c.Service.Delete(r.Context(), model.ParentRef{Kind: kind, ID: id}); err != nil {
			WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type previewMessage struct {
	SequenceDay  int       `json:"sequence_day"`
	ScheduledFor time.Time `json:"scheduled_for"`
	MessageText  string    `json:"message_text"`
}

// PreviewSequence renders the follow-ups a new lead would get, without saving anything.
func (c *FollowUpController) PreviewSequence(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string  `json:"name"`
		ProjectType string  `json:"project_type"`
		AnchorDate  *string `json:"anchor_date"`
	}
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		WriteError(w, fmt.Errorf("%w: name is required", appErrors.ErrInvalidInput))
		return
	}
	anchor, err := parseDate(body.AnchorDate, c.Location)
	if err != nil {
		WriteError(w, err)
		return
	}
	if anchor == nil {
		now := time.Now().In(c.Location)
		anchor = &now
	}

	msgs := service.GenerateSequence(service.Anchor{Name: body.Name, ProjectType: body.ProjectType, Date: *anchor})
	out := make([]previewMessage, len(msgs))
	for i, m := range msgs {
		out[i] = previewMessage{SequenceDay: m.SequenceDay, ScheduledFor: m.ScheduledFor, MessageText: m.MessageText}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"messages": out})
}
