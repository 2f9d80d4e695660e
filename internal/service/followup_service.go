package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/contractor-followups/internal/errors"
	"github.com/unclebandit/contractor-followups/internal/metrics"
	"github.com/unclebandit/contractor-followups/internal/model"
	"github.com/unclebandit/contractor-followups/internal/repository"
)

// FollowUpService creates parents together with their follow-up sequences and manages
// the parent statuses that gate dispatch.
type FollowUpService struct {
	Leads    repository.LeadRepositoryInterface
	Quotes   repository.QuoteRepositoryInterface
	Projects repository.ProjectRepositoryInterface
	Clients  repository.ClientRepositoryInterface
	Messages repository.FollowUpMessageRepositoryInterface
	Tx       repository.TransactorInterface

	Location *time.Location
	Now      func() time.Time
	Logger   *zap.Logger
}

type CreateLeadInput struct {
	ClientName  string     `json:"client_name"`
	ClientPhone string     `json:"client_phone"`
	ProjectType string     `json:"project_type"`
	QuoteAmount *float64   `json:"quote_amount,omitempty"`
	VisitDate   *time.Time `json:"visit_date,omitempty"`
	DateQuoted  *time.Time `json:"date_quoted,omitempty"` // defaults to today
}

type CreateQuoteInput struct {
	ClientID   uuid.UUID  `json:"client_id"`
	Title      *string    `json:"quote_title,omitempty"`
	Amount     float64    `json:"quote_amount"`
	DateQuoted *time.Time `json:"date_quoted,omitempty"` // defaults to today
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
}

type LeadWithSequence struct {
	Lead     *model.Lead             `json:"lead"`
	Messages []model.FollowUpMessage `json:"messages"`
}

type QuoteWithSequence struct {
	Quote    *model.Quote            `json:"quote"`
	Messages []model.FollowUpMessage `json:"messages"`
}

type TimelineStats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Sending int `json:"sending"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}

type Timeline struct {
	Parent   model.ParentRef         `json:"parent"`
	Messages []model.FollowUpMessage `json:"messages"`
	Stats    TimelineStats           `json:"stats"`
}

func (s *FollowUpService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *FollowUpService) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

// anchorDate keeps the calendar date of d (today when nil) and places it at midnight
// in the service location.
func (s *FollowUpService) anchorDate(d *time.Time) time.Time {
	t := s.now().In(s.location())
	if d != nil {
		t = *d
	}
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, s.location())
}

func (s *FollowUpService) CreateLead(ctx context.Context, in CreateLeadInput) (*LeadWithSequence, error) {
	name := strings.TrimSpace(in.ClientName)
	phone := strings.TrimSpace(in.ClientPhone)
	if name == "" || phone == "" {
		return nil, fmt.Errorf("%w: client_name and client_phone are required", appErrors.ErrInvalidInput)
	}

	lead := &model.Lead{
		ID:          uuid.New(),
		ClientName:  name,
		ClientPhone: phone,
		ProjectType: strings.TrimSpace(in.ProjectType),
		QuoteAmount: in.QuoteAmount,
		VisitDate:   in.VisitDate,
		DateQuoted:  s.anchorDate(in.DateQuoted),
		Status:      model.InitialLeadStatus(in.VisitDate, in.QuoteAmount),
	}

	msgs := GenerateSequence(Anchor{
		Parent:      model.ParentRef{Kind: model.ParentLead, ID: lead.ID},
		Name:        lead.ClientName,
		ProjectType: lead.ProjectType,
		Date:        lead.DateQuoted,
	})

	err := s.Tx.WithTx(ctx, func(q repository.DBTX) error {
		if err := s.Leads.Create(ctx, q, lead); err != nil {
			return fmt.Errorf("create lead: %w", err)
		}
		return s.Messages.InsertSequence(ctx, q, msgs)
	})
	if err != nil {
		return nil, err
	}

	metrics.SequencesCreatedTotal.WithLabelValues(string(model.ParentLead)).Inc()
	s.Logger.Info("lead created with follow-up sequence",
		zap.String("lead_id", lead.ID.String()),
		zap.String("status", lead.Status),
		zap.Time("anchor", lead.DateQuoted),
	)
	return &LeadWithSequence{Lead: lead, Messages: msgs}, nil
}

func (s *FollowUpService) CreateQuote(ctx context.Context, in CreateQuoteInput) (*QuoteWithSequence, error) {
	if in.Amount < 0 {
		return nil, fmt.Errorf("%w: quote_amount must not be negative", appErrors.ErrInvalidInput)
	}

	client, err := s.Clients.GetByID(ctx, in.ClientID)
	if err != nil {
		return nil, err
	}

	quote := &model.Quote{
		ID:         uuid.New(),
		ClientID:   client.ID,
		Title:      in.Title,
		Amount:     in.Amount,
		DateQuoted: s.anchorDate(in.DateQuoted),
		ValidUntil: in.ValidUntil,
		Status:     model.QuoteStatusPending,
		Notes:      in.Notes,
	}
	return s.insertQuote(ctx, quote, client)
}

// DuplicateQuote copies a quote as a new pending quote dated today. The copy gets its
// own sequence; the original's messages are left alone.
func (s *FollowUpService) DuplicateQuote(ctx context.Context, id uuid.UUID) (*QuoteWithSequence, error) {
	orig, err := s.Quotes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	client, err := s.Clients.GetByID(ctx, orig.ClientID)
	if err != nil {
		return nil, err
	}

	var title *string
	if orig.Title != nil {
		t := *orig.Title + " (Copy)"
		title = &t
	}

	quote := &model.Quote{
		ID:         uuid.New(),
		ClientID:   orig.ClientID,
		Title:      title,
		Amount:     orig.Amount,
		DateQuoted: s.anchorDate(nil),
		ValidUntil: orig.ValidUntil,
		Status:     model.QuoteStatusPending,
		Notes:      orig.Notes,
	}
	return s.insertQuote(ctx, quote, client)
}

func (s *FollowUpService) insertQuote(ctx context.Context, quote *model.Quote, client *model.Client) (*QuoteWithSequence, error) {
	msgs := GenerateSequence(Anchor{
		Parent: model.ParentRef{Kind: model.ParentQuote, ID: quote.ID},
		Name:   client.Name,
		Date:   quote.DateQuoted,
	})

	err := s.Tx.WithTx(ctx, func(q repository.DBTX) error {
		if err := s.Quotes.Create(ctx, q, quote); err != nil {
			return fmt.Errorf("create quote: %w", err)
		}
		return s.Messages.InsertSequence(ctx, q, msgs)
	})
	if err != nil {
		return nil, err
	}

	metrics.SequencesCreatedTotal.WithLabelValues(string(model.ParentQuote)).Inc()
	s.Logger.Info("quote created with follow-up sequence",
		zap.String("quote_id", quote.ID.String()),
		zap.String("client_id", quote.ClientID.String()),
		zap.Time("anchor", quote.DateQuoted),
	)
	return &QuoteWithSequence{Quote: quote, Messages: msgs}, nil
}

// UpdateStatus changes a parent's status. Setting the current status again is a no-op
// success.
func (s *FollowUpService) UpdateStatus(ctx context.Context, ref model.ParentRef, status string) error {
	var valid bool
	switch ref.Kind {
	case model.ParentLead:
		valid = model.ValidLeadStatus(status)
	case model.ParentQuote:
		valid = model.ValidQuoteStatus(status)
	case model.ParentProject:
		valid = model.ValidProjectStatus(status)
	default:
		return fmt.Errorf("%w: unknown parent kind %q", appErrors.ErrInvalidInput, ref.Kind)
	}
	if !valid {
		return fmt.Errorf("%w: %q is not a %s status", appErrors.ErrInvalidStatus, status, ref.Kind)
	}

	var err error
	switch ref.Kind {
	case model.ParentLead:
		err = s.Leads.UpdateStatus(ctx, ref.ID, status)
	case model.ParentQuote:
		err = s.Quotes.UpdateStatus(ctx, ref.ID, status)
	case model.ParentProject:
		err = s.Projects.UpdateStatus(ctx, ref.ID, status)
	}
	if err != nil {
		return err
	}

	s.Logger.Info("parent status updated",
		zap.String("parent", ref.String()),
		zap.String("status", status),
		zap.Bool("follow_ups_live", model.IsLive(ref.Kind, status)),
	)
	return nil
}

// Delete removes a parent and, by cascade, its follow-ups.
func (s *FollowUpService) Delete(ctx context.Context, ref model.ParentRef) error {
	var err error
	switch ref.Kind {
	case model.ParentLead:
		err = s.Leads.Delete(ctx, ref.ID)
	case model.ParentQuote:
		err = s.Quotes.Delete(ctx, ref.ID)
	case model.ParentProject:
		err = s.Projects.Delete(ctx, ref.ID)
	default:
		return fmt.Errorf("%w: unknown parent kind %q", appErrors.ErrInvalidInput, ref.Kind)
	}
	if err != nil {
		return err
	}
	s.Logger.Info("parent deleted", zap.String("parent", ref.String()))
	return nil
}

func (s *FollowUpService) exists(ctx context.Context, ref model.ParentRef) error {
	var err error
	switch ref.Kind {
	case model.ParentLead:
		_, err = s.Leads.GetByID(ctx, ref.ID)
	case model.ParentQuote:
		_, err = s.Quotes.GetByID(ctx, ref.ID)
	case model.ParentProject:
		_, err = s.Projects.GetByID(ctx, ref.ID)
	default:
		err = fmt.Errorf("%w: unknown parent kind %q", appErrors.ErrInvalidInput, ref.Kind)
	}
	return err
}

// Timeline lists a parent's follow-ups by sequence day with per-status counts.
func (s *FollowUpService) Timeline(ctx context.Context, ref model.ParentRef) (*Timeline, error) {
	if err := s.exists(ctx, ref); err != nil {
		return nil, err
	}

	msgs, err := s.Messages.ListByParent(ctx, ref)
	if err != nil {
		return nil, err
	}
	counts, err := s.Messages.CountByStatus(ctx, ref)
	if err != nil {
		return nil, err
	}

	stats := TimelineStats{
		Pending: counts[string(model.MessageStatusPending)],
		Sending: counts[string(model.MessageStatusSending)],
		Sent:    counts[string(model.MessageStatusSent)],
		Failed:  counts[string(model.MessageStatusFailed)],
	}
	stats.Total = stats.Pending + stats.Sending + stats.Sent + stats.Failed

	return &Timeline{Parent: ref, Messages: msgs, Stats: stats}, nil
}
