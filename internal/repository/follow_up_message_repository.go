package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	appErrors "github.com/unclebandit/contractor-followups/internal/errors"
	"github.com/unclebandit/contractor-followups/internal/model"
)

const uniqueViolation = "23505"

type FollowUpMessageRepositoryInterface interface {
	InsertSequence(ctx context.Context, q DBTX, msgs []model.FollowUpMessage) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]model.DueMessage, error)
	// Claim moves a message from pending to sending. false means another cycle got it first.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time, providerMessageID string) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	// FailStale fails messages left in sending since before the cutoff.
	FailStale(ctx context.Context, before time.Time, reason string) (int64, error)
	ListByParent(ctx context.Context, ref model.ParentRef) ([]model.FollowUpMessage, error)
	CountByStatus(ctx context.Context, ref model.ParentRef) (map[string]int, error)
}

type FollowUpMessageRepository struct {
	DB *sql.DB
}

var _ FollowUpMessageRepositoryInterface = (*FollowUpMessageRepository)(nil)

var parentColumns = map[model.ParentKind]string{
	model.ParentLead:    "lead_id",
	model.ParentQuote:   "quote_id",
	model.ParentProject: "project_id",
}

func parentColumn(kind model.ParentKind) (string, error) {
	col, ok := parentColumns[kind]
	if !ok {
		return "", fmt.Errorf("%w: unknown parent kind %q", appErrors.ErrInvalidInput, kind)
	}
	return col, nil
}

// InsertSequence writes a generated sequence. Pass a transaction to make it atomic
// with the parent insert.
func (r *FollowUpMessageRepository) InsertSequence(ctx context.Context, q DBTX, msgs []model.FollowUpMessage) error {
	query := `
        INSERT INTO follow_up_messages
        (id, lead_id, quote_id, project_id, message_text, sequence_day, scheduled_for, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `
	now := time.Now()
	for i := range msgs {
		m := &msgs[i]
		m.CreatedAt = now
		m.UpdatedAt = now
		_, err := q.ExecContext(ctx, query,
			m.ID,
			m.LeadID,
			m.QuoteID,
			m.ProjectID,
			m.MessageText,
			m.SequenceDay,
			m.ScheduledFor,
			m.Status,
			m.CreatedAt,
			m.UpdatedAt,
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				return fmt.Errorf("%w: day %d", appErrors.ErrDuplicateSequenceDay, m.SequenceDay)
			}
			return fmt.Errorf("insert follow-up day %d: %w", m.SequenceDay, err)
		}
	}
	return nil
}

// ListDue returns pending messages scheduled at or before now whose parent is live,
// oldest first. The destination is the lead's phone or the owning client's phone.
func (r *FollowUpMessageRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]model.DueMessage, error) {
	query := `
        SELECT m.id, m.lead_id, m.quote_id, m.project_id, m.message_text, m.sequence_day,
               m.scheduled_for, m.status, m.created_at, m.updated_at,
               COALESCE(l.client_phone, qc.client_phone, pc.client_phone, '') AS destination,
               COALESCE(l.status, q.status, p.status, '') AS parent_status
        FROM follow_up_messages m
        LEFT JOIN leads l ON l.id = m.lead_id
        LEFT JOIN quotes q ON q.id = m.quote_id
        LEFT JOIN clients qc ON qc.id = q.client_id
        LEFT JOIN projects p ON p.id = m.project_id
        LEFT JOIN clients pc ON pc.id = p.client_id
        WHERE m.status = $1
          AND m.scheduled_for <= $2
          AND (
                (m.lead_id IS NOT NULL AND l.status = ANY($3))
             OR (m.quote_id IS NOT NULL AND q.status = ANY($4))
             OR (m.project_id IS NOT NULL AND p.status = ANY($5))
          )
        ORDER BY m.scheduled_for ASC, m.id ASC
        LIMIT $6
    `
	rows, err := r.DB.QueryContext(ctx, query,
		model.MessageStatusPending,
		now,
		pq.Array(model.LiveStatuses(model.ParentLead)),
		pq.Array(model.LiveStatuses(model.ParentQuote)),
		pq.Array(model.LiveStatuses(model.ParentProject)),
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	due := []model.DueMessage{}
	for rows.Next() {
		var d model.DueMessage
		var leadID, quoteID, projectID uuid.NullUUID
		if err := rows.Scan(
			&d.ID, &leadID, &quoteID, &projectID, &d.MessageText, &d.SequenceDay,
			&d.ScheduledFor, &d.Status, &d.CreatedAt, &d.UpdatedAt,
			&d.Destination, &d.ParentStatus,
		); err != nil {
			return nil, err
		}
		d.LeadID, d.QuoteID, d.ProjectID = uuidPtr(leadID), uuidPtr(quoteID), uuidPtr(projectID)
		due = append(due, d)
	}
	return due, rows.Err()
}

// Claim moves a pending message to sending. It re-checks the parent's liveness, so a
// parent archived or accepted after ListDue loses its remaining follow-ups.
func (r *FollowUpMessageRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
        UPDATE follow_up_messages m
        SET status = $1, updated_at = NOW()
        WHERE m.id = $2 AND m.status = $3
          AND (
                EXISTS (SELECT 1 FROM leads l WHERE l.id = m.lead_id AND l.status = ANY($4))
             OR EXISTS (SELECT 1 FROM quotes q WHERE q.id = m.quote_id AND q.status = ANY($5))
             OR EXISTS (SELECT 1 FROM projects p WHERE p.id = m.project_id AND p.status = ANY($6))
          )
    `
	res, err := r.DB.ExecContext(ctx, query,
		model.MessageStatusSending, id, model.MessageStatusPending,
		pq.Array(model.LiveStatuses(model.ParentLead)),
		pq.Array(model.LiveStatuses(model.ParentQuote)),
		pq.Array(model.LiveStatuses(model.ParentProject)),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *FollowUpMessageRepository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time, providerMessageID string) error {
	query := `
        UPDATE follow_up_messages
        SET status = $1, sent_at = $2, provider_message_id = NULLIF($3, ''), last_error = NULL, updated_at = NOW()
        WHERE id = $4 AND status = $5
    `
	res, err := r.DB.ExecContext(ctx, query, model.MessageStatusSent, sentAt, providerMessageID, id, model.MessageStatusSending)
	if err != nil {
		return err
	}
	return expectInFlight(res, id)
}

func (r *FollowUpMessageRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
        UPDATE follow_up_messages
        SET status = $1, last_error = $2, updated_at = NOW()
        WHERE id = $3 AND status = $4
    `
	res, err := r.DB.ExecContext(ctx, query, model.MessageStatusFailed, reason, id, model.MessageStatusSending)
	if err != nil {
		return err
	}
	return expectInFlight(res, id)
}

func (r *FollowUpMessageRepository) FailStale(ctx context.Context, before time.Time, reason string) (int64, error) {
	query := `
        UPDATE follow_up_messages
        SET status = $1, last_error = $2, updated_at = NOW()
        WHERE status = $3 AND updated_at < $4
    `
	res, err := r.DB.ExecContext(ctx, query, model.MessageStatusFailed, reason, model.MessageStatusSending, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *FollowUpMessageRepository) ListByParent(ctx context.Context, ref model.ParentRef) ([]model.FollowUpMessage, error) {
	col, err := parentColumn(ref.Kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
        SELECT id, lead_id, quote_id, project_id, message_text, sequence_day, scheduled_for,
               sent_at, status, COALESCE(provider_message_id, ''), COALESCE(last_error, ''), created_at, updated_at
        FROM follow_up_messages
        WHERE %s = $1
        ORDER BY sequence_day ASC
    `, col)

	rows, err := r.DB.QueryContext(ctx, query, ref.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []model.FollowUpMessage{}
	for rows.Next() {
		var m model.FollowUpMessage
		var leadID, quoteID, projectID uuid.NullUUID
		var sentAt sql.NullTime
		if err := rows.Scan(
			&m.ID, &leadID, &quoteID, &projectID, &m.MessageText, &m.SequenceDay, &m.ScheduledFor,
			&sentAt, &m.Status, &m.ProviderMessageID, &m.LastError, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		m.LeadID, m.QuoteID, m.ProjectID = uuidPtr(leadID), uuidPtr(quoteID), uuidPtr(projectID)
		if sentAt.Valid {
			m.SentAt = &sentAt.Time
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *FollowUpMessageRepository) CountByStatus(ctx context.Context, ref model.ParentRef) (map[string]int, error) {
	col, err := parentColumn(ref.Kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT status, COUNT(*) FROM follow_up_messages WHERE %s = $1 GROUP BY status`, col)
	rows, err := r.DB.QueryContext(ctx, query, ref.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func expectInFlight(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", appErrors.ErrNotInFlight, id)
	}
	return nil
}

func uuidPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}
