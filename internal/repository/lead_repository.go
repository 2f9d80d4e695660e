package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/contractor-followups/internal/errors"
	"github.com/unclebandit/contractor-followups/internal/model"
)

type LeadRepositoryInterface interface {
	Create(ctx context.Context, q DBTX, l *model.Lead) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Lead, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type LeadRepository struct {
	DB *sql.DB
}

var _ LeadRepositoryInterface = (*LeadRepository)(nil)

func (r *LeadRepository) Create(ctx context.Context, q DBTX, l *model.Lead) error {
	now := time.Now()
	l.CreatedAt = now
	l.UpdatedAt = now

	query := `
        INSERT INTO leads
        (id, client_name, client_phone, project_type, quote_amount, visit_date, date_quoted, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `
	_, err := q.ExecContext(ctx, query,
		l.ID,
		l.ClientName,
		l.ClientPhone,
		l.ProjectType,
		l.QuoteAmount,
		l.VisitDate,
		l.DateQuoted,
		l.Status,
		l.CreatedAt,
		l.UpdatedAt,
	)
	return err
}

func (r *LeadRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Lead, error) {
	query := `
        SELECT id, client_name, client_phone, project_type, quote_amount, visit_date, date_quoted, status, created_at, updated_at
        FROM leads WHERE id = $1
    `
	var l model.Lead
	var amount sql.NullFloat64
	var visit sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&l.ID, &l.ClientName, &l.ClientPhone, &l.ProjectType, &amount, &visit, &l.DateQuoted, &l.Status, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewParentNotFound(string(model.ParentLead), id.String())
		}
		return nil, err
	}
	if amount.Valid {
		l.QuoteAmount = &amount.Float64
	}
	if visit.Valid {
		l.VisitDate = &visit.Time
	}
	return &l, nil
}

func (r *LeadRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE leads SET status=$1, updated_at=$2 WHERE id=$3`, status, time.Now(), id)
	if err != nil {
		return err
	}
	return expectOne(res, string(model.ParentLead), id)
}

// Delete removes the lead. Its follow-up messages go with it (ON DELETE CASCADE).
func (r *LeadRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM leads WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return expectOne(res, string(model.ParentLead), id)
}
