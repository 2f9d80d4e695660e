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

type QuoteRepositoryInterface interface {
	Create(ctx context.Context, q DBTX, quote *model.Quote) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Quote, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type QuoteRepository struct {
	DB *sql.DB
}

var _ QuoteRepositoryInterface = (*QuoteRepository)(nil)

func (r *QuoteRepository) Create(ctx context.Context, q DBTX, quote *model.Quote) error {
	now := time.Now()
	quote.CreatedAt = now
	quote.UpdatedAt = now

	query := `
        INSERT INTO quotes
        (id, client_id, quote_title, quote_amount, date_quoted, valid_until, status, notes, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `
	_, err := q.ExecContext(ctx, query,
		quote.ID,
		quote.ClientID,
		quote.Title,
		quote.Amount,
		quote.DateQuoted,
		quote.ValidUntil,
		quote.Status,
		quote.Notes,
		quote.CreatedAt,
		quote.UpdatedAt,
	)
	return err
}

func (r *QuoteRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Quote, error) {
	query := `
        SELECT id, client_id, quote_title, quote_amount, date_quoted, valid_until, status, notes, created_at, updated_at
        FROM quotes WHERE id = $1
    `
	var quote model.Quote
	var title, notes sql.NullString
	var validUntil sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&quote.ID, &quote.ClientID, &title, &quote.Amount, &quote.DateQuoted, &validUntil, &quote.Status, &notes, &quote.CreatedAt, &quote.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewParentNotFound(string(model.ParentQuote), id.String())
		}
		return nil, err
	}
	if title.Valid {
		quote.Title = &title.String
	}
	if notes.Valid {
		quote.Notes = &notes.String
	}
	if validUntil.Valid {
		quote.ValidUntil = &validUntil.Time
	}
	return &quote, nil
}

func (r *QuoteRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE quotes SET status=$1, updated_at=$2 WHERE id=$3`, status, time.Now(), id)
	if err != nil {
		return err
	}
	return expectOne(res, string(model.ParentQuote), id)
}

func (r *QuoteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM quotes WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return expectOne(res, string(model.ParentQuote), id)
}
