package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/contractor-followups/internal/errors"
	"github.com/unclebandit/contractor-followups/internal/model"
)

// ClientRepositoryInterface defines methods used by service
type ClientRepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Client, error)
}

// ClientRepository is the concrete implementation
type ClientRepository struct {
	DB *sql.DB
}

var _ ClientRepositoryInterface = (*ClientRepository)(nil)

// GetByID fetches a client by ID
func (r *ClientRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	query := `
        SELECT id, client_name, client_phone
        FROM clients
        WHERE id = $1
    `
	var c model.Client
	if err := r.DB.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Phone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewParentNotFound("client", id.String())
		}
		return nil, err
	}
	return &c, nil
}
