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

// ProjectRepositoryInterface covers what follow-ups need from projects. Project
// creation lives elsewhere.
type ProjectRepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type ProjectRepository struct {
	DB *sql.DB
}

var _ ProjectRepositoryInterface = (*ProjectRepository)(nil)

func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	query := `SELECT id, client_id, project_type, status, created_at, updated_at FROM projects WHERE id = $1`
	var p model.Project
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.ClientID, &p.ProjectType, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewParentNotFound(string(model.ParentProject), id.String())
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE projects SET status=$1, updated_at=$2 WHERE id=$3`, status, time.Now(), id)
	if err != nil {
		return err
	}
	return expectOne(res, string(model.ParentProject), id)
}

func (r *ProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return expectOne(res, string(model.ParentProject), id)
}
