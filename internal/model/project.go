// internal/model/project.go
package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ProjectStatusPlanned   = "planned"
	ProjectStatusActive    = "active"
	ProjectStatusCompleted = "completed"
	ProjectStatusCancelled = "cancelled"
)

var projectStatuses = []string{ProjectStatusPlanned, ProjectStatusActive, ProjectStatusCompleted, ProjectStatusCancelled}

type Project struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ClientID    uuid.UUID `db:"client_id" json:"client_id"`
	ProjectType string    `db:"project_type" json:"project_type"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

func ValidProjectStatus(s string) bool { return contains(projectStatuses, s) }
