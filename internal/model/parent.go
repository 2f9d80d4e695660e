// internal/model/parent.go
package model

import (
	"fmt"

	"github.com/google/uuid"
)

type ParentKind string

const (
	ParentLead    ParentKind = "lead"
	ParentQuote   ParentKind = "quote"
	ParentProject ParentKind = "project"
)

type ParentRef struct {
	Kind ParentKind `json:"kind"`
	ID   uuid.UUID  `json:"id"`
}

func (r ParentRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// liveStatuses lists, per parent kind, the statuses in which follow-ups may still go out.
var liveStatuses = map[ParentKind][]string{
	ParentLead:    {LeadStatusActive},
	ParentQuote:   {QuoteStatusPending},
	ParentProject: {ProjectStatusPlanned, ProjectStatusActive},
}

// LiveStatuses returns a copy of the live statuses for kind.
func LiveStatuses(kind ParentKind) []string {
	return append([]string(nil), liveStatuses[kind]...)
}

// IsLive reports whether a parent of the given kind and status may still receive follow-ups.
func IsLive(kind ParentKind, status string) bool {
	for _, s := range liveStatuses[kind] {
		if s == status {
			return true
		}
	}
	return false
}
