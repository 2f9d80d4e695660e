package service

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/contractor-followups/internal/model"
)

// SequenceDays are the day offsets of the five follow-up slots, relative to the anchor date.
var SequenceDays = [5]int{1, 3, 5, 8, 12}

// Anchor is what a follow-up sequence is generated from.
type Anchor struct {
	Parent      model.ParentRef
	Name        string
	ProjectType string // optional; selects the wording that names the project
	Date        time.Time
}

type followUpSlot struct {
	day         int
	withProject string
	generic     string
}

var followUpSlots = [5]followUpSlot{
	{
		day:         SequenceDays[0],
		withProject: "Hi {name}, thanks for considering us for your {project_type} project! I'll have your estimate ready soon.",
		generic:     "Hi {name}, thanks for considering us! I'll have your estimate ready soon.",
	},
	{
		day:         SequenceDays[1],
		withProject: "Hi {name}, your estimate for the {project_type} project is ready. Have you had a chance to review it?",
		generic:     "Hi {name}, your estimate is ready. Have you had a chance to review it?",
	},
	{
		day:         SequenceDays[2],
		withProject: "Hi {name}, just checking in on the {project_type} estimate. Do you have any questions I can answer?",
		generic:     "Hi {name}, just checking in on the estimate. Do you have any questions I can answer?",
	},
	{
		day:         SequenceDays[3],
		withProject: "Hi {name}, wanted to follow up one more time about your {project_type} project. We'd love to work with you!",
		generic:     "Hi {name}, wanted to follow up one more time. We'd love to work with you!",
	},
	{
		day:         SequenceDays[4],
		withProject: "Hi {name}, this is my final follow-up about the {project_type} project. If you'd like to move forward, just let me know!",
		generic:     "Hi {name}, this is my final follow-up about the estimate. If you'd like to move forward, just let me know!",
	},
}

// AnchorMidnight returns midnight of t's calendar date in t's own location.
func AnchorMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ScheduledFor is midnight of the anchor date plus day calendar days. AddDate keeps the
// wall clock at midnight across DST changes.
func ScheduledFor(anchorDate time.Time, day int) time.Time {
	return AnchorMidnight(anchorDate).AddDate(0, 0, day)
}

// GenerateSequence renders the five pending follow-ups for a. Apart from the generated
// IDs the output depends only on a.
func GenerateSequence(a Anchor) []model.FollowUpMessage {
	projectType := strings.TrimSpace(a.ProjectType)
	data := map[string]string{
		"name":         strings.TrimSpace(a.Name),
		"project_type": projectType,
	}

	msgs := make([]model.FollowUpMessage, 0, len(followUpSlots))
	for _, slot := range followUpSlots {
		tpl := slot.generic
		if projectType != "" {
			tpl = slot.withProject
		}

		m := model.FollowUpMessage{
			ID:           uuid.New(),
			MessageText:  RenderTemplate(tpl, data),
			SequenceDay:  slot.day,
			ScheduledFor: ScheduledFor(a.Date, slot.day),
			Status:       model.MessageStatusPending,
		}
		m.SetParent(a.Parent)
		msgs = append(msgs, m)
	}
	return msgs
}
