package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"

	appErrors "github.com/unclebandit/contractor-followups/internal/errors"
	"github.com/unclebandit/contractor-followups/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

func TestClaim(t *testing.T) {
	db, mock := newMock(t)
	repo := &FollowUpMessageRepository{DB: db}
	id := uuid.New()

	mock.ExpectExec("UPDATE follow_up_messages m").
		WithArgs("sending", id.String(), "pending", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE follow_up_messages m").
		WithArgs("sending", id.String(), "pending", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Claim(context.Background(), id)
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	ok, err = repo.Claim(context.Background(), id)
	if err != nil || ok {
		t.Fatalf("second claim must lose: ok=%v err=%v", ok, err)
	}
}

func TestClaimRechecksParentLiveness(t *testing.T) {
	db, mock := newMock(t)
	repo := &FollowUpMessageRepository{DB: db}
	id := uuid.New()

	mock.ExpectExec(`WHERE m.id = \$2 AND m.status = \$3\s+AND \(\s+EXISTS \(SELECT 1 FROM leads l WHERE l.id = m.lead_id AND l.status = ANY\(\$4\)\)\s+OR EXISTS \(SELECT 1 FROM quotes q WHERE q.id = m.quote_id AND q.status = ANY\(\$5\)\)\s+OR EXISTS \(SELECT 1 FROM projects p WHERE p.id = m.project_id AND p.status = ANY\(\$6\)\)`).
		WithArgs("sending", id.String(), "pending", "{\"active\"}", "{\"pending\"}", "{\"planned\",\"active\"}").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Claim(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("a message whose parent is no longer live must not be claimed")
	}
}

func TestMarkSentRequiresClaim(t *testing.T) {
	db, mock := newMock(t)
	repo := &FollowUpMessageRepository{DB: db}
	id := uuid.New()
	sentAt := time.Date(2024, 1, 11, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE follow_up_messages").
		WithArgs("sent", sentAt, "SM1", id.String(), "sending").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkSent(context.Background(), id, sentAt, "SM1")
	if !errors.Is(err, appErrors.ErrNotInFlight) {
		t.Fatalf("expected ErrNotInFlight, got %v", err)
	}
}

func TestMarkFailed(t *testing.T) {
	db, mock := newMock(t)
	repo := &FollowUpMessageRepository{DB: db}
	id := uuid.New()

	mock.ExpectExec("UPDATE follow_up_messages").
		WithArgs("failed", "invalid phone number", id.String(), "sending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkFailed(context.Background(), id, "invalid phone number"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFailStale(t *testing.T) {
	db, mock := newMock(t)
	repo := &FollowUpMessageRepository{DB: db}
	cutoff := time.Date(2024, 1, 11, 8, 45, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE follow_up_messages").
		WithArgs("failed", "delivery outcome unknown", "sending", cutoff).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.FailStale(context.Background(), cutoff, "delivery outcome unknown")
	if err != nil || n != 2 {
		t.Fatalf("expected 2 stale messages, got %d err=%v", n, err)
	}
}

func TestInsertSequenceMapsUniqueViolation(t *testing.T) {
	db, mock := newMock(t)
	repo := &FollowUpMessageRepository{DB: db}

	leadID := uuid.New()
	msgs := []model.FollowUpMessage{{ID: uuid.New(), LeadID: &leadID, SequenceDay: 1, Status: model.MessageStatusPending}}

	mock.ExpectExec("INSERT INTO follow_up_messages").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key"})

	err := repo.InsertSequence(context.Background(), db, msgs)
	if !errors.Is(err, appErrors.ErrDuplicateSequenceDay) {
		t.Fatalf("expected ErrDuplicateSequenceDay, got %v", err)
	}
}

func TestListDue(t *testing.T) {
	db, mock := newMock(t)
	repo := &FollowUpMessageRepository{DB: db}
	now := time.Date(2024, 1, 11, 0, 0, 1, 0, time.UTC)
	msgID, leadID := uuid.New(), uuid.New()
	scheduled := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "lead_id", "quote_id", "project_id", "message_text", "sequence_day",
		"scheduled_for", "status", "created_at", "updated_at", "destination", "parent_status",
	}).AddRow(msgID.String(), leadID.String(), nil, nil, "Hi Alice", 1,
		scheduled, "pending", scheduled, scheduled, "(201) 555-0123", "active")

	mock.ExpectQuery("FROM follow_up_messages m").
		WithArgs("pending", now, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 50).
		WillReturnRows(rows)

	due, err := repo.ListDue(context.Background(), now, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 due message, got %d", len(due))
	}
	d := due[0]
	if d.ID != msgID || d.LeadID == nil || *d.LeadID != leadID || d.QuoteID != nil {
		t.Errorf("unexpected ids: %+v", d)
	}
	ref, ok := d.Parent()
	if !ok || ref.Kind != model.ParentLead {
		t.Errorf("expected lead parent, got %v", ref)
	}
	if d.Destination != "(201) 555-0123" || d.ParentStatus != "active" {
		t.Errorf("unexpected destination/status: %q %q", d.Destination, d.ParentStatus)
	}
}

func TestCountByStatus(t *testing.T) {
	db, mock := newMock(t)
	repo := &FollowUpMessageRepository{DB: db}
	ref := model.ParentRef{Kind: model.ParentQuote, ID: uuid.New()}

	mock.ExpectQuery("WHERE quote_id = \\$1 GROUP BY status").
		WithArgs(ref.ID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("sent", 1).AddRow("pending", 4))

	stats, err := repo.CountByStatus(context.Background(), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats["sent"] != 1 || stats["pending"] != 4 {
		t.Errorf("unexpected stats: %v", stats)
	}
}

func TestListByParentRejectsUnknownKind(t *testing.T) {
	db, _ := newMock(t)
	repo := &FollowUpMessageRepository{DB: db}

	_, err := repo.ListByParent(context.Background(), model.ParentRef{Kind: "invoice", ID: uuid.New()})
	if !errors.Is(err, appErrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
