package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

var documentColumns = []string{
	"id", "title", "body", "notice_date", "url", "notice_type", "department", "course_id", "original_id", "attachment_names",
}

func newRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestBatchGetKeepsRequestOrderAndMarksMisses(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows(documentColumns).
		AddRow("a", "Scholarship", "body a", "2024-03-01", "https://u/a", domain.CategoryUniversityNotice, "", "", "univ_notice_1", []byte(`["form.hwp"]`)).
		AddRow("c", "Dormitory", "body c", domain.DateAlways, "", domain.CategoryDepartmentNotice, "CSE", "", "notice_3", []byte(`[]`))
	mock.ExpectQuery(`(?s)SELECT id, title, body, .*FROM notice_documents\s+WHERE id IN \(\$1,\$2,\$3\)`).
		WithArgs("c", "b", "a").
		WillReturnRows(rows)

	docs, err := repo.BatchGet(context.Background(), []string{"c", "b", "a"})
	if err != nil {
		t.Fatalf("BatchGet() error: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(docs))
	}
	if docs[0] == nil || docs[0].ID != "c" || docs[0].Department != "CSE" {
		t.Fatalf("unexpected first entry: %+v", docs[0])
	}
	if docs[1] != nil {
		t.Fatalf("expected nil for missing id, got %+v", docs[1])
	}
	if docs[2] == nil || !docs[2].HasAttachment || docs[2].AttachmentNames[0] != "form.hwp" {
		t.Fatalf("unexpected third entry: %+v", docs[2])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestBatchGetEmptyIDsSkipsQuery(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	docs, err := repo.BatchGet(context.Background(), nil)
	if err != nil || len(docs) != 0 {
		t.Fatalf("expected empty result, got %v, %v", docs, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestBatchGetWrapsQueryError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, title, body").WillReturnError(errors.New("connection reset"))
	if _, err := repo.BatchGet(context.Background(), []string{"a"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPutManyUpsertsInTransaction(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO notice_documents").
		WithArgs("a", "Title", "Body", "2024-03-01", "https://u/a", domain.CategoryCourse, "", "CSE101", "course_1", []byte(`[]`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.PutMany(context.Background(), []domain.Document{{
		ID: "a", Title: "Title", Body: "Body", Date: "2024-03-01", URL: "https://u/a",
		Category: domain.CategoryCourse, CourseID: "CSE101", OriginalID: "course_1",
	}})
	if err != nil {
		t.Fatalf("PutMany() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPutManyRollsBackOnMissingID(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := repo.PutMany(context.Background(), []domain.Document{{Title: "no id"}})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSessionRepositoryGetReturnsChronologicalTurns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := NewSessionRepository(db, time.Hour, 10)

	mock.ExpectQuery("SELECT role, content").
		WithArgs("s1", sqlmock.AnyArg(), 10).
		WillReturnRows(sqlmock.NewRows([]string{"role", "content"}).
			AddRow(domain.RoleAssistant, "answer").
			AddRow(domain.RoleUser, "question"))

	turns, err := repo.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if len(turns) != 2 || turns[0].Role != domain.RoleUser || turns[1].Content != "answer" {
		t.Fatalf("unexpected turns: %+v", turns)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSessionRepositoryAppendAndEvict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := NewSessionRepository(db, time.Hour, 0)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO session_turns").
		WithArgs("s1", domain.RoleUser, "q", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO session_turns").
		WithArgs("s1", domain.RoleAssistant, "a", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("DELETE FROM session_turns WHERE created_at").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec("DELETE FROM session_turns WHERE session_id").
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	err = repo.Append(context.Background(), "s1",
		domain.Turn{Role: domain.RoleUser, Content: "q"},
		domain.Turn{Role: domain.RoleAssistant, Content: "a"},
	)
	if err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if err := repo.Evict(context.Background(), "s1"); err != nil {
		t.Fatalf("Evict() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
