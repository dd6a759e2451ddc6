package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

// DocumentRepository is the server-backed parent document store.
type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS notice_documents (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT '',
	notice_date TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT '',
	notice_type TEXT NOT NULL DEFAULT '',
	department TEXT NOT NULL DEFAULT '',
	course_id TEXT NOT NULL DEFAULT '',
	original_id TEXT NOT NULL DEFAULT '',
	attachment_names JSONB NOT NULL DEFAULT '[]'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notice_documents_type ON notice_documents(notice_type);

CREATE TABLE IF NOT EXISTS session_turns (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_session_turns_session ON session_turns(session_id, id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const selectDocumentColumns = `SELECT id, title, body, notice_date, url, notice_type, department, course_id, original_id, attachment_names
FROM notice_documents`

// BatchGet is positional: missing ids yield nil entries.
func (r *DocumentRepository) BatchGet(ctx context.Context, ids []string) ([]*domain.Document, error) {
	out := make([]*domain.Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		selectDocumentColumns+"\nWHERE id IN ("+strings.Join(placeholders, ",")+")",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("batch get documents: %w", err)
	}
	defer rows.Close()

	found := make(map[string]*domain.Document, len(ids))
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		found[doc.ID] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	for i, id := range ids {
		out[i] = found[id]
	}
	return out, nil
}

func (r *DocumentRepository) PutMany(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, doc := range docs {
		if doc.ID == "" {
			return domain.WrapError(domain.ErrInvalidInput, "put documents", errors.New("document id is required"))
		}
		names := doc.AttachmentNames
		if names == nil {
			names = []string{}
		}
		namesJSON, err := json.Marshal(names)
		if err != nil {
			return fmt.Errorf("marshal attachment names: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO notice_documents (
	id, title, body, notice_date, url, notice_type, department, course_id, original_id, attachment_names, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	body = EXCLUDED.body,
	notice_date = EXCLUDED.notice_date,
	url = EXCLUDED.url,
	notice_type = EXCLUDED.notice_type,
	department = EXCLUDED.department,
	course_id = EXCLUDED.course_id,
	original_id = EXCLUDED.original_id,
	attachment_names = EXCLUDED.attachment_names,
	updated_at = EXCLUDED.updated_at
`,
			doc.ID, doc.Title, doc.Body, doc.Date, doc.URL, doc.Category, doc.Department,
			doc.CourseID, doc.OriginalID, namesJSON, now,
		)
		if err != nil {
			return fmt.Errorf("upsert document %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put tx: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var namesRaw []byte
	err := row.Scan(
		&doc.ID, &doc.Title, &doc.Body, &doc.Date, &doc.URL, &doc.Category,
		&doc.Department, &doc.CourseID, &doc.OriginalID, &namesRaw,
	)
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if len(namesRaw) > 0 {
		if err := json.Unmarshal(namesRaw, &doc.AttachmentNames); err != nil {
			return nil, fmt.Errorf("unmarshal attachment names: %w", err)
		}
	}
	doc.HasAttachment = len(doc.AttachmentNames) > 0
	return &doc, nil
}
