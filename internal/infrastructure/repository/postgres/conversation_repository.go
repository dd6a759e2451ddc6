package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

// SessionRepository stores session turns in Postgres. Turns older than ttl are
// ignored on read and pruned on write.
type SessionRepository struct {
	db       *sql.DB
	ttl      time.Duration
	maxTurns int
}

func NewSessionRepository(db *sql.DB, ttl time.Duration, maxTurns int) *SessionRepository {
	if maxTurns <= 0 {
		maxTurns = 50
	}
	return &SessionRepository{db: db, ttl: ttl, maxTurns: maxTurns}
}

func (r *SessionRepository) Get(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT role, content
FROM session_turns
WHERE session_id = $1 AND created_at >= $2
ORDER BY id DESC
LIMIT $3
`, sessionID, r.cutoff(), r.maxTurns)
	if err != nil {
		return nil, fmt.Errorf("list session turns: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Turn, 0, r.maxTurns)
	for rows.Next() {
		var turn domain.Turn
		if err := rows.Scan(&turn.Role, &turn.Content); err != nil {
			return nil, fmt.Errorf("scan session turn: %w", err)
		}
		out = append(out, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session turns: %w", err)
	}

	// Returned in descending order from SQL; reverse to keep chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *SessionRepository) Append(ctx context.Context, sessionID string, turns ...domain.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, turn := range turns {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO session_turns (session_id, role, content, created_at)
VALUES ($1,$2,$3,$4)
`, sessionID, turn.Role, turn.Content, now); err != nil {
			return fmt.Errorf("append session turn: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_turns WHERE created_at < $1`, r.cutoff()); err != nil {
		return fmt.Errorf("prune expired turns: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

func (r *SessionRepository) Evict(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session_turns WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("evict session: %w", err)
	}
	return nil
}

func (r *SessionRepository) cutoff() time.Time {
	if r.ttl <= 0 {
		return time.Time{}
	}
	return time.Now().UTC().Add(-r.ttl)
}
