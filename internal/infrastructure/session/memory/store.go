package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

type session struct {
	turns     []domain.Turn
	expiresAt time.Time
}

// Store keeps session history in process memory. Each access extends the
// session's lifetime by ttl; a zero ttl never expires.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session
	ttl      time.Duration
	maxTurns int
	now      func() time.Time
}

func New(ttl time.Duration, maxTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = 50
	}
	return &Store{
		sessions: make(map[string]*session),
		ttl:      ttl,
		maxTurns: maxTurns,
		now:      time.Now,
	}
}

func (s *Store) Get(_ context.Context, sessionID string) ([]domain.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.sessions[sessionID]
	if !ok || s.expired(sess, now) {
		sess = &session{}
		s.sessions[sessionID] = sess
	}
	sess.expiresAt = s.deadline(now)

	out := make([]domain.Turn, len(sess.turns))
	copy(out, sess.turns)
	return out, nil
}

func (s *Store) Append(_ context.Context, sessionID string, turns ...domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.sessions[sessionID]
	if !ok || s.expired(sess, now) {
		sess = &session{}
		s.sessions[sessionID] = sess
	}
	sess.turns = append(sess.turns, turns...)
	if over := len(sess.turns) - s.maxTurns; over > 0 {
		sess.turns = append([]domain.Turn(nil), sess.turns[over:]...)
	}
	sess.expiresAt = s.deadline(now)
	return nil
}

func (s *Store) Evict(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// size reports the number of live sessions.
func (s *Store) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	n := 0
	for _, sess := range s.sessions {
		if !s.expired(sess, now) {
			n++
		}
	}
	return n
}

// Sweep drops expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Store) expired(sess *session, now time.Time) bool {
	return s.ttl > 0 && !sess.expiresAt.IsZero() && now.After(sess.expiresAt)
}

func (s *Store) deadline(now time.Time) time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return now.Add(s.ttl)
}
