package localfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

const letterExt = ".json"

// DeadLetterStore keeps one JSON file per failed notice.
type DeadLetterStore struct {
	basePath string
}

func New(basePath string) (*DeadLetterStore, error) {
	if basePath == "" {
		basePath = "./data/deadletter"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create dead-letter dir: %w", err)
	}
	return &DeadLetterStore{basePath: basePath}, nil
}

func (s *DeadLetterStore) Save(_ context.Context, letter domain.DeadLetter) error {
	if letter.Key == "" {
		letter.Key = letter.Document.ID
	}
	path, err := s.pathFor(letter.Key)
	if err != nil {
		return err
	}
	payload, err := json.MarshalIndent(letter, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// List returns stored letters, oldest failure first.
func (s *DeadLetterStore) List(_ context.Context) ([]domain.DeadLetter, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("read dead-letter dir: %w", err)
	}

	letters := make([]domain.DeadLetter, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != letterExt {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.basePath, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("open file: %w", err)
		}
		var letter domain.DeadLetter
		if err := json.Unmarshal(raw, &letter); err != nil {
			return nil, fmt.Errorf("decode dead letter %s: %w", entry.Name(), err)
		}
		letters = append(letters, letter)
	}

	sort.SliceStable(letters, func(i, j int) bool {
		return letters[i].FailedAt.Before(letters[j].FailedAt)
	})
	return letters, nil
}

func (s *DeadLetterStore) Remove(_ context.Context, key string) error {
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func (s *DeadLetterStore) pathFor(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", domain.WrapError(domain.ErrInvalidInput, "dead letter key", fmt.Errorf("invalid key %q", key))
	}
	return filepath.Join(s.basePath, key+letterExt), nil
}
