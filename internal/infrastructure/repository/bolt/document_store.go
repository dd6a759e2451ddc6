package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

var bucketDocuments = []byte("documents")

// DocumentStore keeps parent documents in an embedded bbolt file keyed by id.
type DocumentStore struct {
	db *bbolt.DB
}

func Open(path string) (*DocumentStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create docstore dir: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt docstore: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDocuments)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create documents bucket: %w", err)
	}
	return &DocumentStore{db: db}, nil
}

// BatchGet is positional; missing or undecodable entries are nil.
func (s *DocumentStore) BatchGet(ctx context.Context, ids []string) ([]*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]*domain.Document, len(ids))
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		for i, id := range ids {
			data := b.Get([]byte(id))
			if data == nil {
				continue
			}
			var doc domain.Document
			if err := json.Unmarshal(data, &doc); err != nil {
				continue
			}
			out[i] = &doc
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bolt batch get: %w", err)
	}
	return out, nil
}

func (s *DocumentStore) PutMany(ctx context.Context, docs []domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		for _, doc := range docs {
			if doc.ID == "" {
				return domain.WrapError(domain.ErrInvalidInput, "bolt put", errors.New("document id is required"))
			}
			data, err := json.Marshal(doc)
			if err != nil {
				return fmt.Errorf("marshal document %s: %w", doc.ID, err)
			}
			if err := b.Put([]byte(doc.ID), data); err != nil {
				return fmt.Errorf("put document %s: %w", doc.ID, err)
			}
		}
		return nil
	})
}

func (s *DocumentStore) Close() error {
	return s.db.Close()
}
