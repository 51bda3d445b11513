package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("media not found")

// Blob is a stored file.
type Blob struct {
	ID          string    `json:"id"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	Data        []byte    `json:"-"`
}

// Store keeps uploaded images in a Pebble database.
type Store struct {
	db  *pebble.DB
	log *zap.Logger
}

// Open opens (or creates) the store at path.
func Open(path string, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open media store: %w", err)
	}
	log.Info("media_store_opened", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func metaKey(id string) []byte { return []byte("meta:" + id) }
func dataKey(id string) []byte { return []byte("blob:" + id) }

// Put stores data and returns its id.
func (s *Store) Put(_ context.Context, contentType string, data []byte) (string, error) {
	blob := Blob{
		ID:          uuid.NewString(),
		ContentType: contentType,
		Size:        len(data),
		CreatedAt:   time.Now().UTC(),
	}
	meta, err := json.Marshal(blob)
	if err != nil {
		return "", err
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(metaKey(blob.ID), meta, nil); err != nil {
		return "", err
	}
	if err := batch.Set(dataKey(blob.ID), data, nil); err != nil {
		return "", err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return "", fmt.Errorf("commit media: %w", err)
	}
	s.log.Debug("media_stored", zap.String("media_id", blob.ID), zap.Int("size", blob.Size))
	return blob.ID, nil
}

// Get loads a blob with its data.
func (s *Store) Get(_ context.Context, id string) (Blob, error) {
	meta, err := s.get(metaKey(id))
	if err != nil {
		return Blob{}, err
	}
	var blob Blob
	if err := json.Unmarshal(meta, &blob); err != nil {
		return Blob{}, fmt.Errorf("decode media meta: %w", err)
	}
	if blob.Data, err = s.get(dataKey(id)); err != nil {
		return Blob{}, err
	}
	return blob, nil
}

func (s *Store) get(key []byte) ([]byte, error) {
	v, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}
