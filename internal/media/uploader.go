package media

import (
	"context"
	"strings"
)

// Uploader stores an image somewhere reachable and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, data []byte) (string, error)
}

// LocalUploader serves uploads from the Store under baseURL/media/<id>.
type LocalUploader struct {
	store   *Store
	baseURL string
}

// NewLocalUploader builds a LocalUploader.
func NewLocalUploader(store *Store, baseURL string) *LocalUploader {
	return &LocalUploader{store: store, baseURL: strings.TrimRight(baseURL, "/")}
}

// Upload implements Uploader.
func (u *LocalUploader) Upload(ctx context.Context, _ string, contentType string, data []byte) (string, error) {
	id, err := u.store.Put(ctx, contentType, data)
	if err != nil {
		return "", err
	}
	return URL(u.baseURL, id), nil
}

// URL is the public address of a stored blob.
func URL(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/media/" + id
}
