// Package media manages submission images in the object store: upload,
// visibility-checked reads, the submission_media mapping, and retention.
package media

import (
	"context"
	"io"
	"time"

	"github.com/rotisserie/eris"
)

// ErrObjectNotFound is returned when a key has no object.
var ErrObjectNotFound = eris.New("media: object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	ModTime     time.Time
}

// ObjectStore is the byte store behind media. Put and Delete are
// idempotent; Delete of a missing key succeeds.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string, fn func(ObjectInfo) error) error
}
