package media

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/venue-registry/internal/db"
	"github.com/sells-group/venue-registry/internal/model"
	"github.com/sells-group/venue-registry/internal/schema"
)

// Cache-Control values for served media.
const (
	CachePublic  = "public, max-age=31536000, immutable"
	CachePrivate = "no-store"
)

// CacheControl returns the Cache-Control header for media of kind.
func CacheControl(kind model.MediaKind) string {
	if kind.Public() {
		return CachePublic
	}
	return CachePrivate
}

// Object is an opened media item ready to serve.
type Object struct {
	io.ReadCloser
	ContentType  string
	Size         int64
	CacheControl string
}

// Manager uploads and serves submission media.
type Manager struct {
	objects ObjectStore
	now     func() time.Time
	newID   func() string
}

// NewManager creates a Manager over objects.
func NewManager(objects ObjectStore) *Manager {
	return &Manager{
		objects: objects,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// Objects returns the underlying object store.
func (m *Manager) Objects() ObjectStore { return m.objects }

// Put stores one file under a fresh media id and returns its record.
func (m *Manager) Put(ctx context.Context, submissionID string, kind model.MediaKind, data []byte, contentType string) (model.Media, error) {
	item := model.Media{
		ID:           m.newID(),
		SubmissionID: submissionID,
		Kind:         kind,
		ContentType:  contentType,
		Size:         int64(len(data)),
		CreatedAt:    m.now().UTC(),
	}
	item.Key = Key(submissionID, kind, item.ID)
	if err := m.objects.Put(ctx, item.Key, bytes.NewReader(data), item.Size, contentType); err != nil {
		return model.Media{}, err
	}
	return item, nil
}

// Discard deletes uploaded objects after a failed intake. Failures are
// logged; the retention sweep collects anything left behind.
func (m *Manager) Discard(ctx context.Context, items []model.Media) {
	for _, it := range items {
		if err := m.objects.Delete(ctx, it.Key); err != nil {
			zap.L().Warn("media: discard failed", zap.String("key", it.Key), zap.Error(err))
		}
	}
}

// Open returns a media item for serving. Non-public kinds are reported as
// not found unless admin is set, so their existence is not revealed.
func (m *Manager) Open(ctx context.Context, submissionID string, kind model.MediaKind, mediaID string, admin bool) (*Object, error) {
	if !kind.Valid() || (!kind.Public() && !admin) {
		return nil, model.NotFound("media", mediaID)
	}
	rc, info, err := m.objects.Get(ctx, Key(submissionID, kind, mediaID))
	if eris.Is(err, ErrObjectNotFound) {
		return nil, model.NotFound("media", mediaID)
	}
	if err != nil {
		return nil, err
	}
	return &Object{
		ReadCloser:   rc,
		ContentType:  info.ContentType,
		Size:         info.Size,
		CacheControl: CacheControl(kind),
	}, nil
}

// Gallery resolves a submission's gallery media, from the mapping table when
// present and otherwise from the object store listing.
func (m *Manager) Gallery(ctx context.Context, q db.Querier, c schema.Capability, submissionID string) ([]model.Media, error) {
	if c.SubmissionMedia {
		all, err := ListMappings(ctx, q, c, submissionID)
		if err != nil {
			return nil, err
		}
		out := make([]model.Media, 0, len(all))
		for _, it := range all {
			if it.Kind == model.MediaGallery {
				out = append(out, it)
			}
		}
		return out, nil
	}

	return m.listObjects(ctx, KindPrefix(submissionID, model.MediaGallery))
}

// Submission resolves every media item a submission carries, for review.
func (m *Manager) Submission(ctx context.Context, q db.Querier, c schema.Capability, submissionID string) ([]model.Media, error) {
	if c.SubmissionMedia {
		return ListMappings(ctx, q, c, submissionID)
	}
	return m.listObjects(ctx, Prefix+submissionID+"/")
}

func (m *Manager) listObjects(ctx context.Context, prefix string) ([]model.Media, error) {
	var out []model.Media
	err := m.objects.List(ctx, prefix, func(o ObjectInfo) error {
		sid, kind, mid, ok := ParseKey(o.Key)
		if !ok {
			return nil
		}
		out = append(out, model.Media{
			ID:           mid,
			SubmissionID: sid,
			Kind:         kind,
			Key:          o.Key,
			ContentType:  o.ContentType,
			Size:         o.Size,
			CreatedAt:    o.ModTime,
		})
		return nil
	})
	return out, err
}

// Exists reports whether the object behind item is still stored.
func (m *Manager) Exists(ctx context.Context, item model.Media) (bool, error) {
	_, err := m.objects.Stat(ctx, item.Key)
	if eris.Is(err, ErrObjectNotFound) {
		return false, nil
	}
	return err == nil, err
}
