package media

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
)

// FSStore keeps objects as files under root on an afero filesystem. Content
// types are sniffed on read.
type FSStore struct {
	fs   afero.Fs
	root string
}

// NewFSStore creates a filesystem object store rooted at root.
func NewFSStore(fsys afero.Fs, root string) *FSStore {
	return &FSStore{fs: fsys, root: path.Clean(root)}
}

func (s *FSStore) path(key string) string {
	return path.Join(s.root, path.Clean("/"+key))
}

func (s *FSStore) key(p string) string {
	if s.root != "." {
		p = strings.TrimPrefix(p, s.root)
	}
	return strings.TrimPrefix(p, "/")
}

// Put writes the object atomically via a temp file and rename.
func (s *FSStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	p := s.path(key)
	if err := s.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return eris.Wrapf(err, "media: mkdir for %s", key)
	}
	tmp := p + ".tmp"
	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return eris.Wrapf(err, "media: create %s", key)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()        //nolint:errcheck
		s.fs.Remove(tmp) //nolint:errcheck
		return eris.Wrapf(err, "media: write %s", key)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "media: close %s", key)
	}
	return eris.Wrapf(s.fs.Rename(tmp, p), "media: rename %s", key)
}

// Get opens the object and sniffs its content type.
func (s *FSStore) Get(_ context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	f, err := s.fs.Open(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ObjectInfo{}, ErrObjectNotFound
		}
		return nil, ObjectInfo{}, eris.Wrapf(err, "media: open %s", key)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close() //nolint:errcheck
		return nil, ObjectInfo{}, eris.Wrapf(err, "media: stat %s", key)
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		f.Close() //nolint:errcheck
		return nil, ObjectInfo{}, eris.Wrapf(err, "media: read %s", key)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close() //nolint:errcheck
		return nil, ObjectInfo{}, eris.Wrapf(err, "media: seek %s", key)
	}

	return f, ObjectInfo{
		Key:         key,
		Size:        st.Size(),
		ContentType: http.DetectContentType(head[:n]),
		ModTime:     st.ModTime(),
	}, nil
}

// Stat returns object metadata without a content type.
func (s *FSStore) Stat(_ context.Context, key string) (ObjectInfo, error) {
	st, err := s.fs.Stat(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ObjectInfo{}, ErrObjectNotFound
		}
		return ObjectInfo{}, eris.Wrapf(err, "media: stat %s", key)
	}
	return ObjectInfo{Key: key, Size: st.Size(), ModTime: st.ModTime()}, nil
}

// Delete removes the object; a missing object is not an error.
func (s *FSStore) Delete(_ context.Context, key string) error {
	err := s.fs.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "media: delete %s", key)
	}
	return nil
}

// List walks every object under prefix in lexical order.
func (s *FSStore) List(ctx context.Context, prefix string, fn func(ObjectInfo) error) error {
	start := s.path(prefix)
	if ok, _ := afero.DirExists(s.fs, start); !ok {
		return nil
	}
	err := afero.Walk(s.fs, start, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if info.IsDir() || strings.HasSuffix(p, ".tmp") {
			return nil
		}
		return fn(ObjectInfo{Key: s.key(p), Size: info.Size(), ModTime: info.ModTime()})
	})
	return eris.Wrapf(err, "media: list %s", prefix)
}
