package media

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// mockObjects is a testify double for failure injection.
type mockObjects struct {
	mock.Mock
}

func (m *mockObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return m.Called(ctx, key, size, contentType).Error(0)
}

func (m *mockObjects) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	args := m.Called(ctx, key)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Get(1).(ObjectInfo), args.Error(2)
}

func (m *mockObjects) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(ObjectInfo), args.Error(1)
}

func (m *mockObjects) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockObjects) List(ctx context.Context, prefix string, fn func(ObjectInfo) error) error {
	args := m.Called(ctx, prefix)
	if infos, ok := args.Get(0).([]ObjectInfo); ok {
		for _, o := range infos {
			if err := fn(o); err != nil {
				return err
			}
		}
	}
	return args.Error(1)
}

// adoption is a fixed AdoptionChecker.
type adoption map[string]bool

func (a adoption) Adopted(_ context.Context, id string) (bool, error) {
	return a[id], nil
}
