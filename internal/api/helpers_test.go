package api

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/venue-registry/internal/intake"
	"github.com/sells-group/venue-registry/internal/media"
	"github.com/sells-group/venue-registry/internal/model"
	"github.com/sells-group/venue-registry/internal/promote"
	"github.com/sells-group/venue-registry/internal/resilience"
	"github.com/sells-group/venue-registry/internal/submission"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const adminToken = "s3cret-token"

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fakeIntake struct {
	mock.Mock
}

func (f *fakeIntake) Submit(ctx context.Context, p model.Payload, files map[string][]intake.File) (intake.Result, error) {
	args := f.Called(p, files)
	return args.Get(0).(intake.Result), args.Error(1)
}

type fakeReviews struct {
	mock.Mock
}

func (f *fakeReviews) List(ctx context.Context, filter model.SubmissionFilter) ([]model.Submission, error) {
	args := f.Called(filter)
	subs, _ := args.Get(0).([]model.Submission)
	return subs, args.Error(1)
}

func (f *fakeReviews) Detail(ctx context.Context, id string) (model.SubmissionDetail, error) {
	args := f.Called(id)
	return args.Get(0).(model.SubmissionDetail), args.Error(1)
}

func (f *fakeReviews) Approve(ctx context.Context, id string, r submission.Review) (model.Submission, error) {
	args := f.Called(id, r)
	return args.Get(0).(model.Submission), args.Error(1)
}

func (f *fakeReviews) Reject(ctx context.Context, id string, r submission.Review) (model.Submission, error) {
	args := f.Called(id, r)
	return args.Get(0).(model.Submission), args.Error(1)
}

type fakePromoter struct {
	mock.Mock
}

func (f *fakePromoter) Promote(ctx context.Context, req promote.Request) (promote.Result, error) {
	args := f.Called(req)
	return args.Get(0).(promote.Result), args.Error(1)
}

type fakePlaces struct {
	list resilience.Result[[]model.Place]
	get  resilience.Result[model.Place]
	err  error
	seen model.PlaceFilter
}

func (f *fakePlaces) Get(_ context.Context, _ string) (resilience.Result[model.Place], error) {
	return f.get, f.err
}

func (f *fakePlaces) List(_ context.Context, filter model.PlaceFilter) (resilience.Result[[]model.Place], error) {
	f.seen = filter
	return f.list, f.err
}

// newMediaManager returns a manager over an in-memory store holding one
// gallery and one proof object for submission s1.
func newMediaManager(t *testing.T) *media.Manager {
	t.Helper()
	store := media.NewFSStore(afero.NewMemMapFs(), "/media")
	ctx := context.Background()
	for _, key := range []string{"submissions/s1/gallery/m1", "submissions/s1/proof/m2"} {
		require.NoError(t, store.Put(ctx, key, bytes.NewReader(pngHeader), int64(len(pngHeader)), "image/png"))
	}
	return media.NewManager(store)
}

// multipartBody renders a payload field plus files keyed by field name.
func multipartBody(t *testing.T, payload string, files map[string][][]byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField(intake.PayloadField, payload))
	for field, list := range files {
		for i, data := range list {
			fw, err := mw.CreateFormFile(field, field+string(rune('a'+i))+".png")
			require.NoError(t, err)
			_, err = fw.Write(data)
			require.NoError(t, err)
		}
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, h http.Handler, method, path string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func adminHeader() http.Header {
	return http.Header{"Authorization": {"Bearer " + adminToken}}
}
