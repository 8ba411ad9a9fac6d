package intake

import (
	"bytes"
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/venue-registry/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
)

func png(size int) File {
	data := make([]byte, size)
	copy(data, pngHeader)
	return File{Name: "photo.png", Size: int64(size), Data: data}
}

func jpeg() File {
	return File{Name: "photo.jpg", Size: int64(len(jpegHeader)), Data: bytes.Clone(jpegHeader)}
}

func text() File {
	data := []byte("just some words, not an image")
	return File{Name: "notes.txt", Size: int64(len(data)), Data: data}
}

func ownerPayload() model.Payload {
	return model.Payload{
		Kind:           model.KindOwner,
		Name:           "Cafe X",
		Country:        "JP",
		City:           "Tokyo",
		AcceptedAssets: []model.AcceptedAsset{{Asset: "BTC"}},
		Details:        model.OwnerDetails{},
	}
}

func communityPayload() model.Payload {
	return model.Payload{
		Kind:           model.KindCommunity,
		Name:           "Bar Y",
		Country:        "SV",
		City:           "San Salvador",
		AcceptedAssets: []model.AcceptedAsset{{Asset: "btc", Network: "lightning"}},
		Details: model.CommunityDetails{ProofURLs: []string{
			"https://example.com/a", "https://example.com/b",
		}},
	}
}

func reportPayload() model.Payload {
	return model.Payload{
		Kind:          model.KindReport,
		TargetPlaceID: "place-1",
		Details:       model.ReportDetails{Reason: "closed permanently"},
	}
}

// fakeStore records creates. block, when set, holds every call until closed.
type fakeStore struct {
	mu      sync.Mutex
	created []model.Submission
	media   map[string][]model.Media
	err     error
	block   chan struct{}
}

func (f *fakeStore) Create(_ context.Context, sub model.Submission, items []model.Media) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.media == nil {
		f.media = map[string][]model.Media{}
	}
	f.created = append(f.created, sub)
	f.media[sub.ID] = items
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}
