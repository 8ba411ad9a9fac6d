package media

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/venue-registry/internal/model"
)

func TestKey_RoundTrip(t *testing.T) {
	k := Key("s1", model.MediaProof, "m1")
	assert.Equal(t, "submissions/s1/proof/m1", k)

	sid, kind, mid, ok := ParseKey(k)
	assert.True(t, ok)
	assert.Equal(t, "s1", sid)
	assert.Equal(t, model.MediaProof, kind)
	assert.Equal(t, "m1", mid)
	assert.Equal(t, "submissions/s1/gallery/", KindPrefix("s1", model.MediaGallery))
}

func TestParseKey_Rejects(t *testing.T) {
	for _, k := range []string{
		"places/p1/gallery/m1",
		"submissions/s1/avatar/m1",
		"submissions/s1/gallery",
		"submissions//gallery/m1",
		"submissions/s1/gallery/m1/extra",
	} {
		_, _, _, ok := ParseKey(k)
		assert.False(t, ok, k)
	}
}
