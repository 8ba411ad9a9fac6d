package media

import (
	"strings"

	"github.com/sells-group/venue-registry/internal/model"
)

// Prefix is the root of every submission-scoped object key.
const Prefix = "submissions/"

// Key derives the object key for one media item.
func Key(submissionID string, kind model.MediaKind, mediaID string) string {
	return Prefix + submissionID + "/" + string(kind) + "/" + mediaID
}

// KindPrefix is the key prefix of all objects of one kind in a submission.
func KindPrefix(submissionID string, kind model.MediaKind) string {
	return Prefix + submissionID + "/" + string(kind) + "/"
}

// ParseKey splits a key produced by Key. ok is false for foreign keys.
func ParseKey(key string) (submissionID string, kind model.MediaKind, mediaID string, ok bool) {
	rest, found := strings.CutPrefix(key, Prefix)
	if !found {
		return "", "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return "", "", "", false
	}
	kind = model.MediaKind(parts[1])
	if !kind.Valid() {
		return "", "", "", false
	}
	return parts[0], kind, parts[2], true
}
