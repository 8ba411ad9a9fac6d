package media

import (
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(S3Config{Endpoint: "localhost:9000"})
	require.Error(t, err)

	s, err := NewS3Store(S3Config{Endpoint: "localhost:9000", Bucket: "media", AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	assert.Equal(t, "media", s.bucket)
}

func TestS3Err_MapsNoSuchKey(t *testing.T) {
	err := s3Err(minio.ErrorResponse{Code: "NoSuchKey", Message: "missing"}, "get", "k")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	err = s3Err(errors.New("connection refused"), "get", "k")
	assert.NotErrorIs(t, err, ErrObjectNotFound)
	assert.Contains(t, err.Error(), "media: s3 get k")
}
