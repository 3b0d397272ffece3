package storage

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"decentra/internal/config"
)

func TestPresignGetUsesConfiguredTTL(t *testing.T) {
	store, err := NewObjectStore(config.StorageConfig{
		Endpoint:     "https://minio.local:9000",
		AccessKey:    "access",
		SecretKey:    "secret",
		BucketPhotos: "decentra-photos",
		Region:       "us-east-1",
		PresignTTL:   15 * time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, "decentra-photos", store.Bucket())

	raw, err := store.PresignGet(context.Background(), store.Bucket(), "2026/10/15/abc.png")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "minio.local:9000", u.Host)
	assert.Contains(t, u.Path, "/decentra-photos/2026/10/15/abc.png")
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
}
