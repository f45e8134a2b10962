package objectstore

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abduss/bucketgate/internal/apperr"
)

// A fixed region keeps minio-go from looking up the bucket location, so presigning stays local.
func newOfflineMinIOGateway(t *testing.T) *MinIOGateway {
	t.Helper()
	client, err := minio.New("minio.local:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("access", "secret", ""),
		Secure: false,
		Region: "us-east-1",
	})
	require.NoError(t, err)
	return NewMinIOGateway(client, "gateway")
}

func TestMinIOGatewayPresignDownload(t *testing.T) {
	gw := newOfflineMinIOGateway(t)

	raw, err := gw.PresignDownload(context.Background(), "3f1c", time.Hour)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "minio.local:9000", u.Host)
	assert.Equal(t, "/gateway/3f1c", u.Path)
	assert.Equal(t, "3600", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestMinIOGatewayPresignUpload(t *testing.T) {
	gw := newOfflineMinIOGateway(t)

	raw, err := gw.PresignUpload(context.Background(), "3f1c", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/gateway/3f1c", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
}

func TestMinIOGatewayRejectsInvalidExpiry(t *testing.T) {
	gw := newOfflineMinIOGateway(t)

	_, err := gw.PresignDownload(context.Background(), "3f1c", 0)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStorage))

	_, err = gw.PresignUpload(context.Background(), "3f1c", 8*24*time.Hour)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStorage))
}
