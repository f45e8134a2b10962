package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverMinIO, cfg.ObjectStore.Driver)
	assert.Equal(t, CacheMemory, cfg.Cache.Driver)
	assert.Equal(t, int64(100*1024*1024), cfg.Upload.MaxSize)
	assert.Equal(t, time.Hour, cfg.Presign.DownloadTTL)
	assert.Less(t, cfg.Presign.UploadTTL, cfg.Presign.DownloadTTL)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("OBJECT_STORE_DRIVER", "S3")
	t.Setenv("S3_BUCKET", "uploads")
	t.Setenv("CACHE_DRIVER", "redis")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("PRESIGN_DOWNLOAD_TTL", "30m")
	t.Setenv("UPLOAD_MAX_SIZE", "2048")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverS3, cfg.ObjectStore.Driver)
	assert.Equal(t, "uploads", cfg.S3.Bucket)
	assert.Equal(t, CacheRedis, cfg.Cache.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Presign.DownloadTTL)
	assert.Equal(t, int64(2048), cfg.Upload.MaxSize)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("OBJECT_STORE_DRIVER", "ftp")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OBJECT_STORE_DRIVER")
}

func TestValidateRequiresS3Bucket(t *testing.T) {
	t.Setenv("OBJECT_STORE_DRIVER", "s3")
	t.Setenv("S3_BUCKET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestBcryptCostOutOfRangeFallsBack(t *testing.T) {
	t.Setenv("BUCKETGATE_AUTH_BCRYPT_COST", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
}
