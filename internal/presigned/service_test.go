package presigned

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abduss/bucketgate/internal/apperr"
	"github.com/abduss/bucketgate/internal/bucket"
	"github.com/abduss/bucketgate/internal/cache"
	"github.com/abduss/bucketgate/internal/file"
	"github.com/abduss/bucketgate/internal/objectstore"
)

// memDB backs both repositories so bucket counters and file rows live side by side.
type memDB struct {
	mu      sync.Mutex
	users   map[uuid.UUID]bool
	buckets map[uuid.UUID]*bucket.Bucket
	files   map[uuid.UUID]*file.File
}

func newMemDB() *memDB {
	return &memDB{
		users:   map[uuid.UUID]bool{},
		buckets: map[uuid.UUID]*bucket.Bucket{},
		files:   map[uuid.UUID]*file.File{},
	}
}

func (db *memDB) UserExists(_ context.Context, id uuid.UUID) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.users[id], nil
}

type memBuckets struct{ db *memDB }

func (r memBuckets) Create(_ context.Context, b bucket.Bucket) (bucket.Bucket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	stored := b
	r.db.buckets[b.ID] = &stored
	return b, nil
}

func (r memBuckets) FindByID(_ context.Context, id uuid.UUID) (*bucket.Bucket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	b, ok := r.db.buckets[id]
	if !ok {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

func (r memBuckets) FindByOwner(_ context.Context, ownerID uuid.UUID) ([]bucket.Bucket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []bucket.Bucket
	for _, b := range r.db.buckets {
		if b.OwnerID == ownerID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r memBuckets) findBy(match func(*bucket.Bucket) bool) *bucket.Bucket {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, b := range r.db.buckets {
		if match(b) {
			copied := *b
			return &copied
		}
	}
	return nil
}

func (r memBuckets) FindByPublicKey(_ context.Context, key string) (*bucket.Bucket, error) {
	return r.findBy(func(b *bucket.Bucket) bool { return b.PublicKey == key }), nil
}

func (r memBuckets) FindByPrivateKey(_ context.Context, key string) (*bucket.Bucket, error) {
	return r.findBy(func(b *bucket.Bucket) bool { return b.PrivateKey == key }), nil
}

func (r memBuckets) UpdateName(_ context.Context, id uuid.UUID, name string) (bucket.Bucket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	b, ok := r.db.buckets[id]
	if !ok {
		return bucket.Bucket{}, bucket.ErrBucketNotFound
	}
	b.Name = name
	return *b, nil
}

func (r memBuckets) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.buckets[id]; !ok {
		return bucket.ErrBucketNotFound
	}
	for _, f := range r.db.files {
		if f.BucketID == id {
			return bucket.ErrBucketNotEmpty
		}
	}
	delete(r.db.buckets, id)
	return nil
}

func (r memBuckets) mutate(id uuid.UUID, apply func(*bucket.Bucket)) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	b, ok := r.db.buckets[id]
	if !ok {
		return bucket.ErrBucketNotFound
	}
	apply(b)
	return nil
}

func (r memBuckets) UpdateStats(_ context.Context, id uuid.UUID, sizeDelta, countDelta int64) error {
	return r.mutate(id, func(b *bucket.Bucket) {
		b.TotalSize = max(b.TotalSize+sizeDelta, 0)
		b.FileCount = max(b.FileCount+countDelta, 0)
	})
}

func (r memBuckets) IncrementDownloadCount(_ context.Context, id uuid.UUID) error {
	return r.mutate(id, func(b *bucket.Bucket) { b.DownloadCount++ })
}

func (r memBuckets) IncrementUploadCount(_ context.Context, id uuid.UUID) error {
	return r.mutate(id, func(b *bucket.Bucket) { b.UploadCount++ })
}

func (r memBuckets) Reconcile(_ context.Context, id uuid.UUID) (bucket.Bucket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	b, ok := r.db.buckets[id]
	if !ok {
		return bucket.Bucket{}, bucket.ErrBucketNotFound
	}
	b.TotalSize, b.FileCount = 0, 0
	for _, f := range r.db.files {
		if f.BucketID == id {
			b.TotalSize += f.Size
			b.FileCount++
		}
	}
	return *b, nil
}

type memFiles struct{ db *memDB }

func (r memFiles) Create(_ context.Context, f file.File) (file.File, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	f.CreatedAt = time.Now()
	f.UpdatedAt = f.CreatedAt
	stored := f
	r.db.files[f.ID] = &stored
	return f, nil
}

func (r memFiles) FindByID(_ context.Context, id uuid.UUID) (*file.File, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	f, ok := r.db.files[id]
	if !ok {
		return nil, nil
	}
	copied := *f
	return &copied, nil
}

func (r memFiles) FindByName(_ context.Context, bucketID uuid.UUID, name string) (*file.File, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, f := range r.db.files {
		if f.BucketID == bucketID && f.Name == name {
			copied := *f
			return &copied, nil
		}
	}
	return nil, nil
}

func (r memFiles) FindByBucket(_ context.Context, bucketID uuid.UUID) ([]file.File, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []file.File
	for _, f := range r.db.files {
		if f.BucketID == bucketID {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memFiles) CountByBucket(_ context.Context, bucketID uuid.UUID) (int, error) {
	list, _ := r.FindByBucket(context.Background(), bucketID)
	return len(list), nil
}

func (r memFiles) Update(_ context.Context, f file.File) (file.File, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.files[f.ID]; !ok {
		return file.File{}, file.ErrFileNotFound
	}
	stored := f
	r.db.files[f.ID] = &stored
	return f, nil
}

func (r memFiles) Delete(_ context.Context, id uuid.UUID) (file.File, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	f, ok := r.db.files[id]
	if !ok {
		return file.File{}, file.ErrFileNotFound
	}
	delete(r.db.files, id)
	return *f, nil
}

func (r memFiles) IncrementDownloads(_ context.Context, id uuid.UUID) (uuid.UUID, bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	f, ok := r.db.files[id]
	if !ok {
		return uuid.Nil, false, nil
	}
	f.Downloads++
	return f.BucketID, true, nil
}

// fakeGateway signs deterministic URLs and serves objects from memory.
type fakeGateway struct {
	mu          sync.Mutex
	objects     map[string]string
	presignErr  error
	uploadSigns int
	signs       int
	deleted     []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{objects: map[string]string{}}
}

func (g *fakeGateway) PresignUpload(_ context.Context, key string, ttl time.Duration) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.presignErr != nil {
		return "", g.presignErr
	}
	g.uploadSigns++
	return fmt.Sprintf("https://objects.test/put/%s?ttl=%d", key, int(ttl.Seconds())), nil
}

func (g *fakeGateway) PresignDownload(_ context.Context, key string, ttl time.Duration) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.presignErr != nil {
		return "", g.presignErr
	}
	g.signs++
	return fmt.Sprintf("https://objects.test/get/%s?ttl=%d&n=%d", key, int(ttl.Seconds()), g.signs), nil
}

func (g *fakeGateway) Exists(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.objects[key]
	return ok, nil
}

func (g *fakeGateway) Open(_ context.Context, key string) (io.ReadCloser, objectstore.ObjectInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	body, ok := g.objects[key]
	if !ok {
		return nil, objectstore.ObjectInfo{}, apperr.Storage("open object", objectstore.ErrObjectNotFound)
	}
	return io.NopCloser(strings.NewReader(body)), objectstore.ObjectInfo{Key: key, Size: int64(len(body)), ContentType: "text/plain", ETag: "abc"}, nil
}

func (g *fakeGateway) Delete(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.objects, key)
	g.deleted = append(g.deleted, key)
	return nil
}

func (g *fakeGateway) Ping(context.Context) error { return nil }

type fixture struct {
	db      *memDB
	gateway *fakeGateway
	buckets *bucket.Service
	files   *file.Service
	service *Service
	owner   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := cache.NewMemoryStore(128, 0)
	require.NoError(t, err)
	c := cache.New(store, "memory", nil)
	t.Cleanup(func() { _ = c.Close() })

	db := newMemDB()
	owner := uuid.New()
	db.users[owner] = true

	gateway := newFakeGateway()
	buckets := bucket.NewService(memBuckets{db}, db, memFiles{db}, c, time.Minute, nil)
	files := file.NewService(memFiles{db}, buckets, gateway, nil)
	service := NewService(buckets, files, gateway, c, Config{UploadTTL: 15 * time.Minute, DownloadTTL: time.Hour}, nil)

	return &fixture{db: db, gateway: gateway, buckets: buckets, files: files, service: service, owner: owner}
}

func (fx *fixture) bucket(t *testing.T, name string) bucket.Bucket {
	t.Helper()
	b, err := fx.buckets.CreateBucket(context.Background(), name, fx.owner)
	require.NoError(t, err)
	return b
}

func (fx *fixture) stats(t *testing.T, id uuid.UUID) bucket.Stats {
	t.Helper()
	stats, err := fx.buckets.GetBucketStats(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, stats)
	return *stats
}

func TestRequestUploadRecordsFileAndSignsURL(t *testing.T) {
	fx := newFixture(t)
	b := fx.bucket(t, "Media")
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	fx.service.now = func() time.Time { return fixed }

	ticket, err := fx.service.RequestUpload(context.Background(), b.PublicKey, UploadRequest{
		Name: "report.pdf", Type: "application/pdf", Size: 2048,
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, ticket.Method)
	assert.Equal(t, "report.pdf", ticket.File.OriginalName)
	assert.Equal(t, b.ID, ticket.File.BucketID)
	assert.Contains(t, ticket.URL, file.ObjectKey(ticket.File))
	assert.Contains(t, ticket.URL, "ttl=900")
	assert.Equal(t, fixed.Add(15*time.Minute), ticket.ExpiresAt)

	stats := fx.stats(t, b.ID)
	assert.Equal(t, int64(1), stats.FileCount)
	assert.Equal(t, int64(2048), stats.TotalSize)
	assert.Equal(t, int64(1), stats.UploadCount)
}

func TestRequestUploadSignsEveryTicketFresh(t *testing.T) {
	fx := newFixture(t)
	b := fx.bucket(t, "Media")
	ctx := context.Background()

	first, err := fx.service.RequestUpload(ctx, b.PublicKey, UploadRequest{Name: "a.png", Type: "image/png", Size: 10})
	require.NoError(t, err)
	second, err := fx.service.RequestUpload(ctx, b.PublicKey, UploadRequest{Name: "a.png", Type: "image/png", Size: 10})
	require.NoError(t, err)

	assert.NotEqual(t, first.File.ID, second.File.ID)
	assert.NotEqual(t, first.URL, second.URL)
	assert.Equal(t, 2, fx.gateway.uploadSigns)
	assert.False(t, fx.service.cache.Has(ctx, urlCacheKey(opUpload, file.ObjectKey(first.File))))
	assert.False(t, fx.service.cache.Has(ctx, urlCacheKey(opUpload, file.ObjectKey(second.File))))
}

func TestRequestUploadRollsBackWhenSigningFails(t *testing.T) {
	fx := newFixture(t)
	b := fx.bucket(t, "Media")
	fx.gateway.presignErr = apperr.Storage("presign upload", errors.New("endpoint unreachable"))

	_, err := fx.service.RequestUpload(context.Background(), b.PublicKey, UploadRequest{
		Name: "a.png", Type: "image/png", Size: 1024,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))

	files, err := fx.files.GetFilesByBucketID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Empty(t, files)

	stats := fx.stats(t, b.ID)
	assert.Zero(t, stats.FileCount)
	assert.Zero(t, stats.TotalSize)
	// The attempt itself stays counted.
	assert.Equal(t, int64(1), stats.UploadCount)
}

func TestRequestUploadSizeLimitIsInclusive(t *testing.T) {
	fx := newFixture(t)
	b := fx.bucket(t, "Media")
	ctx := context.Background()

	_, err := fx.service.RequestUpload(ctx, b.PublicKey, UploadRequest{Name: "max.bin", Type: "application/octet-stream", Size: DefaultMaxUploadSize})
	require.NoError(t, err)

	_, err = fx.service.RequestUpload(ctx, b.PublicKey, UploadRequest{Name: "over.bin", Type: "application/octet-stream", Size: DefaultMaxUploadSize + 1})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = fx.service.RequestUpload(ctx, b.PublicKey, UploadRequest{Name: "neg.bin", Type: "application/octet-stream", Size: -1})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	assert.Equal(t, int64(1), fx.stats(t, b.ID).FileCount)
}

func TestUnknownKeyIsUnauthorized(t *testing.T) {
	fx := newFixture(t)
	b := fx.bucket(t, "Media")
	ctx := context.Background()

	_, err := fx.service.RequestUpload(ctx, "pk_missing", UploadRequest{Name: "a", Type: "text/plain", Size: 1})
	assert.ErrorIs(t, err, bucket.ErrInvalidKey)

	_, err = fx.service.RequestDownload(ctx, "", uuid.New())
	assert.ErrorIs(t, err, bucket.ErrInvalidKey)

	// A private key is not a public key.
	_, err = fx.service.RequestUpload(ctx, b.PrivateKey, UploadRequest{Name: "a", Type: "text/plain", Size: 1})
	assert.ErrorIs(t, err, bucket.ErrInvalidKey)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestRequestDownloadReusesURLAndCountsEveryCall(t *testing.T) {
	fx := newFixture(t)
	b := fx.bucket(t, "Media")
	ctx := context.Background()

	up, err := fx.service.RequestUpload(ctx, b.PublicKey, UploadRequest{Name: "a.png", Type: "image/png", Size: 10})
	require.NoError(t, err)

	first, err := fx.service.RequestDownload(ctx, b.PublicKey, up.File.ID)
	require.NoError(t, err)
	second, err := fx.service.RequestDownload(ctx, b.PublicKey, up.File.ID)
	require.NoError(t, err)

	assert.Equal(t, first.URL, second.URL)
	assert.WithinDuration(t, first.ExpiresAt, second.ExpiresAt, 0)
	assert.Equal(t, 1, fx.gateway.signs)
	assert.Equal(t, http.MethodGet, second.Method)
	assert.Equal(t, int64(2), second.File.Downloads)

	stored, err := fx.files.GetFileByID(ctx, up.File.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Downloads)
	assert.Equal(t, int64(2), fx.stats(t, b.ID).DownloadCount)
}

func TestCrossBucketFilesAreNotFound(t *testing.T) {
	fx := newFixture(t)
	media := fx.bucket(t, "Media")
	docs := fx.bucket(t, "Docs")
	ctx := context.Background()

	up, err := fx.service.RequestUpload(ctx, media.PublicKey, UploadRequest{Name: "a.png", Type: "image/png", Size: 10})
	require.NoError(t, err)

	_, err = fx.service.RequestDownload(ctx, docs.PublicKey, up.File.ID)
	assert.ErrorIs(t, err, file.ErrFileNotFound)

	err = fx.service.DeleteFile(ctx, docs.PublicKey, up.File.ID)
	assert.ErrorIs(t, err, file.ErrFileNotFound)

	_, err = fx.service.DescribeFile(ctx, docs.PublicKey, uuid.New())
	assert.ErrorIs(t, err, file.ErrFileNotFound)

	stored, err := fx.files.GetFileByID(ctx, up.File.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.Downloads)
}

func TestOpenStreamRequiresUploadedObject(t *testing.T) {
	fx := newFixture(t)
	b := fx.bucket(t, "Media")
	ctx := context.Background()

	up, err := fx.service.RequestUpload(ctx, b.PublicKey, UploadRequest{Name: "notes.txt", Type: "text/plain", Size: 5})
	require.NoError(t, err)

	_, err = fx.service.OpenStream(ctx, b.PublicKey, up.File.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	fx.gateway.objects[file.ObjectKey(up.File)] = "hello"
	stream, err := fx.service.OpenStream(ctx, b.PublicKey, up.File.ID)
	require.NoError(t, err)
	defer stream.Body.Close()

	body, err := io.ReadAll(stream.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, int64(1), stream.File.Downloads)
	assert.Equal(t, int64(1), fx.stats(t, b.ID).DownloadCount)
}

func TestDeleteFileForgetsCachedDownloadURL(t *testing.T) {
	fx := newFixture(t)
	b := fx.bucket(t, "Media")
	ctx := context.Background()

	up, err := fx.service.RequestUpload(ctx, b.PublicKey, UploadRequest{Name: "a.png", Type: "image/png", Size: 10})
	require.NoError(t, err)
	_, err = fx.service.RequestDownload(ctx, b.PublicKey, up.File.ID)
	require.NoError(t, err)

	key := file.ObjectKey(up.File)
	require.True(t, fx.service.cache.Has(ctx, urlCacheKey(opDownload, key)))

	require.NoError(t, fx.service.DeleteFile(ctx, b.PublicKey, up.File.ID))
	assert.False(t, fx.service.cache.Has(ctx, urlCacheKey(opDownload, key)))
	assert.Equal(t, []string{key}, fx.gateway.deleted)

	_, err = fx.service.RequestDownload(ctx, b.PublicKey, up.File.ID)
	assert.ErrorIs(t, err, file.ErrFileNotFound)
}

func TestListFilesUsesPrivateKey(t *testing.T) {
	fx := newFixture(t)
	b := fx.bucket(t, "Media")
	ctx := context.Background()

	for _, name := range []string{"b.txt", "a.txt"} {
		_, err := fx.service.RequestUpload(ctx, b.PublicKey, UploadRequest{Name: name, Type: "text/plain", Size: 1})
		require.NoError(t, err)
	}

	identity, files, err := fx.service.ListFiles(ctx, b.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, b.ID, identity.ID)
	require.Len(t, files, 2)
	assert.Equal(t, "a.txt", files[0].Name)

	_, _, err = fx.service.ListFiles(ctx, b.PublicKey)
	assert.ErrorIs(t, err, bucket.ErrInvalidKey)
}

func TestURLGraceIsCapped(t *testing.T) {
	assert.Equal(t, 30*time.Second, urlGrace(5*time.Minute))
	assert.Equal(t, time.Minute, urlGrace(10*time.Minute))
	assert.Equal(t, time.Minute, urlGrace(15*time.Minute))
	assert.Equal(t, time.Minute, urlGrace(time.Hour))
	assert.Equal(t, time.Second, urlGrace(10*time.Second))
}

func TestBucketLifecycleScenario(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	media := fx.bucket(t, "Media")
	assert.NotEqual(t, media.PublicKey, media.PrivateKey)
	assert.Equal(t, bucket.Stats{BucketID: media.ID, Name: "Media"}, fx.stats(t, media.ID))

	created, err := fx.files.CreateFile(ctx, file.CreateInput{
		BucketID: media.ID, Name: "a.png", OriginalName: "a.png", Type: "image/png", Size: 1024,
	})
	require.NoError(t, err)

	stats := fx.stats(t, media.ID)
	assert.Equal(t, int64(1024), stats.TotalSize)
	assert.Equal(t, int64(1), stats.FileCount)
	assert.Equal(t, int64(1), stats.UploadCount)

	_, err = fx.files.CreateFile(ctx, file.CreateInput{
		BucketID: media.ID, Name: "a.png", OriginalName: "a.png", Type: "image/png", Size: 1024,
	})
	assert.ErrorIs(t, err, file.ErrFileNameExists)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	require.NoError(t, fx.files.DeleteFile(ctx, created.ID))
	stats = fx.stats(t, media.ID)
	assert.Zero(t, stats.TotalSize)
	assert.Zero(t, stats.FileCount)

	require.NoError(t, fx.buckets.DeleteBucket(ctx, media.ID))
	gone, err := fx.buckets.GetBucketByID(ctx, media.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func newTestRouter(fx *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(fx.service).RegisterRoutes(router.Group("/v1/public"))
	return router
}

func TestHandlerUploadAndStream(t *testing.T) {
	fx := newFixture(t)
	b := fx.bucket(t, "Media")
	router := newTestRouter(fx)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/public/files", strings.NewReader(`{"name":"notes.txt","type":"text/plain","size":5}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(BucketKeyHeader, b.PublicKey)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	files, err := fx.files.GetFilesByBucketID(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	fx.gateway.objects[file.ObjectKey(files[0])] = "hello"

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/public/files/"+files[0].ID.String()+"/content", nil)
	req.Header.Set("Authorization", "Bearer "+b.PublicKey)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, "5", rec.Header().Get("Content-Length"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="notes.txt"`)
}

func TestHandlerRejectsMissingKeyAndBadInput(t *testing.T) {
	fx := newFixture(t)
	b := fx.bucket(t, "Media")
	router := newTestRouter(fx)

	tests := []struct {
		name   string
		method string
		path   string
		key    string
		body   string
		want   int
	}{
		{name: "missing key", method: http.MethodGet, path: "/v1/public/files", want: http.StatusUnauthorized},
		{name: "unknown key", method: http.MethodGet, path: "/v1/public/files", key: "sk_nope", want: http.StatusUnauthorized},
		{name: "bad file id", method: http.MethodGet, path: "/v1/public/files/not-a-uuid/download", key: b.PublicKey, want: http.StatusBadRequest},
		{name: "missing size", method: http.MethodPost, path: "/v1/public/files", key: b.PublicKey, body: `{"name":"a","type":"text/plain"}`, want: http.StatusBadRequest},
		{name: "oversized", method: http.MethodPost, path: "/v1/public/files", key: b.PublicKey, body: fmt.Sprintf(`{"name":"a","type":"text/plain","size":%d}`, DefaultMaxUploadSize+1), want: http.StatusBadRequest},
		{name: "list with private key", method: http.MethodGet, path: "/v1/public/files", key: b.PrivateKey, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.key != "" {
				req.Header.Set(BucketKeyHeader, tt.key)
			}
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}
