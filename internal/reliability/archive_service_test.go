package reliability

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	objects   map[string]Object
	bodies    map[string]string
	uploadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]Object{}, bodies: map[string]string{}}
}

func (s *fakeStore) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.bodies[key] = string(b)
	s.objects[key] = Object{Key: key, Size: int64(len(b)), LastModified: time.Now()}
	return nil
}

func (s *fakeStore) List(ctx context.Context, prefix string) ([]Object, error) {
	var out []Object
	for _, o := range s.objects {
		out = append(out, o)
	}
	return out, nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

func TestArchive_PrefixesKey(t *testing.T) {
	store := newFakeStore()
	svc := NewArchiveService(store, zerolog.Nop())

	require.NoError(t, svc.Archive(context.Background(), "alerts_AM_20250310_093500.html", []byte("<p>x</p>"), "text/html"))
	require.NoError(t, svc.Archive(context.Background(), ArchivePrefix+"alerts_PM_20250310_153000.html", []byte("<p>y</p>"), "text/html"))

	assert.Equal(t, "<p>x</p>", store.bodies["failed_alerts/alerts_AM_20250310_093500.html"])
	assert.Equal(t, "<p>y</p>", store.bodies["failed_alerts/alerts_PM_20250310_153000.html"])
}

func TestArchive_UploadError(t *testing.T) {
	store := newFakeStore()
	store.uploadErr = errors.New("403")
	svc := NewArchiveService(store, zerolog.Nop())

	assert.Error(t, svc.Archive(context.Background(), "k", nil, "text/html"))
}

func TestRotate_KeepsNewestAndRecent(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	for i, age := range []time.Duration{1, 2, 3, 40 * 24, 50 * 24, 5 * 24} {
		key := ArchivePrefix + string(rune('a'+i))
		store.objects[key] = Object{Key: key, LastModified: now.Add(-age * time.Hour)}
	}

	svc := NewArchiveService(store, zerolog.Nop())
	svc.now = func() time.Time { return now }

	deleted, err := svc.Rotate(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.Len(t, store.objects, 4)
	_, ok := store.objects[ArchivePrefix+"f"]
	assert.True(t, ok, "5 day old archive is within retention")
}

func TestRotate_FewArchivesUntouched(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	for _, k := range []string{"a", "b", "c"} {
		store.objects[k] = Object{Key: k, LastModified: now.Add(-365 * 24 * time.Hour)}
	}
	svc := NewArchiveService(store, zerolog.Nop())

	deleted, err := svc.Rotate(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Len(t, store.objects, 3)
}

func TestRotationJob(t *testing.T) {
	job := NewRotationJob(NewArchiveService(newFakeStore(), zerolog.Nop()), 0)
	assert.Equal(t, "alert_archive_rotation", job.Name())
	assert.NoError(t, job.Run())
}
