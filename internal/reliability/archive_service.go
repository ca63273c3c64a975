package reliability

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ArchivePrefix is where undelivered alert payloads are kept
const ArchivePrefix = "failed_alerts/"

// minArchivesToKeep survive rotation regardless of age
const minArchivesToKeep = 3

// ObjectStore is the bucket surface the archive needs
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
	List(ctx context.Context, prefix string) ([]Object, error)
	Delete(ctx context.Context, key string) error
}

// ArchiveService copies fallback payloads to object storage and rotates them
type ArchiveService struct {
	store ObjectStore
	now   func() time.Time
	log   zerolog.Logger
}

// NewArchiveService creates an archive over store
func NewArchiveService(store ObjectStore, log zerolog.Logger) *ArchiveService {
	return &ArchiveService{
		store: store,
		now:   time.Now,
		log:   log.With().Str("service", "alert_archive").Logger(),
	}
}

// Archive uploads body under key
func (s *ArchiveService) Archive(ctx context.Context, key string, body []byte, contentType string) error {
	if !strings.HasPrefix(key, ArchivePrefix) {
		key = ArchivePrefix + key
	}
	if err := s.store.Upload(ctx, key, bytes.NewReader(body), contentType); err != nil {
		return err
	}
	s.log.Info().Str("key", key).Int("bytes", len(body)).Msg("Archived undelivered alerts")
	return nil
}

// List returns archived payloads, newest first
func (s *ArchiveService) List(ctx context.Context) ([]Object, error) {
	objects, err := s.store.List(ctx, ArchivePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list archives: %w", err)
	}
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	return objects, nil
}

// Rotate deletes archives older than retention, always keeping the newest few.
// A zero retention keeps everything.
func (s *ArchiveService) Rotate(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, nil
	}
	objects, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(objects) <= minArchivesToKeep {
		return 0, nil
	}

	cutoff := s.now().Add(-retention)
	deleted := 0
	for _, obj := range objects[minArchivesToKeep:] {
		if !obj.LastModified.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, obj.Key); err != nil {
			s.log.Error().Err(err).Str("key", obj.Key).Msg("Failed to delete old archive")
			continue
		}
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(objects)-deleted).
		Msg("Archive rotation completed")
	return deleted, nil
}

// RotationJob runs Rotate on a schedule
type RotationJob struct {
	archive   *ArchiveService
	retention time.Duration
}

// NewRotationJob creates the archive rotation job
func NewRotationJob(archive *ArchiveService, retention time.Duration) *RotationJob {
	return &RotationJob{archive: archive, retention: retention}
}

// Run executes one rotation
func (j *RotationJob) Run() error {
	_, err := j.archive.Rotate(context.Background(), j.retention)
	return err
}

// Name returns the job name for scheduler
func (j *RotationJob) Name() string {
	return "alert_archive_rotation"
}
