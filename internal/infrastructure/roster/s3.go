package roster

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/school-notify-api/internal/domain"
	"github.com/school-notify-api/internal/metrics"
)

// ObjectStore is the subset of the S3 store the roster needs.
type ObjectStore interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte, contentType string) error
}

// S3Source reads the roster from a JSON object in S3, in either shape Decode accepts.
type S3Source struct {
	store ObjectStore
	key   string
}

func NewS3Source(store ObjectStore, key string) *S3Source {
	return &S3Source{store: store, key: key}
}

func (s *S3Source) FetchIDs(ctx context.Context) ([]string, error) {
	b, err := s.store.Read(ctx, s.key)
	if err != nil {
		metrics.RosterFetches.WithLabelValues("s3", "error").Inc()
		return nil, fmt.Errorf("read roster snapshot: %v: %w", err, domain.ErrUpstream)
	}
	ids, err := Decode(b)
	if err != nil {
		metrics.RosterFetches.WithLabelValues("s3", "error").Inc()
		return nil, fmt.Errorf("%v: %w", err, domain.ErrUpstream)
	}
	metrics.RosterFetches.WithLabelValues("s3", "ok").Inc()
	return ids, nil
}

// SnapshotSource fetches from a primary source and keeps the last good
// result in S3. When the primary fails, the snapshot is served instead.
type SnapshotSource struct {
	primary  Source
	snapshot *S3Source
}

func NewSnapshotSource(primary Source, store ObjectStore, key string) *SnapshotSource {
	return &SnapshotSource{primary: primary, snapshot: NewS3Source(store, key)}
}

func (s *SnapshotSource) FetchIDs(ctx context.Context) ([]string, error) {
	ids, err := s.primary.FetchIDs(ctx)
	if err != nil {
		fallback, snapErr := s.snapshot.FetchIDs(ctx)
		if snapErr != nil {
			return nil, err
		}
		slog.Warn("roster source failed, serving snapshot", "err", err, "ids", len(fallback))
		return fallback, nil
	}
	if len(ids) > 0 {
		if werr := s.save(ctx, ids); werr != nil {
			slog.Warn("could not write roster snapshot", "err", werr)
		}
	}
	return ids, nil
}

func (s *SnapshotSource) save(ctx context.Context, ids []string) error {
	entries := make([]map[string]string, len(ids))
	for i, id := range ids {
		entries[i] = map[string]string{"user_id": id}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.snapshot.store.Write(ctx, s.snapshot.key, b, "application/json")
}
