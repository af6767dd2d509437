// Package archive is the cold-storage sink the cleanup sweep (C8)
// uploads terminal job rows to before marking them archived in the
// durable store. It is not a core.Storage: archived rows are write-once
// and read back only for operator lookups, never mutated.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/rezkam/mono/internal/domain"
	"google.golang.org/api/iterator"
)

// Sink is the destination a cleanup sweep archives terminal jobs to.
type Sink interface {
	Archive(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context) ([]*domain.Job, error)
}

// Store is a GCS-backed Sink: one JSON object per archived job.
type Store struct {
	client *storage.Client
	bucket string
}

var _ Sink = (*Store)(nil)

// NewStore creates a new GCS-backed archive store. It assumes the
// client is authenticated (e.g. via GOOGLE_APPLICATION_CREDENTIALS).
func NewStore(ctx context.Context, bucketName string) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &Store{client: client, bucket: bucketName}, nil
}

// Close releases the underlying GCS client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) objectName(id string) string {
	return fmt.Sprintf("jobs/%s.json", id)
}

// Archive uploads job as a JSON object, overwriting any prior object at
// the same key (archival is idempotent under retry).
func (s *Store) Archive(ctx context.Context, job *domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	obj := s.client.Bucket(s.bucket).Object(s.objectName(job.ID))
	w := obj.NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write archive object: %w", err)
	}
	return w.Close()
}

// Get retrieves a single archived job by id.
func (s *Store) Get(ctx context.Context, id string) (*domain.Job, error) {
	obj := s.client.Bucket(s.bucket).Object(s.objectName(id))

	r, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: archived job %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("read archive object: %w", err)
	}
	defer r.Close()

	var job domain.Job
	if err := json.NewDecoder(r).Decode(&job); err != nil {
		return nil, fmt.Errorf("decode archived job: %w", err)
	}
	return &job, nil
}

// List scans the bucket and loads every archived job in parallel.
// Unreadable or malformed objects are skipped rather than failing the
// whole scan — archival is best-effort cold storage, not a source of
// truth.
func (s *Store) List(ctx context.Context) ([]*domain.Job, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: "jobs/"})

	var objectNames []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list archive objects: %w", err)
		}
		if strings.HasSuffix(attrs.Name, ".json") {
			objectNames = append(objectNames, attrs.Name)
		}
	}

	var (
		mu   sync.Mutex
		jobs []*domain.Job
		wg   sync.WaitGroup
	)

	const maxConcurrency = 20
	semaphore := make(chan struct{}, maxConcurrency)

	for _, name := range objectNames {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(objectName string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			obj := s.client.Bucket(s.bucket).Object(objectName)
			r, err := obj.NewReader(ctx)
			if err != nil {
				return
			}
			defer r.Close()

			data, err := io.ReadAll(r)
			if err != nil {
				return
			}

			var job domain.Job
			if err := json.Unmarshal(data, &job); err == nil {
				mu.Lock()
				jobs = append(jobs, &job)
				mu.Unlock()
			}
		}(name)
	}

	wg.Wait()
	return jobs, nil
}
