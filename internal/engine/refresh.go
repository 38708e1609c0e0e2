package engine

import (
	"brainapi/internal/logging"
	"brainapi/internal/metrics"
	"brainapi/internal/models"
	"context"
	"fmt"
	"time"
)

// RefreshResult describes a successful refresh.
type RefreshResult struct {
	Total       int
	LastUpdated time.Time
}

// Service is the shared context handed to every handler. It owns the
// DatasetStore and the StatusTracker, which are locked independently: a
// reader may briefly see the new status with the old dataset, or the reverse.
type Service struct {
	source Source
	data   *DatasetStore
	status *StatusTracker
}

type ServiceOption func(*Service)

// WithClock sets the time source for status stamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.status = NewStatusTracker(now) }
}

func NewService(source Source, opts ...ServiceOption) *Service {
	s := &Service{
		source: source,
		data:   &DatasetStore{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.status == nil {
		s.status = NewStatusTracker(nil)
	}
	return s
}

// Refresh re-runs ingestion and publishes the result. On failure the
// current dataset and status are left untouched and the error is returned.
// Concurrent refreshes are not serialized; the last Replace wins.
func (s *Service) Refresh(ctx context.Context) (RefreshResult, error) {
	start := time.Now()

	records, err := s.source.Fetch(ctx)
	if err != nil {
		metrics.RecordRefresh(errorKind(err), time.Since(start))
		logging.Warn().Err(err).Dur("took", time.Since(start)).Msg("refresh failed, keeping previous dataset")
		return RefreshResult{}, fmt.Errorf("refresh: %w", err)
	}

	ds := NewDataset(records)
	s.data.Replace(ds)
	st := s.status.Update(StatusUpdate{Fetched: Flag(true), Ready: Flag(true), InUse: Flag(false)})

	metrics.DatasetRows.Set(float64(ds.Len()))
	metrics.RecordRefresh("success", time.Since(start))
	logging.Info().Int("rows", ds.Len()).Dur("took", time.Since(start)).Msg("dataset refreshed")

	return RefreshResult{Total: ds.Len(), LastUpdated: st.LastUpdated}, nil
}

// Snapshot returns the current dataset for querying, or ErrNotLoaded.
func (s *Service) Snapshot() (*Dataset, error) {
	return s.data.Snapshot()
}

// Rows reports the current row count and whether a dataset is loaded.
func (s *Service) Rows() (int, bool) {
	return s.data.Len()
}

func (s *Service) Status() models.Status {
	return s.status.Read()
}

// SetInUse flips only the in_use flag.
func (s *Service) SetInUse(inUse bool) models.Status {
	return s.status.Update(StatusUpdate{InUse: Flag(inUse)})
}
