package cache

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"PenguinWatch.dashboard/internal/metrics"
	"PenguinWatch.dashboard/internal/models"
)

// Keys of the two cached snapshots.
const (
	KeyLatest  = "latestPenguinData"
	KeyHistory = "weightHistoryData"
)

// Snapshots reads and writes the cached live record and weight history. The
// cache is never authoritative: unreadable entries are dropped and reported
// as a miss.
type Snapshots struct {
	store   Store
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewSnapshots(store Store, log zerolog.Logger, m *metrics.Metrics) *Snapshots {
	return &Snapshots{store: store, log: log, metrics: m}
}

// Latest returns the cached live record.
func (s *Snapshots) Latest(ctx context.Context) (models.Measurement, bool, error) {
	var m models.Measurement
	ok, err := s.load(ctx, KeyLatest, &m)
	if !ok || err != nil {
		return models.Measurement{}, false, err
	}
	return m, true, nil
}

// History returns the cached weight history. Entries without an id take the
// id of the cached live record.
func (s *Snapshots) History(ctx context.Context) ([]models.Measurement, bool, error) {
	var hist []models.Measurement
	ok, err := s.load(ctx, KeyHistory, &hist)
	if !ok || err != nil {
		return nil, false, err
	}
	if latest, found, _ := s.Latest(ctx); found && latest.ID != "" {
		for i := range hist {
			hist[i] = hist[i].WithID(latest.ID)
		}
	}
	return hist, true, nil
}

func (s *Snapshots) SaveLatest(ctx context.Context, m models.Measurement) error {
	return s.save(ctx, KeyLatest, m)
}

func (s *Snapshots) SaveHistory(ctx context.Context, hist []models.Measurement) error {
	return s.save(ctx, KeyHistory, hist)
}

func (s *Snapshots) load(ctx context.Context, key string, out any) (bool, error) {
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		s.metrics.CacheRead(key, "miss")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.metrics.CacheRead(key, "corrupt")
		s.log.Warn().Err(err).Str("key", key).Msg("dropping unreadable cache entry")
		if derr := s.store.Delete(ctx, key); derr != nil {
			s.log.Error().Err(derr).Str("key", key).Msg("failed to delete cache entry")
		}
		return false, nil
	}
	s.metrics.CacheRead(key, "hit")
	return true, nil
}

func (s *Snapshots) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, key, raw)
}
