// Package service holds the dashboard's live view model and the operations
// that keep it current: cache seeding, history reloads, live updates, search
// and the per-penguin profile.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"PenguinWatch.dashboard/internal/backend"
	"PenguinWatch.dashboard/internal/cache"
	"PenguinWatch.dashboard/internal/models"
	"PenguinWatch.dashboard/internal/reconcile"
	"PenguinWatch.dashboard/internal/stream"
)

// Messages shown in place of the weight history list.
const (
	HistoryLoading = "Loading weight history..."
	HistoryEmpty   = "No weight history available"
)

// ErrArchiveDisabled is returned by Archive when no archive is configured.
var ErrArchiveDisabled = errors.New("measurement archive is not configured")

// Fetcher is the part of the backend client the dashboard needs.
// *backend.Client satisfies it.
type Fetcher interface {
	Recent(ctx context.Context, id string) ([]models.Measurement, error)
	LatestGlobal(ctx context.Context) ([]models.Measurement, error)
	Detail(ctx context.Context, id string) (models.PenguinDetail, error)
	Search(ctx context.Context, q string) ([]models.SearchResult, error)
	AddMetadata(ctx context.Context, id string, field models.CustomField) error
	ImageURL(ref string) string
}

// Archiver stores live measurements for later analysis.
type Archiver interface {
	WriteMeasurement(ctx context.Context, m models.Measurement) error
	QueryHistory(ctx context.Context, penguinID string, limit int) ([]models.Measurement, error)
}

// Publisher relays live measurements to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, m models.Measurement) error
}

// LiveView is a copy of the dashboard state at one point in time.
type LiveView struct {
	Current          *models.Measurement   `json:"current,omitempty"`
	DisplayWeight    string                `json:"displayWeight"`
	DisplayTimestamp string                `json:"displayTimestamp"`
	ImageURL         string                `json:"imageUrl"`
	History          []models.Measurement  `json:"history"`
	HistoryMessage   string                `json:"historyMessage,omitempty"`
	Chart            *reconcile.ChartState `json:"chart,omitempty"`
	Average          string                `json:"average"`
	SearchResults    []models.SearchResult `json:"searchResults"`
	Error            string                `json:"error,omitempty"`
}

// Option configures a Dashboard.
type Option func(*Dashboard)

func WithArchiver(a Archiver) Option {
	return func(d *Dashboard) { d.archive = a }
}

func WithPublisher(p Publisher) Option {
	return func(d *Dashboard) { d.publish = p }
}

// Dashboard is safe for concurrent use by the stream listener and the HTTP
// handlers.
type Dashboard struct {
	fetch   Fetcher
	snaps   *cache.Snapshots
	chart   *reconcile.ChartView
	archive Archiver
	publish Publisher
	log     zerolog.Logger

	mu   sync.RWMutex
	view LiveView

	search searchState
	fields profileFields
}

func NewDashboard(fetch Fetcher, snaps *cache.Snapshots, log zerolog.Logger, opts ...Option) *Dashboard {
	d := &Dashboard{
		fetch: fetch,
		snaps: snaps,
		chart: &reconcile.ChartView{},
		log:   log,
		view:  LiveView{Average: reconcile.NoData},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Live returns a copy of the current view.
func (d *Dashboard) Live() LiveView {
	d.mu.RLock()
	v := d.view
	v.History = append([]models.Measurement(nil), d.view.History...)
	v.SearchResults = append([]models.SearchResult(nil), d.view.SearchResults...)
	if d.view.Current != nil {
		cur := *d.view.Current
		v.Current = &cur
	}
	d.mu.RUnlock()

	if s, ok := d.chart.State(); ok {
		v.Chart = &s
		v.Average = s.Average
	}
	return v
}

// Chart returns the current chart state, or false before anything was drawn.
func (d *Dashboard) Chart() (reconcile.ChartState, bool) {
	return d.chart.State()
}

// Seed renders the cached snapshot and history, then reloads the history of
// the cached penguin from the backend.
func (d *Dashboard) Seed(ctx context.Context) error {
	latest, haveLatest, err := d.snaps.Latest(ctx)
	if err != nil {
		d.log.Warn().Err(err).Msg("could not read cached live record")
	}
	if haveLatest {
		d.showLatest(latest)
	}

	hist, haveHist, err := d.snaps.History(ctx)
	if err != nil {
		d.log.Warn().Err(err).Msg("could not read cached weight history")
	}
	if haveHist {
		d.mu.Lock()
		d.view.History = hist
		d.view.HistoryMessage = ""
		d.mu.Unlock()
		d.chart.Update(hist)
	}

	if haveLatest && latest.ID != "" {
		return d.LoadPenguin(ctx, latest.ID)
	}
	return nil
}

// LoadGlobal draws the latest measurement of every penguin. An empty result
// leaves the chart as it is.
func (d *Dashboard) LoadGlobal(ctx context.Context) error {
	ms, err := d.fetch.LatestGlobal(ctx)
	if err != nil {
		d.log.Error().Err(err).Msg("failed to fetch global measurements")
		d.setError("Failed to fetch global measurements: " + err.Error())
		return fmt.Errorf("load global measurements: %w", err)
	}
	d.setError("")
	if len(ms) == 0 {
		d.log.Warn().Msg("no global weight data to display")
		return nil
	}
	d.chart.Update(ms)
	return nil
}

// LoadPenguin reloads the full weight history of one penguin. An empty id
// does nothing.
func (d *Dashboard) LoadPenguin(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	d.setHistoryMessage(HistoryLoading)

	hist, err := d.fetch.Recent(ctx, id)
	if err != nil {
		d.setHistoryMessage("Failed to load weight history: " + err.Error())
		d.log.Error().Err(err).Str("penguin_id", id).Msg("failed to load weight history")
		return fmt.Errorf("load weight history of %s: %w", id, err)
	}
	if len(hist) == 0 {
		d.setHistoryMessage(HistoryEmpty)
		return nil
	}
	for i := range hist {
		hist[i].ID = id
	}

	d.mu.Lock()
	d.view.History = hist
	d.view.HistoryMessage = ""
	d.mu.Unlock()

	if err := d.snaps.SaveHistory(ctx, hist); err != nil {
		d.log.Warn().Err(err).Msg("could not cache weight history")
	}
	d.chart.Update(hist)
	return nil
}

// HandleEvent applies one live update: the single-record display, the
// cached snapshot, archive and relay, then a full history reload.
func (d *Dashboard) HandleEvent(ctx context.Context, ev stream.Event) error {
	var m models.Measurement
	if err := json.Unmarshal([]byte(ev.Data), &m); err != nil {
		return fmt.Errorf("decode live update: %w", err)
	}

	d.showLatest(m)
	if err := d.snaps.SaveLatest(ctx, m); err != nil {
		d.log.Warn().Err(err).Msg("could not cache live record")
	}
	if d.archive != nil {
		if err := d.archive.WriteMeasurement(ctx, m); err != nil {
			d.log.Warn().Err(err).Str("penguin_id", m.ID).Msg("could not archive measurement")
		}
	}
	if d.publish != nil {
		if err := d.publish.Publish(ctx, m); err != nil {
			d.log.Warn().Err(err).Str("penguin_id", m.ID).Msg("could not relay measurement")
		}
	}
	return d.LoadPenguin(ctx, m.ID)
}

// Archive returns archived measurements of a penguin, newest first.
func (d *Dashboard) Archive(ctx context.Context, id string, limit int) ([]models.Measurement, error) {
	if d.archive == nil {
		return nil, ErrArchiveDisabled
	}
	if id == "" {
		return nil, errors.New("penguin id is required")
	}
	return d.archive.QueryHistory(ctx, id, limit)
}

func (d *Dashboard) showLatest(m models.Measurement) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.view.Current = &m
	d.view.DisplayWeight = m.Weight.String() + " kg"
	d.view.DisplayTimestamp = m.Timestamp()
	d.view.ImageURL = d.fetch.ImageURL(m.ImageURL)
}

func (d *Dashboard) setError(msg string) {
	d.mu.Lock()
	d.view.Error = msg
	d.mu.Unlock()
}

func (d *Dashboard) setHistoryMessage(msg string) {
	d.mu.Lock()
	d.view.HistoryMessage = msg
	d.mu.Unlock()
}

var _ Fetcher = (*backend.Client)(nil)
