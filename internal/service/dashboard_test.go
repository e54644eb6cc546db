package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PenguinWatch.dashboard/internal/backend"
	"PenguinWatch.dashboard/internal/cache"
	"PenguinWatch.dashboard/internal/models"
	"PenguinWatch.dashboard/internal/stream"
)

type fakeFetcher struct {
	mu       sync.Mutex
	recent   map[string][]models.Measurement
	global   []models.Measurement
	detail   map[string]models.PenguinDetail
	err      error
	searchFn func(ctx context.Context, q string) ([]models.SearchResult, error)
	added    []models.CustomField
	calls    []string
}

func (f *fakeFetcher) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeFetcher) Recent(_ context.Context, id string) ([]models.Measurement, error) {
	f.record("recent:" + id)
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Measurement(nil), f.recent[id]...), nil
}

func (f *fakeFetcher) LatestGlobal(context.Context) ([]models.Measurement, error) {
	f.record("global")
	return f.global, f.err
}

func (f *fakeFetcher) Detail(_ context.Context, id string) (models.PenguinDetail, error) {
	if f.err != nil {
		return models.PenguinDetail{}, f.err
	}
	d, ok := f.detail[id]
	if !ok {
		return models.PenguinDetail{}, backend.ErrNoData
	}
	return d, nil
}

func (f *fakeFetcher) Search(ctx context.Context, q string) ([]models.SearchResult, error) {
	return f.searchFn(ctx, q)
}

func (f *fakeFetcher) AddMetadata(_ context.Context, _ string, field models.CustomField) error {
	if f.err != nil {
		return f.err
	}
	f.added = append(f.added, field)
	return nil
}

func (f *fakeFetcher) ImageURL(ref string) string {
	if ref == "" {
		return backend.PlaceholderImage
	}
	return "http://backend" + ref
}

type fakeArchive struct {
	written []models.Measurement
}

func (a *fakeArchive) WriteMeasurement(_ context.Context, m models.Measurement) error {
	a.written = append(a.written, m)
	return nil
}

func (a *fakeArchive) QueryHistory(_ context.Context, id string, limit int) ([]models.Measurement, error) {
	return a.written, nil
}

type fakePublisher struct {
	published []models.Measurement
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, m models.Measurement) error {
	p.published = append(p.published, m)
	return p.err
}

func measurement(date, clock, weight string) models.Measurement {
	return models.Measurement{Date: date, Time: clock, Weight: models.ParseWeight(weight)}
}

func newDashboard(t *testing.T, f *fakeFetcher, opts ...Option) (*Dashboard, *cache.Snapshots, cache.Store) {
	t.Helper()
	store := cache.NewMemory()
	snaps := cache.NewSnapshots(store, zerolog.Nop(), nil)
	return NewDashboard(f, snaps, zerolog.Nop(), opts...), snaps, store
}

func TestDashboard_LoadPenguin(t *testing.T) {
	f := &fakeFetcher{recent: map[string][]models.Measurement{
		"PNG-1": {measurement("2024-01-02", "08:00", "3.6"), measurement("2024-01-01", "08:00", "3.2")},
	}}
	d, snaps, _ := newDashboard(t, f)

	require.NoError(t, d.LoadPenguin(context.Background(), "PNG-1"))
	v := d.Live()
	assert.Empty(t, v.HistoryMessage)
	require.Len(t, v.History, 2)
	assert.Equal(t, "PNG-1", v.History[0].ID)
	require.NotNil(t, v.Chart)
	assert.Equal(t, []string{"2024-01-01, 08:00", "2024-01-02, 08:00"}, v.Chart.Labels())
	assert.Equal(t, "3.4 kg", v.Average)

	cached, ok, err := snaps.History(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, cached, 2)
}

func TestDashboard_LoadPenguinEmptyAndFailure(t *testing.T) {
	f := &fakeFetcher{recent: map[string][]models.Measurement{}}
	d, _, _ := newDashboard(t, f)

	require.NoError(t, d.LoadPenguin(context.Background(), ""))
	assert.Empty(t, f.calls, "empty id does nothing")

	require.NoError(t, d.LoadPenguin(context.Background(), "PNG-2"))
	assert.Equal(t, HistoryEmpty, d.Live().HistoryMessage)
	_, drawn := d.Chart()
	assert.False(t, drawn)

	f.err = errors.New("API error: 500")
	err := d.LoadPenguin(context.Background(), "PNG-2")
	require.Error(t, err)
	assert.Equal(t, "Failed to load weight history: API error: 500", d.Live().HistoryMessage)
}

func TestDashboard_LoadGlobal(t *testing.T) {
	f := &fakeFetcher{}
	d, _, _ := newDashboard(t, f)

	require.NoError(t, d.LoadGlobal(context.Background()))
	_, drawn := d.Chart()
	assert.False(t, drawn, "empty result leaves the chart untouched")

	f.global = []models.Measurement{
		{ID: "PNG-1", Date: "2024-01-01", Weight: models.NewWeight(3.0)},
		{ID: "PNG-2", Date: "2024-01-02", Weight: models.NewWeight(4.0)},
	}
	require.NoError(t, d.LoadGlobal(context.Background()))
	s, drawn := d.Chart()
	require.True(t, drawn)
	assert.Equal(t, []string{"PNG-1", "PNG-2"}, s.SubjectIDs())

	f.err = errors.New("down")
	require.Error(t, d.LoadGlobal(context.Background()))
	assert.Contains(t, d.Live().Error, "down")
	s2, _ := d.Chart()
	assert.Equal(t, s, s2)
}

func TestDashboard_HandleEvent(t *testing.T) {
	f := &fakeFetcher{recent: map[string][]models.Measurement{
		"PNG-7": {measurement("2024-03-01", "10:00", "4.1")},
	}}
	arch := &fakeArchive{}
	pub := &fakePublisher{err: errors.New("broker down")}
	d, snaps, _ := newDashboard(t, f, WithArchiver(arch), WithPublisher(pub))

	ev := stream.Event{Data: `{"penguinId":"PNG-7","weight":4.1,"date":"2024-03-01","image_url":"/images/7.jpg"}`}
	require.NoError(t, d.HandleEvent(context.Background(), ev))

	v := d.Live()
	require.NotNil(t, v.Current)
	assert.Equal(t, "PNG-7", v.Current.ID)
	assert.Equal(t, "4.1 kg", v.DisplayWeight)
	assert.Equal(t, "2024-03-01, Unknown time", v.DisplayTimestamp)
	assert.Equal(t, "http://backend/images/7.jpg", v.ImageURL)
	assert.Len(t, v.History, 1)

	latest, ok, err := snaps.Latest(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "PNG-7", latest.ID)

	assert.Len(t, arch.written, 1)
	assert.Len(t, pub.published, 1, "relay failure does not stop the update")
	assert.Contains(t, f.calls, "recent:PNG-7")
}

func TestDashboard_HandleEventRejectsBadJSON(t *testing.T) {
	d, _, _ := newDashboard(t, &fakeFetcher{})
	require.Error(t, d.HandleEvent(context.Background(), stream.Event{Data: "{not json"}))
	assert.Nil(t, d.Live().Current)
}

func TestDashboard_SeedFromCache(t *testing.T) {
	f := &fakeFetcher{recent: map[string][]models.Measurement{
		"PNG-3": {measurement("2024-02-01", "09:00", "3.9"), measurement("2024-02-02", "09:00", "4.0")},
	}}
	d, snaps, _ := newDashboard(t, f)
	ctx := context.Background()
	require.NoError(t, snaps.SaveLatest(ctx, models.Measurement{ID: "PNG-3", Weight: models.NewWeight(4.0)}))
	require.NoError(t, snaps.SaveHistory(ctx, []models.Measurement{measurement("2024-02-01", "09:00", "3.9")}))

	require.NoError(t, d.Seed(ctx))
	v := d.Live()
	assert.Equal(t, "4 kg", v.DisplayWeight)
	assert.Len(t, v.History, 2, "network history replaces the cached one")
	assert.Equal(t, []string{"recent:PNG-3"}, f.calls)
}

func TestDashboard_SeedCorruptCacheFallsBack(t *testing.T) {
	f := &fakeFetcher{}
	d, snaps, store := newDashboard(t, f)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, cache.KeyLatest, []byte("{broken")))

	require.NoError(t, d.Seed(ctx))
	assert.Nil(t, d.Live().Current)
	_, ok, err := snaps.Latest(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = store.Get(ctx, cache.KeyLatest)
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestDashboard_Archive(t *testing.T) {
	d, _, _ := newDashboard(t, &fakeFetcher{})
	_, err := d.Archive(context.Background(), "PNG-1", 10)
	assert.ErrorIs(t, err, ErrArchiveDisabled)

	arch := &fakeArchive{written: []models.Measurement{{ID: "PNG-1"}}}
	d, _, _ = newDashboard(t, &fakeFetcher{}, WithArchiver(arch))
	got, err := d.Archive(context.Background(), "PNG-1", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDashboard_SearchSequencing(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	f := &fakeFetcher{searchFn: func(ctx context.Context, q string) ([]models.SearchResult, error) {
		if q == "p" {
			close(started)
			select {
			case <-release:
			case <-ctx.Done():
			}
			return []models.SearchResult{{ID: "stale"}}, nil
		}
		return []models.SearchResult{{ID: "PNG-12"}}, nil
	}}
	d, _, _ := newDashboard(t, f)

	errc := make(chan error, 1)
	go func() {
		_, err := d.Search(context.Background(), "p")
		errc <- err
	}()
	<-started

	got, err := d.Search(context.Background(), "png-1")
	require.NoError(t, err)
	assert.Equal(t, []models.SearchResult{{ID: "PNG-12"}}, got)
	close(release)

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("stale search never returned")
	}
	assert.Equal(t, []models.SearchResult{{ID: "PNG-12"}}, d.Live().SearchResults)

	got, err = d.Search(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, d.Live().SearchResults)
}

func TestDashboard_SearchIsSequencedPerClient(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	f := &fakeFetcher{searchFn: func(ctx context.Context, q string) ([]models.SearchResult, error) {
		if q == "slow" {
			close(started)
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return []models.SearchResult{{ID: "PNG-7"}}, nil
		}
		return []models.SearchResult{{ID: "PNG-12"}}, nil
	}}
	d, _, _ := newDashboard(t, f)

	type result struct {
		got []models.SearchResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		got, err := d.SearchFor(context.Background(), "alice", "slow")
		done <- result{got, err}
	}()
	<-started

	got, err := d.SearchFor(context.Background(), "bob", "png-1")
	require.NoError(t, err)
	assert.Equal(t, []models.SearchResult{{ID: "PNG-12"}}, got)
	close(release)

	select {
	case r := <-done:
		require.NoError(t, r.err, "another client's search must not supersede this one")
		assert.Equal(t, []models.SearchResult{{ID: "PNG-7"}}, r.got)
	case <-time.After(2 * time.Second):
		t.Fatal("search never returned")
	}
	assert.Empty(t, d.search.clients, "finished clients are forgotten")
}

func TestDashboard_Profile(t *testing.T) {
	f := &fakeFetcher{detail: map[string]models.PenguinDetail{
		"PNG-5": {
			Metadata: []models.CustomField{
				{FieldName: "sex", FieldValue: "female"},
				{FieldName: "colony", FieldValue: "north"},
				{FieldName: "sex", FieldValue: "male"},
			},
			Measurements: []models.Measurement{
				{Weight: models.NewWeight(4.3), Date: "2024-03-02", Time: "10:00", ImageURL: "/img/5.jpg"},
				{Weight: models.NewWeight(4.1), Date: "2024-03-01", Time: "10:00"},
			},
		},
	}}
	d, _, _ := newDashboard(t, f)

	v, err := d.Profile(context.Background(), "PNG-5")
	require.NoError(t, err)
	assert.Equal(t, "4.3 kg", v.CurrentWeight)
	assert.Equal(t, "2024-03-02, 10:00", v.LastSeen)
	assert.Equal(t, "http://backend/img/5.jpg", v.ImageURL)
	assert.Equal(t, "Active", v.StatusLabel)
	assert.Equal(t, "4.20 kg", v.Average)
	assert.Equal(t, []FieldView{
		{Name: "sex", Label: "Sex", Value: "male"},
		{Name: "colony", Label: "Colony", Value: "north"},
	}, v.Fields)
	assert.Equal(t, []string{"2024-03-01, 10:00", "2024-03-02, 10:00"}, v.Chart.Labels())
	assert.InDelta(t, 3.6, v.Chart.YMin, 1e-9, "profile chart pads by half a kilo")
	assert.InDelta(t, 4.8, v.Chart.YMax, 1e-9)

	fields, err := d.AddField(context.Background(), "PNG-5", "tag", "blue")
	require.NoError(t, err)
	assert.Len(t, fields, 3)
	assert.Equal(t, "Tag", fields[2].Label)
}

func TestDashboard_ProfileErrors(t *testing.T) {
	d, _, _ := newDashboard(t, &fakeFetcher{detail: map[string]models.PenguinDetail{}})

	_, err := d.Profile(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoPenguinID)

	_, err = d.Profile(context.Background(), "PNG-9")
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrNoData)
	assert.Equal(t, "Error loading data for penguin PNG-9: no measurement data found", err.Error())

	_, err = d.AddField(context.Background(), "PNG-9", "sex", "")
	assert.ErrorIs(t, err, ErrFieldRequired)
}
