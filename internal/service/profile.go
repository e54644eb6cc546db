package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"PenguinWatch.dashboard/internal/backend"
	"PenguinWatch.dashboard/internal/models"
	"PenguinWatch.dashboard/internal/reconcile"
)

var (
	ErrNoPenguinID   = errors.New("No penguin ID provided")
	ErrFieldRequired = errors.New("field name and value are required")
)

// ProfileError is the message shown when a profile cannot be loaded.
type ProfileError struct {
	ID  string
	Err error
}

func (e *ProfileError) Error() string {
	return fmt.Sprintf("Error loading data for penguin %s: %v", e.ID, e.Err)
}

func (e *ProfileError) Unwrap() error { return e.Err }

// FieldView is one custom field as displayed.
type FieldView struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// ProfileView is the penguin details page.
type ProfileView struct {
	ID            string               `json:"id"`
	CurrentWeight string               `json:"currentWeight"`
	LastSeen      string               `json:"lastSeen"`
	ImageURL      string               `json:"imageUrl"`
	Status        string               `json:"status"`
	StatusLabel   string               `json:"statusLabel"`
	Fields        []FieldView          `json:"fields"`
	Chart         reconcile.ChartState `json:"chart"`
	Average       string               `json:"average"`
}

// fieldSet keeps custom fields in first-seen order; a repeated name
// overwrites the value in place.
type fieldSet struct {
	order  []string
	values map[string]string
}

func newFieldSet(fields []models.CustomField) *fieldSet {
	fs := &fieldSet{values: map[string]string{}}
	for _, f := range fields {
		fs.set(f.FieldName, f.FieldValue)
	}
	return fs
}

func (fs *fieldSet) set(name, value string) {
	if _, ok := fs.values[name]; !ok {
		fs.order = append(fs.order, name)
	}
	fs.values[name] = value
}

func (fs *fieldSet) views() []FieldView {
	out := make([]FieldView, 0, len(fs.order))
	for _, name := range fs.order {
		out = append(out, FieldView{Name: name, Label: capitalize(name), Value: fs.values[name]})
	}
	return out
}

type profileFields struct {
	mu   sync.Mutex
	byID map[string]*fieldSet
}

func (p *profileFields) replace(id string, fields []models.CustomField) []FieldView {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.byID == nil {
		p.byID = map[string]*fieldSet{}
	}
	fs := newFieldSet(fields)
	p.byID[id] = fs
	return fs.views()
}

func (p *profileFields) add(id, name, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.byID == nil {
		p.byID = map[string]*fieldSet{}
	}
	fs, ok := p.byID[id]
	if !ok {
		fs = newFieldSet(nil)
		p.byID[id] = fs
	}
	fs.set(name, value)
}

func (p *profileFields) get(id string) []FieldView {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fs, ok := p.byID[id]; ok {
		return fs.views()
	}
	return nil
}

// Profile loads the details page of one penguin: the card built from its
// first measurement, the custom fields, the chart and a two-decimal average.
func (d *Dashboard) Profile(ctx context.Context, id string) (ProfileView, error) {
	if id == "" {
		return ProfileView{}, ErrNoPenguinID
	}
	detail, err := d.fetch.Detail(ctx, id)
	if err != nil {
		d.log.Error().Err(err).Str("penguin_id", id).Msg("failed to load penguin profile")
		return ProfileView{}, &ProfileError{ID: id, Err: err}
	}

	if len(detail.Measurements) == 0 {
		return ProfileView{}, &ProfileError{ID: id, Err: backend.ErrNoData}
	}
	ms := make([]models.Measurement, len(detail.Measurements))
	for i, m := range detail.Measurements {
		ms[i] = m.WithID(id)
	}
	first := ms[0]

	v := ProfileView{
		ID:            id,
		CurrentWeight: first.Weight.String() + " kg",
		LastSeen:      first.Date + ", " + first.Time,
		ImageURL:      d.fetch.ImageURL(first.ImageURL),
		Status:        "active",
		StatusLabel:   "Active",
		Fields:        d.fields.replace(id, detail.Metadata),
		Chart:         reconcile.Reconcile(ms),
		Average:       reconcile.NoData,
	}
	v.Chart.Pad(profilePadding)
	if mean, ok := reconcile.Mean(ms); ok {
		v.Average = fmt.Sprintf("%.2f kg", mean)
	}
	return v, nil
}

// profilePadding gives the single penguin chart a wider margin than the
// colony charts.
const profilePadding = 0.5

// AddField stores a custom field on the backend and adds it to the fields
// shown for the penguin.
func (d *Dashboard) AddField(ctx context.Context, id, name, value string) ([]FieldView, error) {
	if id == "" {
		return nil, ErrNoPenguinID
	}
	if strings.TrimSpace(name) == "" || strings.TrimSpace(value) == "" {
		return nil, ErrFieldRequired
	}
	if err := d.fetch.AddMetadata(ctx, id, models.CustomField{FieldName: name, FieldValue: value}); err != nil {
		d.log.Error().Err(err).Str("penguin_id", id).Str("field", name).Msg("failed to save custom field")
		return nil, fmt.Errorf("save field %s: %w", name, err)
	}
	d.fields.add(id, name, value)
	return d.fields.get(id), nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
