// Package reconcile turns an unordered batch of measurements into the single
// ordered point sequence the weight chart is drawn from.
package reconcile

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"PenguinWatch.dashboard/internal/models"
)

// Palette colors subjects by first appearance, cycling when exhausted.
var Palette = []string{"#26a69a", "#ef5350", "#7e57c2", "#66bb6a", "#ffa726", "#42a5f5", "#ec407a"}

// DefaultColor is the base line color.
const DefaultColor = "#26a69a"

// UnknownSubject labels points whose measurement carries no id.
const UnknownSubject = "Unknown"

const (
	NoData      = "No data"
	NoValidData = "No valid data"
)

// Point is one plotted measurement. Value is nil when the weight could not
// be parsed; the point keeps its slot in the sequence.
type Point struct {
	Label       string             `json:"label"`
	Value       *float64           `json:"value"`
	SubjectID   string             `json:"subjectId"`
	Color       string             `json:"color"`
	Measurement models.Measurement `json:"measurement"`
}

// ChartState is everything needed to draw the chart.
type ChartState struct {
	Points  []Point `json:"points"`
	YMin    float64 `json:"yMin"`
	YMax    float64 `json:"yMax"`
	Average string  `json:"average"`

	// valid weight range, kept for Pad
	lo, hi float64
	valid  bool
}

// Reconcile sorts measurements chronologically and derives the chart state.
// The input slice is not modified.
func Reconcile(ms []models.Measurement) ChartState {
	sorted := make([]models.Measurement, len(ms))
	copy(sorted, ms)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := sortDate(sorted[i].Date), sortDate(sorted[j].Date)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return strings.Compare(sorted[i].Time, sorted[j].Time) < 0
	})

	colors := map[string]string{}
	state := ChartState{Points: make([]Point, 0, len(sorted))}
	var sum, lo, hi float64
	valid := 0
	for _, m := range sorted {
		id := m.ID
		if id == "" {
			id = UnknownSubject
		}
		color, ok := colors[id]
		if !ok {
			color = Palette[len(colors)%len(Palette)]
			colors[id] = color
		}
		p := Point{Label: m.Timestamp(), SubjectID: id, Color: color, Measurement: m}
		if v, ok := m.Weight.Float(); ok {
			p.Value = &v
			if valid == 0 || v < lo {
				lo = v
			}
			if valid == 0 || v > hi {
				hi = v
			}
			sum += v
			valid++
		}
		state.Points = append(state.Points, p)
	}

	state.lo, state.hi, state.valid = lo, hi, valid > 0
	state.Pad(DefaultPadding)
	switch {
	case len(sorted) == 0:
		state.Average = NoData
	case valid == 0:
		state.Average = NoValidData
	default:
		state.Average = fmt.Sprintf("%.1f kg", sum/float64(valid))
	}
	return state
}

var dateLayouts = []string{"2006-01-02", time.RFC1123, time.RFC1123Z, time.RFC3339}

// sortDate parses the date key; missing or unparseable dates sort as the epoch.
func sortDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Unix(0, 0).UTC()
}

// Labels returns the x axis labels.
func (s ChartState) Labels() []string {
	out := make([]string, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Label
	}
	return out
}

// Values returns the weights with nil for unparseable points.
func (s ChartState) Values() []*float64 {
	out := make([]*float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

func (s ChartState) SubjectIDs() []string {
	out := make([]string, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.SubjectID
	}
	return out
}

func (s ChartState) Colors() []string {
	out := make([]string, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Color
	}
	return out
}

// Valid reports how many points carry a weight.
func (s ChartState) Valid() int {
	n := 0
	for _, p := range s.Points {
		if p.Value != nil {
			n++
		}
	}
	return n
}

// Tooltip returns the body lines shown when hovering point i.
func (s ChartState) Tooltip(i int) []string {
	if i < 0 || i >= len(s.Points) || s.Points[i].Value == nil {
		return []string{"No valid weight data available"}
	}
	p := s.Points[i]
	return []string{
		"Penguin ID: " + p.SubjectID,
		"Weight: " + models.FormatWeight(*p.Value) + " kg",
	}
}

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// TooltipTitle renders a "{date}, {time}" label with a readable date.
// Labels without a comma are returned unchanged.
func TooltipTitle(label string) string {
	date, clock, ok := strings.Cut(label, ",")
	if !ok {
		return label
	}
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if isoDate.MatchString(date) {
		if t, err := time.Parse("2006-01-02", date); err == nil {
			date = t.Format("Jan 2, 2006")
		}
	}
	return date + ", " + clock
}

// Mean averages the parseable weights of ms.
func Mean(ms []models.Measurement) (float64, bool) {
	var sum float64
	n := 0
	for _, m := range ms {
		if v, ok := m.Weight.Float(); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// DefaultPadding is the y-axis margin around the valid weights.
const DefaultPadding = 0.2

// Pad sets the y-axis bounds to the valid weight range widened by pad on
// both sides. Without valid weights the bounds stay at 0 to 10.
func (s *ChartState) Pad(pad float64) {
	if !s.valid {
		s.YMin, s.YMax = 0, 10
		return
	}
	s.YMin, s.YMax = s.lo-pad, s.hi+pad
}
