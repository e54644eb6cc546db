package reconcile

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PenguinWatch.dashboard/internal/models"
)

func m(id, weight, date, clock string) models.Measurement {
	return models.Measurement{ID: id, Weight: models.ParseWeight(weight), Date: date, Time: clock}
}

func TestReconcile_ProjectionsStayAligned(t *testing.T) {
	s := Reconcile([]models.Measurement{
		m("PNG-2", "3.5", "2024-01-03", "09:00"),
		m("", "oops", "", ""),
		m("PNG-1", "4.0", "2024-01-01", "12:00"),
	})

	n := len(s.Points)
	require.Equal(t, 3, n)
	assert.Len(t, s.Labels(), n)
	assert.Len(t, s.Values(), n)
	assert.Len(t, s.SubjectIDs(), n)
	assert.Len(t, s.Colors(), n)
	for i, p := range s.Points {
		assert.Equal(t, p.Label, s.Labels()[i])
		assert.Equal(t, p.SubjectID, s.SubjectIDs()[i])
		assert.Equal(t, p.Label, p.Measurement.Timestamp())
	}
	assert.Equal(t, "Unknown date, Unknown time", s.Points[0].Label)
	assert.Equal(t, UnknownSubject, s.Points[0].SubjectID)
	assert.Nil(t, s.Points[0].Value)
}

func TestReconcile_ChronologicalAndStable(t *testing.T) {
	s := Reconcile([]models.Measurement{
		m("A", "1", "2024-01-02", ""),
		m("B", "2", "2024-01-01", ""),
	})
	assert.Equal(t, []string{"B", "A"}, s.SubjectIDs())

	s = Reconcile([]models.Measurement{
		m("first", "1", "2024-01-01", "10:00"),
		m("late", "1", "2024-01-01", "11:00"),
		m("second", "1", "2024-01-01", "10:00"),
	})
	assert.Equal(t, []string{"first", "second", "late"}, s.SubjectIDs())
}

func TestReconcile_HTTPDateKey(t *testing.T) {
	s := Reconcile([]models.Measurement{
		m("A", "1", "Wed, 03 Jan 2024 00:00:00 GMT", ""),
		m("B", "1", "2024-01-02", ""),
	})
	assert.Equal(t, []string{"B", "A"}, s.SubjectIDs())
}

func TestReconcile_AverageSkipsInvalid(t *testing.T) {
	s := Reconcile([]models.Measurement{m("A", "3.2", "", ""), m("A", "bad", "", ""), m("A", "3.6", "", "")})
	assert.Equal(t, "3.4 kg", s.Average)
	assert.Equal(t, 2, s.Valid())

	s = Reconcile([]models.Measurement{m("A", "bad", "", "")})
	assert.Equal(t, NoValidData, s.Average)
	assert.Equal(t, 0.0, s.YMin)
	assert.Equal(t, 10.0, s.YMax)
}

func TestReconcile_Bounds(t *testing.T) {
	s := Reconcile([]models.Measurement{m("A", "3.0", "", ""), m("A", "3.5", "", ""), m("A", "4.0", "", "")})
	assert.InDelta(t, 2.8, s.YMin, 1e-9)
	assert.InDelta(t, 4.2, s.YMax, 1e-9)

	s.Pad(0.5)
	assert.InDelta(t, 2.5, s.YMin, 1e-9)
	assert.InDelta(t, 4.5, s.YMax, 1e-9)

	empty := Reconcile([]models.Measurement{m("A", "bad", "", "")})
	empty.Pad(0.5)
	assert.Equal(t, 0.0, empty.YMin)
	assert.Equal(t, 10.0, empty.YMax)
}

func TestReconcile_Empty(t *testing.T) {
	var s ChartState
	assert.NotPanics(t, func() { s = Reconcile(nil) })
	assert.Empty(t, s.Points)
	assert.Equal(t, NoData, s.Average)
	assert.Equal(t, 0.0, s.YMin)
	assert.Equal(t, 10.0, s.YMax)
}

func TestReconcile_Idempotent(t *testing.T) {
	in := []models.Measurement{m("A", "3.1", "2024-02-01", "08:00"), m("B", "x", "2024-01-01", "")}
	assert.Equal(t, Reconcile(in), Reconcile(in))
}

func TestReconcile_ColorsByFirstSeen(t *testing.T) {
	var in []models.Measurement
	for i, id := range []string{"a", "b", "a", "c", "d", "e", "f", "g", "h"} {
		in = append(in, m(id, "1", "2024-01-01", string(rune('a'+i))))
	}
	s := Reconcile(in)
	colors := s.Colors()
	assert.Equal(t, Palette[0], colors[0])
	assert.Equal(t, Palette[1], colors[1])
	assert.Equal(t, Palette[0], colors[2], "same subject keeps its color")
	assert.Equal(t, Palette[0], colors[8], "eighth subject wraps around")
}

func TestTooltips(t *testing.T) {
	s := Reconcile([]models.Measurement{m("PNG-1", "4.25", "2024-01-01", "10:00"), m("PNG-1", "bad", "2024-01-02", "")})
	assert.Equal(t, []string{"Penguin ID: PNG-1", "Weight: 4.25 kg"}, s.Tooltip(0))
	assert.Equal(t, []string{"No valid weight data available"}, s.Tooltip(1))
	assert.Equal(t, []string{"No valid weight data available"}, s.Tooltip(7))

	assert.Equal(t, "Jan 5, 2024, 10:00:00", TooltipTitle("2024-01-05, 10:00:00"))
	assert.Equal(t, "Unknown date, Unknown time", TooltipTitle("Unknown date, Unknown time"))
	assert.Equal(t, "no comma", TooltipTitle("no comma"))
}

func TestChartView(t *testing.T) {
	var v ChartView
	_, ok := v.State()
	assert.False(t, ok)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v.Update([]models.Measurement{m("A", "3", "2024-01-01", "")})
			v.State()
		}()
	}
	wg.Wait()

	s, ok := v.State()
	require.True(t, ok)
	require.Len(t, s.Points, 1)
	*s.Points[0].Value = 99
	again, _ := v.State()
	assert.Equal(t, 3.0, *again.Points[0].Value, "State returns a copy")
}
