package reconcile

import (
	"sync"

	"PenguinWatch.dashboard/internal/models"
)

// ChartView holds the chart state shared between the live update listener
// and the HTTP handlers. The zero value is ready to use and holds no chart
// until the first Update.
type ChartView struct {
	mu      sync.RWMutex
	state   ChartState
	created bool
}

// Update replaces the whole chart state with the reconciled measurements.
func (v *ChartView) Update(ms []models.Measurement) ChartState {
	s := Reconcile(ms)
	v.mu.Lock()
	v.state = s
	v.created = true
	v.mu.Unlock()
	return s.clone()
}

// State returns a copy of the current chart, or false before the first Update.
func (v *ChartView) State() (ChartState, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.created {
		return ChartState{}, false
	}
	return v.state.clone(), true
}

func (s ChartState) clone() ChartState {
	out := s
	out.Points = make([]Point, len(s.Points))
	for i, p := range s.Points {
		if p.Value != nil {
			v := *p.Value
			p.Value = &v
		}
		out.Points[i] = p
	}
	return out
}
