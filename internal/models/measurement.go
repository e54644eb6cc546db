package models

import (
	"encoding/json"
)

// Placeholders used wherever a measurement lacks a date or time.
const (
	UnknownDate = "Unknown date"
	UnknownTime = "Unknown time"
)

// Measurement is one weight reading of a penguin. Measurements are immutable
// once received.
type Measurement struct {
	ID       string      `json:"id,omitempty"`
	Weight   WeightValue `json:"weight"`
	Date     string      `json:"date,omitempty"`
	Time     string      `json:"time,omitempty"`
	ImageURL string      `json:"imageUrl,omitempty"`
}

// measurementWire covers every spelling the backend uses for the same record.
type measurementWire struct {
	ID        string      `json:"id"`
	PenguinID string      `json:"penguinId"`
	Weight    WeightValue `json:"weight"`
	Date      string      `json:"date"`
	Time      string      `json:"time"`
	ImageURL  string      `json:"imageUrl"`
	ImageRef  string      `json:"image_url"`
}

// UnmarshalJSON normalizes penguinId into ID and image_url into ImageURL.
func (m *Measurement) UnmarshalJSON(data []byte) error {
	var w measurementWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	id := w.ID
	if id == "" {
		id = w.PenguinID
	}
	image := w.ImageURL
	if image == "" {
		image = w.ImageRef
	}
	*m = Measurement{ID: id, Weight: w.Weight, Date: w.Date, Time: w.Time, ImageURL: image}
	return nil
}

// DateOrUnknown returns the date or its placeholder.
func (m Measurement) DateOrUnknown() string {
	if m.Date == "" {
		return UnknownDate
	}
	return m.Date
}

// TimeOrUnknown returns the time or its placeholder.
func (m Measurement) TimeOrUnknown() string {
	if m.Time == "" {
		return UnknownTime
	}
	return m.Time
}

// Timestamp renders "{date}, {time}" with placeholders.
func (m Measurement) Timestamp() string {
	return m.DateOrUnknown() + ", " + m.TimeOrUnknown()
}

// WithID returns a copy carrying id when the measurement has none.
func (m Measurement) WithID(id string) Measurement {
	if m.ID == "" {
		m.ID = id
	}
	return m
}
