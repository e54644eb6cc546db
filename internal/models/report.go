package models

import "strings"

// StatusFilter selects the weight category the report table is fetched for.
type StatusFilter string

const (
	FilterAll         StatusFilter = "id"
	FilterUnderweight StatusFilter = "underweight"
	FilterOverweight  StatusFilter = "overweight"
	FilterNormal      StatusFilter = "normal"
)

// ParseStatusFilter maps anything that is not a known category to FilterAll.
func ParseStatusFilter(s string) StatusFilter {
	switch f := StatusFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case FilterUnderweight, FilterOverweight, FilterNormal:
		return f
	default:
		return FilterAll
	}
}

// ReportRow is one penguin of the report table: its latest measurement plus
// aggregates computed by the backend.
type ReportRow struct {
	PenguinID     string      `json:"penguin_id"`
	LastSeen      string      `json:"last_seen"`
	Time          string      `json:"time,omitempty"`
	CurrentWeight WeightValue `json:"current_weight"`
	AvgWeight7d   WeightValue `json:"avg_weight_7d"`
	Status        string      `json:"status"`
	Comments      string      `json:"comments,omitempty"`
}

// PenguinWeight names a penguin together with one weight.
type PenguinWeight struct {
	ID     string      `json:"id,omitempty"`
	Weight WeightValue `json:"weight"`
}

// ReportSummary holds the aggregate figures shown above the report table.
type ReportSummary struct {
	TotalPenguins int           `json:"total_penguins"`
	AvgWeight7d   WeightValue   `json:"avg_weight_7d"`
	Heaviest      PenguinWeight `json:"heaviest"`
	Lightest      PenguinWeight `json:"lightest"`
}
