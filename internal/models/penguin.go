package models

import (
	"bytes"
	"encoding/json"
)

// CustomField is a free-form name/value pair attached to a penguin.
type CustomField struct {
	FieldName  string `json:"field_name"`
	FieldValue string `json:"field_value"`
}

// PenguinDetail is the payload of the per-penguin detail endpoint.
type PenguinDetail struct {
	Metadata     []CustomField `json:"metadata"`
	Measurements []Measurement `json:"measurements"`
}

// UnmarshalJSON accepts the bare empty array the backend sends when a penguin
// has no measurements.
func (d *PenguinDetail) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		*d = PenguinDetail{}
		return nil
	}
	type plain PenguinDetail
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*d = PenguinDetail(p)
	return nil
}

// SearchResult is one hit of the id search.
type SearchResult struct {
	ID string `json:"id"`
}

// IngestMetadata is the JSON document the field station posts with an image.
type IngestMetadata struct {
	Weight float64 `json:"weight"`
	Date   string  `json:"date"`
	Time   string  `json:"time"`
}

// IngestResponse is the backend acknowledgement of an ingest.
type IngestResponse struct {
	Message string `json:"message"`
	Date    string `json:"date"`
	Time    string `json:"time"`
}
