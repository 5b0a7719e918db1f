package storage

import (
	"encoding/json"
	"io"
)

type ExportData struct {
	RunMetadata
	Names  []string    `json:"names"`
	Times  []float64   `json:"times"`
	Values [][]float64 `json:"values"`
}

// ExportJSON writes a stored run with its series as one JSON document.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	series, err := s.LoadSeries(runID)
	if err != nil {
		return err
	}
	data := ExportData{
		RunMetadata: *meta,
		Names:       series.Names,
		Times:       series.Times,
		Values:      series.Rows,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
