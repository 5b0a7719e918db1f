package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/san-kum/flowsim/internal/balance"
)

const (
	KindRun     = "run"
	KindBalance = "balance"

	metadataFile = "metadata.json"
	seriesFile   = "series.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Kind      string             `json:"kind"`
	Scenario  string             `json:"scenario"`
	Timestamp time.Time          `json:"timestamp"`
	Dt        float64            `json:"dt"`
	Steps     int                `json:"steps"`
	Time      float64            `json:"time"`
	Ranks     int                `json:"ranks"`
	Order     int                `json:"order"`
	Grid      [2]int             `json:"grid"`
	Params    map[string]float64 `json:"params,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Balance   *BalanceSummary    `json:"balance,omitempty"`
}

type BalanceSummary struct {
	RampType  string  `json:"ramp_type"`
	Passes    int     `json:"passes"`
	Error     float64 `json:"error"`
	Stop      string  `json:"stop"`
	Converged bool    `json:"converged"`
}

// Series is a table of diagnostics sampled over time.
type Series struct {
	Names []string
	Times []float64
	Rows  [][]float64
}

func NewSeries(names ...string) *Series {
	return &Series{Names: names}
}

// Append adds one sample. Missing values are stored as zero.
func (s *Series) Append(t float64, values ...float64) {
	row := make([]float64, len(s.Names))
	copy(row, values)
	s.Times = append(s.Times, t)
	s.Rows = append(s.Rows, row)
}

// Column returns the samples of the named diagnostic, nil if unknown.
func (s *Series) Column(name string) []float64 {
	i := slices.Index(s.Names, name)
	if i < 0 {
		return nil
	}
	out := make([]float64, len(s.Rows))
	for r, row := range s.Rows {
		out[r] = row[i]
	}
	return out
}

func (s *Series) Len() int { return len(s.Times) }

// Save writes the metadata and the series of a finished run and returns
// its ID.
func (s *Store) Save(meta RunMetadata, series *Series) (string, error) {
	if meta.Kind == "" {
		meta.Kind = KindRun
	}
	meta.Timestamp = time.Now()
	meta.ID = fmt.Sprintf("%s_%s_%d", meta.Kind, meta.Scenario, meta.Timestamp.UnixNano())
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if series == nil {
		series = NewSeries()
	}
	if err := writeSeries(filepath.Join(runDir, seriesFile), series); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// SaveBalance records a balancing call with its per-iteration errors.
func (s *Store) SaveBalance(meta RunMetadata, rampType string, res *balance.Result) (string, error) {
	meta.Kind = KindBalance
	meta.Balance = &BalanceSummary{
		RampType:  rampType,
		Passes:    res.Passes,
		Error:     res.Error,
		Stop:      res.Stop.String(),
		Converged: res.Converged,
	}
	series := NewSeries("error")
	for _, it := range res.Iterations {
		series.Append(float64(it.Index), it.Error)
	}
	return s.Save(meta, series)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSeries(path string, series *Series) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"time"}, series.Names...)); err != nil {
		return err
	}
	for i, t := range series.Times {
		row := []string{strconv.FormatFloat(t, 'g', -1, 64)}
		for _, v := range series.Rows[i] {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns the stored runs, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	slices.SortFunc(runs, func(a, b RunMetadata) int { return a.Timestamp.Compare(b.Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadSeries(runID string) (*Series, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, seriesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: missing header", seriesFile)
	}

	series := NewSeries(records[0][1:]...)
	for i, record := range records[1:] {
		values := make([]float64, len(record))
		for j, field := range record {
			if values[j], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("%s line %d: %w", seriesFile, i+2, err)
			}
		}
		series.Append(values[0], values[1:]...)
	}
	return series, nil
}
