package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PreviewRows is how many rows a dataset preview shows.
const PreviewRows = 5

// IngestCSV parses an uploaded CSV file into a Dataset. The first record is
// the header; blank lines are skipped. A file whose name does not end in
// .csv, a record whose field count differs from the header, or a file
// larger than maxSize bytes is rejected. maxSize <= 0 disables the limit.
func IngestCSV(filename string, r io.Reader, maxSize int64) (*Dataset, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return nil, fmt.Errorf("%s: %w", filename, ErrNotCSV)
	}

	cr := csv.NewReader(wrapUpload(r, maxSize))
	cr.FieldsPerRecord = 0
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: %w", filename, ErrEmptyFile)
	}
	if err != nil {
		return nil, ingestError(filename, err)
	}

	names := headerNames(header)
	rows := []Row{}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ingestError(filename, err)
		}
		row := make(Row, len(names))
		for i, name := range names {
			row[name] = rec[i]
		}
		rows = append(rows, row)
	}

	cols := make([]Column, len(names))
	for i, name := range names {
		var sample string
		if len(rows) > 0 {
			sample = rows[0][name]
		}
		cols[i] = Column{Name: name, Type: InferColumnType(sample), Sample: sample}
	}

	return &Dataset{
		ID:      uuid.NewString(),
		Name:    filename,
		Columns: cols,
		Rows:    rows,
		Statistics: Statistics{
			ColumnCount: len(cols),
			RowCount:    len(rows),
			DataType:    ClassifyColumns(cols),
			Format:      "csv",
		},
		UploadedAt: time.Now().UTC(),
	}, nil
}

func ingestError(filename string, err error) error {
	if errors.Is(err, ErrFileTooLarge) {
		return fmt.Errorf("%s: %w", filename, ErrFileTooLarge)
	}
	return fmt.Errorf("%s: %w: %v", filename, ErrMalformedCSV, err)
}

// headerNames trims header cells and makes them unique. Blank headers become
// column_N and repeats get a _N suffix.
func headerNames(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		base := name
		for n := 1; seen[name]; n++ {
			name = base + "_" + strconv.Itoa(n)
		}
		seen[name] = true
		names[i] = name
	}
	return names
}

// Preview returns the first n rows of d.
func (d *Dataset) Preview(n int) []Row {
	if n < 0 || n > len(d.Rows) {
		n = len(d.Rows)
	}
	return d.Rows[:n]
}

// MergeRows copies the rows and adds each column again under its normalized
// variable name, so both {{First Name}} and {{first_name}} resolve.
func (d *Dataset) MergeRows() []Row {
	rows := make([]Row, len(d.Rows))
	for i, src := range d.Rows {
		row := make(Row, len(src)*2)
		for k, v := range src {
			row[k] = v
		}
		for k, v := range src {
			if n := NormalizeVariableName(k); n != "" {
				if _, taken := row[n]; !taken {
					row[n] = v
				}
			}
		}
		rows[i] = row
	}
	return rows
}

// DatasetStore keeps uploaded datasets in memory, most recent first.
// Datasets do not survive a restart.
type DatasetStore struct {
	mu       sync.RWMutex
	datasets []*Dataset
}

// NewDatasetStore creates an empty store.
func NewDatasetStore() *DatasetStore {
	return &DatasetStore{}
}

// Add prepends ds.
func (s *DatasetStore) Add(ds *Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets = append([]*Dataset{ds}, s.datasets...)
}

// Get returns the dataset with the given ID.
func (s *DatasetStore) Get(id string) (*Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ds := range s.datasets {
		if ds.ID == id {
			return ds, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", id, ErrDatasetMissing)
}

// List returns all datasets, most recent first.
func (s *DatasetStore) List() []*Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Dataset, len(s.datasets))
	copy(out, s.datasets)
	return out
}

// Remove deletes the dataset with the given ID.
func (s *DatasetStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ds := range s.datasets {
		if ds.ID == id {
			s.datasets = append(s.datasets[:i], s.datasets[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%s: %w", id, ErrDatasetMissing)
}
