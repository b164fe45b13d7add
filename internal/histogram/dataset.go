package histogram

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// DefaultColumn is the CSV column holding vote counts.
const DefaultColumn = "vote_count"

// ErrMissingColumn is returned when the header does not name the requested column.
var ErrMissingColumn = errors.New("column not found in CSV header")

// Dataset is the parsed content of one CSV column.
type Dataset struct {
	Values  []uint64
	Skipped int // rows with an empty or non-numeric value
}

// LoadVoteCounts reads the whole CSV and returns the values of column.
// The first row must be a header.
func LoadVoteCounts(r io.Reader, column string) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %q (empty file)", ErrMissingColumn, column)
	}

	idx := -1
	for i, name := range records[0] {
		if strings.TrimSpace(name) == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, column)
	}

	ds := &Dataset{Values: make([]uint64, 0, len(records)-1)}
	for _, rec := range records[1:] {
		if idx >= len(rec) {
			ds.Skipped++
			continue
		}
		v, err := parseCount(rec[idx])
		if err != nil {
			ds.Skipped++
			continue
		}
		ds.Values = append(ds.Values, v)
	}
	return ds, nil
}

// LoadFile opens path and calls LoadVoteCounts.
func LoadFile(path, column string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	return LoadVoteCounts(f, column)
}

// parseCount accepts integers and integral floats such as "120.0".
func parseCount(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(uint64(f)) {
		return 0, fmt.Errorf("not a non-negative integer: %q", s)
	}
	return uint64(f), nil
}
