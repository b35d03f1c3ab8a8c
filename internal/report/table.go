// Package report writes and reads sweep result tables.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/audiolibrelab/asrbench/internal/score"
	"github.com/audiolibrelab/asrbench/internal/sweep"
	"go.uber.org/multierr"
)

// Format is the delimiter style of a table.
type Format string

const (
	FormatTSV Format = "tsv"
	FormatCSV Format = "csv"
)

// ParseFormat parses a table format, defaulting to TSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatTSV:
		return FormatTSV, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unknown table format %q (expected tsv or csv)", s)
}

// Ext returns the file extension for the format, with the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

func (f Format) comma() rune {
	if f == FormatCSV {
		return ','
	}
	return '\t'
}

// Header returns the table columns. The last column is named after the metric.
func Header(metric score.Metric) []string {
	return []string{"vocal", "noise", "voice_level", "noise_level", "distance_m", "device", "dB_diff", "model", metric.Label()}
}

// Row formats a record. The error rate is written in percent.
func Row(r sweep.ResultRecord) []string {
	return []string{
		r.VoiceID,
		r.NoiseID,
		formatFloat(r.VoiceLevel),
		formatFloat(r.NoiseLevel),
		formatFloat(r.DistanceMeters),
		r.DeviceName,
		strconv.FormatFloat(r.LevelDeltaDB, 'f', 2, 64),
		r.ModelName,
		strconv.FormatFloat(r.ErrorRate*100, 'f', 2, 64),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Write encodes the records as a table.
func Write(w io.Writer, format Format, metric score.Metric, records []sweep.ResultRecord) error {
	cw := csv.NewWriter(w)
	cw.Comma = format.comma()

	if err := cw.Write(Header(metric)); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(Row(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTable writes the records to path. The file is replaced atomically so a
// failed write never leaves a truncated table behind.
func WriteTable(path string, format Format, metric score.Metric, records []sweep.ResultRecord) error {
	return writeAtomic(path, func(w io.Writer) error {
		return Write(w, format, metric, records)
	})
}

// WriteFailures writes one line per failed iteration or model call.
func WriteFailures(path string, failures []sweep.Failure) error {
	return writeAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		cw.Comma = '\t'

		if err := cw.Write([]string{"iteration", "vocal", "noise", "voice_level", "noise_level", "model", "stage", "error"}); err != nil {
			return err
		}
		for _, f := range failures {
			msg := ""
			if f.Err != nil {
				msg = strings.ReplaceAll(f.Err.Error(), "\n", " ")
			}
			if err := cw.Write([]string{
				strconv.Itoa(f.Iteration),
				f.VoiceID,
				f.NoiseID,
				formatFloat(f.VoiceLevel),
				formatFloat(f.NoiseLevel),
				f.Model,
				f.Stage,
				msg,
			}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

func writeAtomic(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if err := write(tmp); err != nil {
		return multierr.Append(fmt.Errorf("failed to write %s: %w", path, err), tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move table into place: %w", err)
	}
	return nil
}

// Table is a parsed result table.
type Table struct {
	Metric  score.Metric
	Records []sweep.ResultRecord
}

// FormatForPath picks the table format from a file extension: .csv is CSV,
// anything else TSV.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return FormatCSV
	}
	return FormatTSV
}

// ReadTable parses a table written by WriteTable. The delimiter follows the
// file extension; anything other than .csv is read as TSV.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	table, err := Read(f, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return table, nil
}

// Read parses a table from r.
func Read(r io.Reader, format Format) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = format.comma()
	cr.FieldsPerRecord = len(Header(score.MetricCER))

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	metric, err := score.ParseMetric(header[len(header)-1])
	if err != nil {
		return nil, err
	}

	table := &Table{Metric: metric}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec.Iteration = line - 1
		table.Records = append(table.Records, rec)
	}
	return table, nil
}

func parseRow(row []string) (sweep.ResultRecord, error) {
	nums := make([]float64, 0, 5)
	for _, i := range []int{2, 3, 4, 6, 8} {
		v, err := strconv.ParseFloat(row[i], 64)
		if err != nil {
			return sweep.ResultRecord{}, fmt.Errorf("column %d: %w", i+1, err)
		}
		nums = append(nums, v)
	}

	return sweep.ResultRecord{
		VoiceID:        row[0],
		NoiseID:        row[1],
		VoiceLevel:     nums[0],
		NoiseLevel:     nums[1],
		DistanceMeters: nums[2],
		DeviceName:     row[5],
		LevelDeltaDB:   nums[3],
		ModelName:      row[7],
		ErrorRate:      nums[4] / 100,
	}, nil
}

// MetricMismatchError is returned when merging tables scored with different metrics.
type MetricMismatchError struct {
	Want, Got score.Metric
	Index     int
}

func (e *MetricMismatchError) Error() string {
	return fmt.Sprintf("table %d uses %s, expected %s", e.Index+1, e.Got.Label(), e.Want.Label())
}
