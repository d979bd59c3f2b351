package cli

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/vantagelab/termlens/internal/domain/term"
	"github.com/vantagelab/termlens/pkg/errors"
)

// metricColumns maps CSV headers to record fields. Any other column is kept
// as a categorical attribute.
var metricColumns = map[string]bool{
	"term":            true,
	"volume":          true,
	"click_share":     true,
	"growth":          true,
	"competition":     true,
	"units_sold":      true,
	"conversion_rate": true,
}

// ReadExport loads a term export from a local JSON or CSV file.
func ReadExport(path string) ([]term.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExportNotFound, "open export file")
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return readJSONExport(f)
	case ".csv":
		return readCSVExport(f)
	default:
		return nil, errors.New(errors.ErrCodeExportParseError, "unsupported export format").WithDetail(path)
	}
}

// readJSONExport accepts either a top-level record array or an object with a
// "terms" field, which is what the HTTP API produces.
func readJSONExport(r io.Reader) ([]term.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExportParseError, "read export")
	}

	var records []term.Record
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}
	var wrapped struct {
		Terms []term.Record `json:"terms"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExportParseError, "decode JSON export")
	}
	return wrapped.Terms, nil
}

func readCSVExport(r io.Reader) ([]term.Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExportParseError, "read CSV header")
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}
	termCol := -1
	for i, h := range header {
		if h == "term" {
			termCol = i
		}
	}
	if termCol == -1 {
		return nil, errors.New(errors.ErrCodeExportParseError, "CSV export is missing a term column")
	}

	var records []term.Record
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeExportParseError, "read CSV row").
				WithDetail("line " + strconv.Itoa(line))
		}
		rec, err := parseCSVRow(header, row)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeExportParseError, "parse CSV row").
				WithDetail("line " + strconv.Itoa(line))
		}
		if rec.Term == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseCSVRow(header, row []string) (term.Record, error) {
	var rec term.Record
	for i, value := range row {
		if i >= len(header) {
			break
		}
		value = strings.TrimSpace(value)
		col := header[i]
		if !metricColumns[col] {
			if value != "" {
				if rec.Attributes == nil {
					rec.Attributes = make(map[string]string)
				}
				rec.Attributes[col] = value
			}
			continue
		}
		if col == "term" {
			rec.Term = value
			continue
		}
		if value == "" {
			continue
		}
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return rec, err
		}
		switch col {
		case "volume":
			rec.Volume = n
		case "click_share":
			rec.ClickShare = n
		case "growth":
			rec.Growth = n
		case "competition":
			rec.Competition = n
		case "units_sold":
			rec.UnitsSold = n
		case "conversion_rate":
			rec.ConversionRate = n
		}
	}
	return rec, nil
}

// ReadSnapshots loads every JSON snapshot from dir, sorted by ascending
// timestamp. A missing directory means no history, not an error.
func ReadSnapshots(dir string) ([]term.Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeExportParseError, "read snapshot directory")
	}

	var snapshots []term.Snapshot
	for _, entry := range entries {
		if entry.IsDir() || strings.ToLower(filepath.Ext(entry.Name())) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeExportParseError, "read snapshot file").
				WithDetail(entry.Name())
		}
		var snap term.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeExportParseError, "decode snapshot").
				WithDetail(entry.Name())
		}
		snapshots = append(snapshots, snap)
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Timestamp.Before(snapshots[j].Timestamp)
	})
	return snapshots, nil
}
