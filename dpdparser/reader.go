package dpdparser

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/giygas/dpd-api/logging"
	"github.com/giygas/dpd-api/metrics"
	"golang.org/x/text/encoding/charmap"
)

// ParseStats counts what happened to the lines of one file.
type ParseStats struct {
	TotalLines  int
	EmptyLines  int
	ShortLines  int
	RecordsKept int
}

// Skipped returns the number of lines that did not produce a record.
func (s ParseStats) Skipped() int {
	return s.EmptyLines + s.ShortLines
}

// ParseKind reads every line of r as a file of the given kind. The extract
// is published in ISO-8859-1; content that is already valid UTF-8 is used
// as-is.
func ParseKind(r io.Reader, kind FileKind) ([]Record, ParseStats, error) {
	var stats ParseStats

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read %s: %w", kind.FileName, err)
	}

	var reader io.Reader
	if utf8.Valid(raw) {
		reader = bytes.NewReader(raw)
	} else {
		reader = charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(raw))
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var records []Record
	for scanner.Scan() {
		stats.TotalLines++
		line := scanner.Text()

		if len(line) == 0 {
			stats.EmptyLines++
			continue
		}

		record, ok := ParseLine(kind, line)
		if !ok {
			stats.ShortLines++
			continue
		}
		records = append(records, record)
	}

	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("scanner error in %s: %w", kind.FileName, err)
	}

	stats.RecordsKept = len(records)
	return records, stats, nil
}

// ReadKind opens the file of the given kind inside dir and parses it.
func ReadKind(dir string, kind FileKind) ([]Record, ParseStats, error) {
	path := filepath.Join(dir, kind.FileName)
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, ParseStats{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("Failed to close extract file", "file", path, "error", err)
		}
	}()

	records, stats, err := ParseKind(file, kind)
	if err != nil {
		return nil, stats, err
	}

	metrics.RecordsParsed.WithLabelValues(kind.Name).Add(float64(stats.RecordsKept))
	metrics.LinesSkipped.WithLabelValues(kind.Name).Add(float64(stats.Skipped()))

	if stats.ShortLines > 0 {
		logging.Info(fmt.Sprintf("%s skip statistics", kind.FileName),
			"empty_lines", stats.EmptyLines,
			"short_lines", stats.ShortLines,
			"total_lines", stats.TotalLines,
			"records_parsed", stats.RecordsKept)
	}
	logging.Debug(fmt.Sprintf("%s parsed", kind.FileName), "records_count", stats.RecordsKept)

	return records, stats, nil
}
