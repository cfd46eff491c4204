// Package parsers ingests the four upstream extracts into normalized
// entities.
//
// Two extract shapes exist: the warehouse inventory arrives as CSV (with a
// possible UTF-8 byte-order mark and locale-specific headers), while orders,
// BOM lines and issue transactions arrive as JSON row arrays. Field names
// vary across locales and upstream versions, so every parser resolves each
// canonical field through an ordered candidate list configured at the
// ingestion boundary; the matching logic downstream never sees raw headers.
//
// Malformed numeric fields degrade to zero and malformed rows are skipped
// and counted, never fatal. Only a missing or unreadable extract file fails
// a run.
package parsers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"lineside-audit-service/pkg/errors"
	"lineside-audit-service/pkg/logger"
)

// ParseError records one skipped row or field during ingestion
type ParseError struct {
	Line    int
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error at line %d (%s='%s'): %s: %v",
			e.Line, e.Field, e.Value, e.Message, e.Err)
	}
	return fmt.Sprintf("parse error at line %d (%s='%s'): %s",
		e.Line, e.Field, e.Value, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseStats holds statistics about one extract's ingestion
type ParseStats struct {
	TotalRows   int
	RowsParsed  int
	RowsSkipped int
	Errors      []*ParseError
}

// AddError records a skipped row
func (ps *ParseStats) AddError(line int, field, value, message string, err error) {
	ps.Errors = append(ps.Errors, &ParseError{
		Line:    line,
		Field:   field,
		Value:   value,
		Message: message,
		Err:     err,
	})
	ps.RowsSkipped++
}

// HasErrors returns true if any rows were skipped
func (ps *ParseStats) HasErrors() bool {
	return len(ps.Errors) > 0
}

// String returns a human-readable summary of the ingestion
func (ps *ParseStats) String() string {
	return fmt.Sprintf("Parsed %d of %d rows (%d skipped)",
		ps.RowsParsed, ps.TotalRows, ps.RowsSkipped)
}

// CSVConfig holds configuration for reading a CSV extract
type CSVConfig struct {
	Delimiter        rune
	TrimLeadingSpace bool
	SkipEmptyRows    bool
}

// DefaultCSVConfig returns a configuration with sensible defaults
func DefaultCSVConfig() *CSVConfig {
	return &CSVConfig{
		Delimiter:        ',',
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
	}
}

// baseCSVParser provides common CSV reading for extract parsers
type baseCSVParser struct {
	config *CSVConfig
	logger logger.Logger
}

func newBaseCSVParser(config *CSVConfig, component string) *baseCSVParser {
	if config == nil {
		config = DefaultCSVConfig()
	}
	return &baseCSVParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent(component),
	}
}

// openFile opens a CSV extract, stripping a UTF-8 BOM if present, and
// returns a configured reader. The warehouse reporting system exports
// with a BOM.
func (bp *baseCSVParser) openFile(filePath string) (io.Closer, *csv.Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		bp.logger.WithError(err).WithField("file_path", filePath).Error("Failed to open CSV extract")

		if os.IsNotExist(err) {
			return nil, nil, errors.FileError(errors.CodeFileNotFound, filePath, err)
		}
		if os.IsPermission(err) {
			return nil, nil, errors.FileError(errors.CodeFilePermission, filePath, err)
		}
		return nil, nil, errors.FileError(errors.CodeDirectoryError, filePath, err)
	}

	bom := make([]byte, 3)
	n, _ := io.ReadFull(file, bom)
	if n != 3 || !bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			file.Close()
			return nil, nil, errors.FileError(errors.CodeFileCorrupted, filePath, err)
		}
	}

	reader := csv.NewReader(file)
	reader.Comma = bp.config.Delimiter
	reader.TrimLeadingSpace = bp.config.TrimLeadingSpace
	reader.FieldsPerRecord = -1

	return file, reader, nil
}

// headerIndex maps each canonical field to the column index of the first
// candidate header found, following the configured precedence order.
type headerIndex struct {
	columns map[string]int
}

// buildHeaderIndex resolves field candidates against the extract's header
// row. Missing optional fields simply resolve to no column.
func buildHeaderIndex(headers []string, candidates map[string][]string) *headerIndex {
	position := make(map[string]int, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if _, seen := position[h]; !seen {
			position[h] = i
		}
	}

	idx := &headerIndex{columns: make(map[string]int, len(candidates))}
	for field, names := range candidates {
		for _, name := range names {
			if col, ok := position[name]; ok {
				idx.columns[field] = col
				break
			}
		}
	}
	return idx
}

// has reports whether the canonical field resolved to a column.
func (hi *headerIndex) has(field string) bool {
	_, ok := hi.columns[field]
	return ok
}

// get returns the trimmed value for a canonical field, or "" when the
// field resolved to no column or the row is short.
func (hi *headerIndex) get(record []string, field string) string {
	col, ok := hi.columns[field]
	if !ok || col >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[col])
}

// isEmptyRecord checks if all fields in a record are empty or whitespace
func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
