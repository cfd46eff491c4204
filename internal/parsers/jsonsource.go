package parsers

import (
	"encoding/json"
	"os"
	"strings"

	"lineside-audit-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// jsonRow is one row of a JSON extract with its raw field values.
type jsonRow map[string]json.RawMessage

// loadJSONRows reads a JSON extract (an array of row objects) into raw
// rows. The file-level errors here are the only fatal ones in ingestion.
func loadJSONRows(filePath string) ([]jsonRow, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, filePath, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, filePath, err)
		}
		return nil, errors.FileError(errors.CodeDirectoryError, filePath, err)
	}

	var rows []jsonRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, filePath, err).
			WithSuggestion("Ensure the extract is a JSON array of row objects")
	}

	return rows, nil
}

// getString resolves a string field through its candidate names. JSON
// numbers are accepted and rendered verbatim, since upstream systems are
// inconsistent about quoting identifiers.
func (r jsonRow) getString(candidates []string) string {
	for _, name := range candidates {
		raw, ok := r[name]
		if !ok {
			continue
		}

		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s)
		}

		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

// getQuantity resolves a numeric field through its candidate names.
// Values may arrive as numbers or as strings (possibly with thousands
// separators); anything malformed degrades to zero.
func (r jsonRow) getQuantity(candidates []string) decimal.Decimal {
	for _, name := range candidates {
		raw, ok := r[name]
		if !ok || string(raw) == "null" {
			continue
		}

		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			if d, err := decimal.NewFromString(n.String()); err == nil {
				return d
			}
			return decimal.Zero
		}

		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return parseQuantityString(s)
		}
		return decimal.Zero
	}
	return decimal.Zero
}

func parseQuantityString(s string) decimal.Decimal {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
