package crawler

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
)

// utf8BOM keeps spreadsheet tools from mangling the Chinese field values.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ExportJSON serializes records as indented JSON.
func ExportJSON(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal records: %w", err)
	}
	return data, nil
}

// ExportCSV serializes records with a header holding the sorted union of all
// field names observed across all records; cells for fields a record lacks
// are left empty.
func ExportCSV(records []Record) ([]byte, error) {
	header := fieldUnion(records)

	var buf bytes.Buffer
	buf.Write(utf8BOM)
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	row := make([]string, len(header))
	for _, rec := range records {
		for i, field := range header {
			row[i] = rec[field]
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func fieldUnion(records []Record) []string {
	seen := map[string]struct{}{}
	for _, rec := range records {
		for k := range rec {
			seen[k] = struct{}{}
		}
	}
	fields := make([]string, 0, len(seen))
	for k := range seen {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}
