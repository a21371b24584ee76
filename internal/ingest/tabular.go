// Package ingest moves source data into the object store and parses it
// into tables: URL and file fetch, archive extraction, and delimited
// text reading with format sniffing.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"strings"
)

// Table is a parsed tabular file: a header row and string cells. Cells
// stay strings end to end; typing is the target schema's concern.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Column returns the index of a named column, or -1.
func (t Table) Column(name string) int {
	for i, column := range t.Columns {
		if column == name {
			return i
		}
	}
	return -1
}

// Formats reported by ReadTable.
const (
	FormatCSV = "csv"
	FormatTSV = "tsv"
)

// ReadTable parses delimited text. The delimiter comes from the file
// extension when it is decisive and from sniffing the header line
// otherwise.
func ReadTable(r io.Reader, name string) (Table, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, "", fmt.Errorf("read %s: %w", name, err)
	}
	format := sniffFormat(name, data)
	reader := csv.NewReader(strings.NewReader(string(data)))
	if format == FormatTSV {
		reader.Comma = '\t'
	}
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return Table{}, "", fmt.Errorf("parse %s: %w", name, err)
	}
	if len(records) == 0 {
		return Table{}, "", fmt.Errorf("parse %s: no header row", name)
	}

	table := Table{Columns: records[0]}
	width := len(table.Columns)
	for _, record := range records[1:] {
		row := make([]string, width)
		copy(row, record)
		table.Rows = append(table.Rows, row)
	}
	return table, format, nil
}

// EncodeCSV serialises the table as CSV, header first.
func (t Table) EncodeCSV() ([]byte, error) {
	var buf strings.Builder
	writer := csv.NewWriter(&buf)
	if err := writer.Write(t.Columns); err != nil {
		return nil, err
	}
	for _, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

func sniffFormat(name string, data []byte) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".tsv", ".tab":
		return FormatTSV
	case ".csv":
		return FormatCSV
	}
	header, _, _ := strings.Cut(string(data), "\n")
	if strings.Count(header, "\t") > strings.Count(header, ",") {
		return FormatTSV
	}
	return FormatCSV
}

// FileStem returns the object name without directories or extension,
// used as the inferred dataset id.
func FileStem(name string) string {
	base := path.Base(name)
	return strings.TrimSuffix(base, path.Ext(base))
}
