// Package export serializes collections of documents to interchange
// formats and parses uploads back into documents.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/raywall/docstore-toolkit/mongodb"
)

// Supported formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ErrUnsupportedFormat is returned for formats outside json, csv, xlsx.
var ErrUnsupportedFormat = fmt.Errorf("export: unsupported format")

// ContentType returns the MIME type for a format, or an error for
// unknown formats.
func ContentType(format string) (string, error) {
	switch format {
	case FormatJSON:
		return "application/json", nil
	case FormatCSV:
		return "text/csv", nil
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Write serializes docs in the given format to w.
func Write(w io.Writer, docs []mongodb.Document, format string) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, docs)
	case FormatCSV:
		return writeCSV(w, docs)
	case FormatXLSX:
		return writeXLSX(w, docs)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func writeJSON(w io.Writer, docs []mongodb.Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if docs == nil {
		docs = []mongodb.Document{}
	}
	return enc.Encode(docs)
}

func writeCSV(w io.Writer, docs []mongodb.Document) error {
	if len(docs) == 0 {
		return nil
	}

	flattened := make([]map[string]interface{}, 0, len(docs))
	headerSet := map[string]struct{}{}
	for _, doc := range docs {
		flat := Flatten(doc)
		flattened = append(flattened, flat)
		for k := range flat {
			headerSet[k] = struct{}{}
		}
	}

	headers := make([]string, 0, len(headerSet))
	for h := range headerSet {
		headers = append(headers, h)
	}
	sort.Strings(headers)

	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("export: write csv header: %w", err)
	}

	row := make([]string, len(headers))
	for _, flat := range flattened {
		for i, h := range headers {
			row[i] = cellString(flat[h])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export: write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, docs []mongodb.Document) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"

	flattened := make([]map[string]interface{}, 0, len(docs))
	headerSet := map[string]struct{}{}
	for _, doc := range docs {
		flat := Flatten(doc)
		flattened = append(flattened, flat)
		for k := range flat {
			headerSet[k] = struct{}{}
		}
	}

	headers := make([]string, 0, len(headerSet))
	for h := range headerSet {
		headers = append(headers, h)
	}
	sort.Strings(headers)

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("export: xlsx header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("export: xlsx header: %w", err)
		}
	}

	for r, flat := range flattened {
		for c, h := range headers {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return fmt.Errorf("export: xlsx cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, cellString(flat[h])); err != nil {
				return fmt.Errorf("export: xlsx value: %w", err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write xlsx: %w", err)
	}
	return nil
}

// Flatten turns a nested document into a single-level map with
// dot-separated keys. Lists become their string representation.
func Flatten(doc mongodb.Document) map[string]interface{} {
	out := map[string]interface{}{}
	flattenInto(doc, "", out)
	return out
}

func flattenInto(doc mongodb.Document, prefix string, out map[string]interface{}) {
	for k, v := range doc {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch x := v.(type) {
		case mongodb.Document:
			flattenInto(x, key, out)
		case map[string]interface{}:
			flattenInto(mongodb.Document(x), key, out)
		case []interface{}:
			out[key] = fmt.Sprintf("%v", x)
		default:
			out[key] = v
		}
	}
}

func cellString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
