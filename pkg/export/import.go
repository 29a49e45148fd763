package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/raywall/docstore-toolkit/mongodb"
)

// Parse reads an uploaded payload into documents. JSON accepts a bare
// array, a single object, or a {"data": [...]} wrapper; CSV uses the
// first row as field names.
func Parse(r io.Reader, format string) ([]mongodb.Document, error) {
	switch format {
	case FormatJSON:
		return parseJSON(r)
	case FormatCSV:
		return parseCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// FormatForFilename maps a file name to its import format.
func FormatForFilename(name string) (string, error) {
	switch {
	case strings.HasSuffix(name, ".json"):
		return FormatJSON, nil
	case strings.HasSuffix(name, ".csv"):
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: file %q", ErrUnsupportedFormat, name)
	}
}

func parseJSON(r io.Reader) ([]mongodb.Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("export: read upload: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("export: empty upload")
	}

	var docs []mongodb.Document
	if err := json.Unmarshal(raw, &docs); err == nil {
		return docs, nil
	}

	var single mongodb.Document
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("export: invalid json upload: %w", err)
	}

	// {"data": [...]} wrapper
	if inner, ok := single["data"].([]interface{}); ok {
		docs = make([]mongodb.Document, 0, len(inner))
		for i, item := range inner {
			doc, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("export: element %d is not an object", i)
			}
			docs = append(docs, mongodb.Document(doc))
		}
		return docs, nil
	}

	return []mongodb.Document{single}, nil
}

func parseCSV(r io.Reader) ([]mongodb.Document, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	headers, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("export: empty upload")
	}
	if err != nil {
		return nil, fmt.Errorf("export: read csv header: %w", err)
	}

	var docs []mongodb.Document
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("export: read csv row: %w", err)
		}

		doc := mongodb.Document{}
		for i, h := range headers {
			if i >= len(record) || record[i] == "" {
				continue
			}
			doc[h] = coerceValue(record[i])
		}
		if len(doc) > 0 {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// coerceValue restores the common scalar types CSV loses.
func coerceValue(s string) interface{} {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(strings.ToLower(s)); err == nil {
		return b
	}
	return s
}
