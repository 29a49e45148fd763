package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/raywall/docstore-toolkit/mongodb"
)

func TestFlatten(t *testing.T) {
	doc := mongodb.Document{
		"name": "widget",
		"specs": mongodb.Document{
			"weight": 1.5,
			"dims":   mongodb.Document{"w": 10, "h": 20},
		},
		"tags": []interface{}{"a", "b"},
	}

	flat := Flatten(doc)

	assert.Equal(t, "widget", flat["name"])
	assert.Equal(t, 1.5, flat["specs.weight"])
	assert.Equal(t, 10, flat["specs.dims.w"])
	assert.Equal(t, 20, flat["specs.dims.h"])
	assert.Equal(t, "[a b]", flat["tags"])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	docs := []mongodb.Document{{"a": 1.0}, {"b": "x"}}

	require.NoError(t, Write(&buf, docs, FormatJSON))
	assert.True(t, strings.HasPrefix(buf.String(), "[\n"))

	var back []mongodb.Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Len(t, back, 2)
}

func TestWriteJSON_EmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil, FormatJSON))
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	docs := []mongodb.Document{
		{"name": "a", "price": 10, "meta": mongodb.Document{"color": "red"}},
		{"name": "b", "stock": 3},
	}

	require.NoError(t, Write(&buf, docs, FormatCSV))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	// header is the sorted union of flattened keys
	assert.Equal(t, "meta.color,name,price,stock", lines[0])
	assert.Equal(t, "red,a,10,", lines[1])
	assert.Equal(t, ",b,,3", lines[2])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil, FormatCSV))
	assert.Empty(t, buf.String())
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	docs := []mongodb.Document{{"name": "a", "qty": 5}}

	require.NoError(t, Write(&buf, docs, FormatXLSX))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"name", "qty"}, rows[0])
	assert.Equal(t, []string{"a", "5"}, rows[1])
}

func TestWrite_UnsupportedFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, nil, "xml")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestContentType(t *testing.T) {
	ct, err := ContentType(FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "application/json", ct)

	ct, err = ContentType(FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", ct)

	_, err = ContentType("pdf")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}
