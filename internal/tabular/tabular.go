// Package tabular encodes and decodes the comma-separated tables exchanged
// with spreadsheets: UTF-8 with a leading byte-order mark.
package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// BOM is the UTF-8 byte-order mark written ahead of every table.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// ContentType is the media type used when storing encoded tables.
const ContentType = "text/csv; charset=utf-8"

// Encode serializes rows, prefixed with BOM. Fields containing commas, quotes
// or newlines are quoted.
func Encode(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(BOM)
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("encode table: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads every record from r. A leading BOM is dropped, rows may have
// differing field counts and stray quotes are tolerated. Blank lines are skipped.
func Decode(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(BOM)); err == nil && bytes.Equal(head, BOM) {
		if _, err := br.Discard(len(BOM)); err != nil {
			return nil, fmt.Errorf("skip byte-order mark: %w", err)
		}
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode table: %w", err)
		}
		rows = append(rows, rec)
	}
}
