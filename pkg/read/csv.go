package read

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"tabular/pkg/backend"
)

// decodeCSV parses CSV bytes into string columns. The first record is the
// header row. Parsing is lenient: quoting errors are tolerated and records
// with the wrong field count are skipped, not errored. The skipped count is
// returned for the caller's stage line.
func decodeCSV(data []byte, delimiter rune) (*backend.Columns, int, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("read: empty csv input")
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delimiter
	r.FieldsPerRecord = -1 // alignment is validated manually
	r.LazyQuotes = true

	headers, err := r.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read: csv header: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	var (
		rows    [][]string
		skipped int
	)
	for {
		rec, err := r.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, 0, fmt.Errorf("read: csv row: %w", err)
		}
		if len(rec) != len(headers) {
			skipped++
			continue
		}
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		rows = append(rows, rec)
	}

	cols, err := columnsFromRows(headers, rows)
	if err != nil {
		return nil, 0, err
	}
	return cols, skipped, nil
}

// decodeCharset transcodes the payload into UTF-8. An empty or utf-8 name
// passes the bytes through untouched.
func decodeCharset(data []byte, encoding string) ([]byte, error) {
	var dec *charmap.Charmap
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8":
		return data, nil
	case "latin-1", "latin1", "iso-8859-1":
		dec = charmap.ISO8859_1
	case "windows-1252", "cp1252":
		dec = charmap.Windows1252
	default:
		return nil, fmt.Errorf("read: unsupported encoding %q", encoding)
	}

	out, _, err := transform.Bytes(dec.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("read: decode %s: %w", encoding, err)
	}
	return out, nil
}
