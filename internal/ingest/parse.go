package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/joseph-ayodele/gvb-ingest/constants"
)

var errEmptyFile = errors.New("file has no header row")

// table is a parsed delimiter-separated file.
type table struct {
	header  []string
	records [][]string
}

// readTable parses r with the first line as header. Every record must have as
// many fields as the header.
func readTable(r io.Reader, delim rune) (*table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cr.FieldsPerRecord = len(header)

	t := &table{header: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		t.records = append(t.records, rec)
	}
	return t, nil
}

// canonicalize rewrites the header in place to canonical column names.
func canonicalize(header []string, log *slog.Logger) {
	for i, raw := range header {
		name, renamed := constants.CanonicalHeader(raw)
		if renamed {
			log.Debug("legacy header renamed", "from", raw, "to", name)
		}
		header[i] = name
	}
}
