package ingest

import (
	"bytes"
	"encoding/csv"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTable(t *testing.T) {
	tbl, err := readTable(strings.NewReader("a;b\n1;2\n\n\"3;x\";4\n"), ';')
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tbl.header)
	assert.Equal(t, [][]string{{"1", "2"}, {"3;x", "4"}}, tbl.records)
}

func TestReadTableHeaderOnly(t *testing.T) {
	tbl, err := readTable(strings.NewReader("a;b\n"), ';')
	require.NoError(t, err)
	assert.Empty(t, tbl.records)
}

func TestReadTableErrors(t *testing.T) {
	_, err := readTable(strings.NewReader(""), ';')
	assert.ErrorIs(t, err, errEmptyFile)

	_, err = readTable(strings.NewReader("a;b\n1\n"), ';')
	assert.ErrorIs(t, err, csv.ErrFieldCount)
}

func TestCanonicalize(t *testing.T) {
	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	header := []string{"\ufeffDatum", " UurgroepOmschrijving (van vertrek) ", "AantalReizen"}
	canonicalize(header, log)
	assert.Equal(t, []string{"Datum", "UurgroepOmschrijvingVanVertrek", "AantalReizen"}, header)
	assert.Contains(t, logs.String(), "legacy header renamed")
}
