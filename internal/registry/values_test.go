package registry

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	day := time.Date(2023, 3, 14, 0, 0, 0, 0, time.UTC)
	id := uuid.MustParse("6f1c6d4e-8c1b-4f5e-9a53-2d6f0f2a9b11")

	tests := []struct {
		name    string
		col     Column
		raw     string
		want    any
		wantErr bool
	}{
		{name: "string trimmed", col: Column{Kind: KindString}, raw: "  Centraal Station ", want: "Centraal Station"},
		{name: "empty required string", col: Column{Kind: KindString}, raw: "", want: ""},
		{name: "empty nullable string", col: Column{Kind: KindString, Nullable: true}, raw: " ", want: nil},
		{name: "int", col: Column{Kind: KindInt}, raw: "42", want: int64(42)},
		{name: "bad int", col: Column{Kind: KindInt}, raw: "4x", wantErr: true},
		{name: "empty required int", col: Column{Kind: KindInt}, raw: "", wantErr: true},
		{name: "empty nullable int", col: Column{Kind: KindInt, Nullable: true}, raw: "", want: nil},
		{name: "float dot", col: Column{Kind: KindFloat}, raw: "52.3789", want: 52.3789},
		{name: "float comma", col: Column{Kind: KindFloat}, raw: "4,9003", want: 4.9003},
		{name: "bad float", col: Column{Kind: KindFloat}, raw: "1,2.3", wantErr: true},
		{name: "iso date", col: Column{Kind: KindDate}, raw: "2023-03-14", want: day},
		{name: "dutch date", col: Column{Kind: KindDate}, raw: "14-03-2023", want: day},
		{name: "compact date", col: Column{Kind: KindDate}, raw: "20230314", want: day},
		{name: "bad date", col: Column{Kind: KindDate}, raw: "14.03.2023", wantErr: true},
		{name: "timestamp", col: Column{Kind: KindTime}, raw: "2023-03-14 08:30:00", want: day.Add(8*time.Hour + 30*time.Minute)},
		{name: "uuid", col: Column{Kind: KindUUID}, raw: id.String(), want: id},
		{name: "bool", col: Column{Kind: KindBool}, raw: "true", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValue(tt.col, tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBind(t *testing.T) {
	rt := MustNew(typeA{}, typeB{}).AllTypes()[1] // B: x string, z int optional

	b, err := rt.Bind([]string{"z", "x"})
	require.NoError(t, err)

	row, err := b.Row([]string{"7", "halte"})
	require.NoError(t, err)
	assert.Equal(t, []any{"halte", int64(7)}, row)

	row, err = b.Row([]string{"", "halte"})
	require.NoError(t, err)
	assert.Equal(t, []any{"halte", nil}, row)

	_, err = b.Row([]string{"1"})
	assert.ErrorContains(t, err, "expected 2 fields")

	_, err = b.Row([]string{"x1", "halte"})
	assert.ErrorContains(t, err, "invalid int")

	_, err = rt.Bind([]string{"x", "x"})
	assert.ErrorContains(t, err, "duplicate column")

	_, err = rt.Bind([]string{"x"})
	assert.ErrorContains(t, err, "missing column")

	_, err = rt.Bind([]string{"x", "z", "q"})
	assert.ErrorContains(t, err, "unexpected column")
}
