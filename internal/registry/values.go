package registry

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Batch is a homogeneous set of typed rows for one record type, all tagged
// with the same job.
type Batch struct {
	Type  *RecordType
	JobID uuid.UUID
	// Rows are aligned with Type.Columns.
	Rows [][]any
}

var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"2006/01/02",
	"02/01/2006",
	"20060102",
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02-01-2006 15:04:05",
	"2006-01-02 15:04",
}

// ParseValue converts a raw cell to the Go value stored for a column. Empty
// cells on nullable columns become nil.
func ParseValue(c Column, raw string) (any, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		if c.Nullable {
			return nil, nil
		}
		if c.Kind == KindString {
			return "", nil
		}
		return nil, fmt.Errorf("column %s: empty value", c.Name)
	}
	switch c.Kind {
	case KindString:
		return s, nil
	case KindInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: invalid int %q", c.Name, s)
		}
		return n, nil
	case KindFloat:
		if !strings.Contains(s, ".") {
			s = strings.Replace(s, ",", ".", 1)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: invalid float %q", c.Name, raw)
		}
		return f, nil
	case KindDate:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("column %s: invalid date %q", c.Name, s)
	case KindTime:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, fmt.Errorf("column %s: invalid timestamp %q", c.Name, s)
	case KindUUID:
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("column %s: invalid uuid %q", c.Name, s)
		}
		return id, nil
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("column %s: invalid bool %q", c.Name, s)
		}
		return b, nil
	}
	return nil, fmt.Errorf("column %s: unsupported kind %s", c.Name, c.Kind)
}

// Binder maps a file's header positions onto a record type's columns.
type Binder struct {
	t   *RecordType
	pos []int // pos[i] is the header index feeding t.Columns[i]
}

// Bind prepares conversion of records that follow header. The header must
// name every field exactly once.
func (t *RecordType) Bind(header []string) (*Binder, error) {
	pos := make([]int, len(t.Columns))
	for i := range pos {
		pos[i] = -1
	}
	for hi, name := range header {
		ci, ok := t.fields[name]
		if !ok {
			return nil, fmt.Errorf("%s: unexpected column %q", t.Name, name)
		}
		if pos[ci] >= 0 {
			return nil, fmt.Errorf("%s: duplicate column %q", t.Name, name)
		}
		pos[ci] = hi
	}
	for ci, hi := range pos {
		if hi < 0 {
			return nil, fmt.Errorf("%s: missing column %q", t.Name, t.Columns[ci].Name)
		}
	}
	return &Binder{t: t, pos: pos}, nil
}

// Row converts one record into values aligned with the record type's columns.
func (b *Binder) Row(record []string) ([]any, error) {
	if len(record) != len(b.pos) {
		return nil, fmt.Errorf("expected %d fields, got %d", len(b.pos), len(record))
	}
	row := make([]any, len(b.pos))
	for ci, hi := range b.pos {
		v, err := ParseValue(b.t.Columns[ci], record[hi])
		if err != nil {
			return nil, err
		}
		row[ci] = v
	}
	return row, nil
}
