package registry

import (
	"log/slog"
	"strings"
)

// Matcher resolves a file header to the record type with exactly the same
// field set.
type Matcher struct {
	types []*RecordType
	log   *slog.Logger
}

// NewMatcher warns once for every pair of record types that share a field
// set; Resolve returns the earlier of the two in registry order.
func NewMatcher(reg *Registry, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Matcher{types: reg.AllTypes(), log: logger}
	for i, a := range m.types {
		for _, b := range m.types[i+1:] {
			if a.sameFields(b) {
				logger.Warn("record types share a field set",
					"first", a.Name, "shadowed", b.Name,
					"fields", strings.Join(a.Fields(), ","))
			}
		}
	}
	return m
}

// Resolve returns the record type whose field set equals columns. A
// superset or subset never matches.
func (m *Matcher) Resolve(columns []string) (*RecordType, bool) {
	for _, t := range m.types {
		if t.Matches(columns) {
			m.log.Debug("record type resolved", "type", t.Name, "columns", len(columns))
			return t, true
		}
	}
	return nil, false
}
