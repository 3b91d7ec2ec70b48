package registry

import (
	"fmt"
	"sort"
	"strings"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	sqlschema "entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
	"github.com/cespare/xxhash/v2"

	"github.com/joseph-ayodele/gvb-ingest/constants"
	gvb "github.com/joseph-ayodele/gvb-ingest/db/ent/schema"
)

// Kind is the value type a column's cells are converted to.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindDate
	KindTime
	KindUUID
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDate:
		return "date"
	case KindTime:
		return "time"
	case KindUUID:
		return "uuid"
	case KindBool:
		return "bool"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Column is one data column of a RecordType.
type Column struct {
	Name     string
	Kind     Kind
	Nullable bool
}

// RecordType is a destination table together with the field set a source
// file must carry, exactly, to be loaded into it.
type RecordType struct {
	Name    string
	Table   string
	Columns []Column

	fields map[string]int
}

// Fields returns the field set in sorted order.
func (t *RecordType) Fields() []string {
	out := make([]string, 0, len(t.fields))
	for name := range t.fields {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Index returns the position of name in Columns.
func (t *RecordType) Index(name string) (int, bool) {
	i, ok := t.fields[name]
	return i, ok
}

// Matches reports whether columns, taken as a set, equals the field set.
func (t *RecordType) Matches(columns []string) bool {
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, ok := t.fields[c]; !ok {
			return false
		}
		seen[c] = struct{}{}
	}
	return len(seen) == len(t.fields)
}

func (t *RecordType) sameFields(o *RecordType) bool {
	if len(t.fields) != len(o.fields) {
		return false
	}
	for name := range t.fields {
		if _, ok := o.fields[name]; !ok {
			return false
		}
	}
	return true
}

// Registry is the static, ordered set of known record types.
type Registry struct {
	types  []*RecordType
	byName map[string]*RecordType
}

// New builds a registry from ent schema declarations, in the given order.
func New(schemas ...ent.Interface) (*Registry, error) {
	r := &Registry{byName: make(map[string]*RecordType, len(schemas))}
	for _, s := range schemas {
		tbl, err := Describe(s)
		if err != nil {
			return nil, err
		}
		rt, err := recordType(s, tbl.Name)
		if err != nil {
			return nil, err
		}
		if _, dup := r.byName[rt.Name]; dup {
			return nil, fmt.Errorf("registry: duplicate record type %q", rt.Name)
		}
		r.types = append(r.types, rt)
		r.byName[rt.Name] = rt
	}
	return r, nil
}

// MustNew is like New but panics on a malformed declaration.
func MustNew(schemas ...ent.Interface) *Registry {
	r, err := New(schemas...)
	if err != nil {
		panic(err)
	}
	return r
}

// Schemas lists the GVB raw tables in registry order.
func Schemas() []ent.Interface {
	return []ent.Interface{
		gvb.GvbReisBestemmingDatumRaw{},
		gvb.GvbReisHerkomstDatumRaw{},
		gvb.GvbReisBestemmingUurRaw{},
		gvb.GvbReisHerkomstUurRaw{},
		gvb.GvbRitHerkomstBestemmingUurRaw{},
		gvb.GvbRitBestemmingUurRaw{},
		gvb.GvbRitHerkomstUurRaw{},
	}
}

// Default returns the registry of GVB raw tables.
func Default() *Registry {
	return MustNew(Schemas()...)
}

// AllTypes returns every record type in registry order.
func (r *Registry) AllTypes() []*RecordType {
	out := make([]*RecordType, len(r.types))
	copy(out, r.types)
	return out
}

func (r *Registry) Lookup(name string) (*RecordType, bool) {
	rt, ok := r.byName[name]
	return rt, ok
}

func recordType(s ent.Interface, table string) (*RecordType, error) {
	rt := &RecordType{Name: table, Table: table, fields: make(map[string]int)}
	for _, f := range fields(s) {
		d := f.Descriptor()
		if constants.IsTagField(d.Name) {
			continue
		}
		kind, err := kindOf(d)
		if err != nil {
			return nil, fmt.Errorf("registry: %s.%s: %w", table, d.Name, err)
		}
		rt.fields[d.Name] = len(rt.Columns)
		rt.Columns = append(rt.Columns, Column{Name: d.Name, Kind: kind, Nullable: d.Optional})
	}
	return rt, nil
}

func kindOf(d *field.Descriptor) (Kind, error) {
	if d.Info == nil {
		return 0, fmt.Errorf("missing type info")
	}
	switch t := d.Info.Type; {
	case t == field.TypeString:
		return KindString, nil
	case t == field.TypeBool:
		return KindBool, nil
	case t == field.TypeUUID:
		return KindUUID, nil
	case t == field.TypeTime:
		for _, st := range d.SchemaType {
			if st == "date" {
				return KindDate, nil
			}
		}
		return KindTime, nil
	case t == field.TypeFloat32 || t == field.TypeFloat64:
		return KindFloat, nil
	case t >= field.TypeInt8 && t <= field.TypeUint64:
		return KindInt, nil
	default:
		return 0, fmt.Errorf("unsupported field type %s", t)
	}
}

// fields returns the mixin fields followed by the schema's own fields.
func fields(s ent.Interface) []ent.Field {
	var out []ent.Field
	for _, m := range s.Mixin() {
		out = append(out, m.Fields()...)
	}
	return append(out, s.Fields()...)
}

func indexes(s ent.Interface) []ent.Index {
	var out []ent.Index
	for _, m := range s.Mixin() {
		out = append(out, m.Indexes()...)
	}
	return append(out, s.Indexes()...)
}

func tableName(s ent.Interface) string {
	for _, a := range s.Annotations() {
		switch ant := a.(type) {
		case entsql.Annotation:
			if ant.Table != "" {
				return ant.Table
			}
		case *entsql.Annotation:
			if ant != nil && ant.Table != "" {
				return ant.Table
			}
		}
	}
	return ""
}

// Describe turns an ent schema declaration into the table the migrator
// creates. The identity field becomes the primary key.
func Describe(s ent.Interface) (*sqlschema.Table, error) {
	name := tableName(s)
	if name == "" {
		return nil, fmt.Errorf("registry: %T has no entsql table annotation", s)
	}
	tbl := sqlschema.NewTable(name)
	var tag *sqlschema.Column
	for _, f := range fields(s) {
		d := f.Descriptor()
		if d.Err != nil {
			return nil, fmt.Errorf("registry: %s.%s: %w", name, d.Name, d.Err)
		}
		if d.Info == nil {
			return nil, fmt.Errorf("registry: %s.%s: missing type info", name, d.Name)
		}
		col := &sqlschema.Column{
			Name:       d.Name,
			Type:       d.Info.Type,
			SchemaType: d.SchemaType,
			Nullable:   d.Optional,
			Default:    staticDefault(d.Default),
		}
		switch {
		case d.Name == constants.IdentityField:
			col.Increment = col.IntType()
			tbl.AddPrimary(col)
		case d.Name == constants.JobTagField:
			tag = col
		default:
			tbl.AddColumn(col)
		}
	}
	if tag != nil {
		tbl.AddColumn(tag)
	}
	if len(tbl.PrimaryKey) == 0 {
		return nil, fmt.Errorf("registry: %s has no %s field", name, constants.IdentityField)
	}
	for _, idx := range indexes(s) {
		d := idx.Descriptor()
		for _, c := range d.Fields {
			if !tbl.HasColumn(c) {
				return nil, fmt.Errorf("registry: %s: index on unknown field %q", name, c)
			}
		}
		tbl.AddIndex(indexName(name, d.Fields), d.Unique, d.Fields)
	}
	return tbl, nil
}

// staticDefault keeps literal defaults only; function defaults are applied
// by the code that inserts the row.
func staticDefault(v any) any {
	switch v.(type) {
	case bool, string, int, int64, float64:
		return v
	}
	return nil
}

const maxIdentifier = 63

func indexName(table string, cols []string) string {
	name := strings.ToLower(table + "_" + strings.Join(cols, "_"))
	if len(name) <= maxIdentifier {
		return name
	}
	return fmt.Sprintf("%s_%08x", name[:maxIdentifier-9], uint32(xxhash.Sum64String(name)))
}
