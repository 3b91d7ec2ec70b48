package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"
)

// CacheStatus is the job ledger: one row per attempt to load one cached file.
type CacheStatus struct{ ent.Schema }

func (CacheStatus) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "CacheStatus"},
	}
}

func (CacheStatus) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("Id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.String("FileName").NotEmpty(),
		field.Time("StartTime").Default(time.Now).Immutable(),
		field.Bool("JobFinished").Default(false),
		field.Int("EntriesAdded").Optional().Nillable(),
		field.String("FilledTable").Optional().Nillable(),
		field.Time("FinishedTime").Optional().Nillable(),
		// xxhash64 of the file when the job started; audit only
		field.String("ContentHash").Optional().Nillable(),
	}
}

func (CacheStatus) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("FileName", "JobFinished"),
		index.Fields("StartTime"),
	}
}
