package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"entgo.io/ent/schema/mixin"

	"github.com/google/uuid"
)

// RawMixin adds the generated identity column and the job tag that every raw
// GVB table carries. Neither column is present in the source files.
type RawMixin struct {
	mixin.Schema
}

func (RawMixin) Fields() []ent.Field {
	return []ent.Field{
		field.Int("Id").Positive().Immutable(),
		// references CacheStatus.Id
		field.UUID("JobId", uuid.UUID{}).Immutable(),
	}
}

func (RawMixin) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("JobId"),
	}
}
