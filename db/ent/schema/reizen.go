package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Raw trip ("reizen") tables from ftp.gvb.nl.

func datum() ent.Field {
	return field.Time("Datum").
		SchemaType(map[string]string{dialect.Postgres: "date", dialect.MySQL: "date"})
}

type GvbReisBestemmingDatumRaw struct{ ent.Schema }

func (GvbReisBestemmingDatumRaw) Mixin() []ent.Mixin { return []ent.Mixin{RawMixin{}} }

func (GvbReisBestemmingDatumRaw) Annotations() []schema.Annotation {
	return []schema.Annotation{entsql.Annotation{Table: "GvbReisBestemmingDatumRaw"}}
}

func (GvbReisBestemmingDatumRaw) Fields() []ent.Field {
	return []ent.Field{
		datum(),
		field.String("AankomstHalteCode").Optional(),
		field.String("AankomstHalteNaam").Optional(),
		field.Float("AankomstLat").Optional().Nillable(),
		field.Float("AankomstLon").Optional().Nillable(),
		field.Int("AantalReizen").Optional().Nillable(),
	}
}

func (GvbReisBestemmingDatumRaw) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("Datum"),
		index.Fields("AankomstHalteCode"),
	}
}

type GvbReisHerkomstDatumRaw struct{ ent.Schema }

func (GvbReisHerkomstDatumRaw) Mixin() []ent.Mixin { return []ent.Mixin{RawMixin{}} }

func (GvbReisHerkomstDatumRaw) Annotations() []schema.Annotation {
	return []schema.Annotation{entsql.Annotation{Table: "GvbReisHerkomstDatumRaw"}}
}

func (GvbReisHerkomstDatumRaw) Fields() []ent.Field {
	return []ent.Field{
		datum(),
		field.String("VertrekHalteCode").Optional(),
		field.String("VertrekHalteNaam").Optional(),
		field.Float("VertrekLat").Optional().Nillable(),
		field.Float("VertrekLon").Optional().Nillable(),
		field.Int("AantalReizen").Optional().Nillable(),
	}
}

func (GvbReisHerkomstDatumRaw) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("Datum"),
		index.Fields("VertrekHalteCode"),
	}
}

type GvbReisBestemmingUurRaw struct{ ent.Schema }

func (GvbReisBestemmingUurRaw) Mixin() []ent.Mixin { return []ent.Mixin{RawMixin{}} }

func (GvbReisBestemmingUurRaw) Annotations() []schema.Annotation {
	return []schema.Annotation{entsql.Annotation{Table: "GvbReisBestemmingUurRaw"}}
}

func (GvbReisBestemmingUurRaw) Fields() []ent.Field {
	return []ent.Field{
		datum(),
		field.String("UurgroepOmschrijvingVanAankomst").Optional(),
		field.String("AankomstHalteCode").Optional(),
		field.String("AankomstHalteNaam").Optional(),
		field.Float("AankomstLat").Optional().Nillable(),
		field.Float("AankomstLon").Optional().Nillable(),
		field.Int("AantalReizen").Optional().Nillable(),
	}
}

func (GvbReisBestemmingUurRaw) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("Datum"),
		index.Fields("AankomstHalteCode"),
	}
}

type GvbReisHerkomstUurRaw struct{ ent.Schema }

func (GvbReisHerkomstUurRaw) Mixin() []ent.Mixin { return []ent.Mixin{RawMixin{}} }

func (GvbReisHerkomstUurRaw) Annotations() []schema.Annotation {
	return []schema.Annotation{entsql.Annotation{Table: "GvbReisHerkomstUurRaw"}}
}

func (GvbReisHerkomstUurRaw) Fields() []ent.Field {
	return []ent.Field{
		datum(),
		field.String("UurgroepOmschrijvingVanVertrek").Optional(),
		field.String("VertrekHalteCode").Optional(),
		field.String("VertrekHalteNaam").Optional(),
		field.Float("VertrekLat").Optional().Nillable(),
		field.Float("VertrekLon").Optional().Nillable(),
		field.Int("AantalReizen").Optional().Nillable(),
	}
}

func (GvbReisHerkomstUurRaw) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("Datum"),
		index.Fields("VertrekHalteCode"),
	}
}
