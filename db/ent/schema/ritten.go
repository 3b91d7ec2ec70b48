package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Raw ride ("ritten") tables from ftp.gvb.nl.

type GvbRitHerkomstBestemmingUurRaw struct{ ent.Schema }

func (GvbRitHerkomstBestemmingUurRaw) Mixin() []ent.Mixin { return []ent.Mixin{RawMixin{}} }

func (GvbRitHerkomstBestemmingUurRaw) Annotations() []schema.Annotation {
	return []schema.Annotation{entsql.Annotation{Table: "GvbRitHerkomstBestemmingUurRaw"}}
}

func (GvbRitHerkomstBestemmingUurRaw) Fields() []ent.Field {
	return []ent.Field{
		datum(),
		field.String("UurgroepOmschrijvingVanVertrek").Optional(),
		field.String("VertrekHalteCode").Optional(),
		field.String("VertrekHalteNaam").Optional(),
		field.Float("VertrekLat").Optional().Nillable(),
		field.Float("VertrekLon").Optional().Nillable(),
		field.String("AankomstHalteCode").Optional(),
		field.String("AankomstHalteNaam").Optional(),
		field.Float("AankomstLat").Optional().Nillable(),
		field.Float("AankomstLon").Optional().Nillable(),
		field.Int("AantalRitten").Optional().Nillable(),
	}
}

func (GvbRitHerkomstBestemmingUurRaw) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("Datum"),
		index.Fields("VertrekHalteCode", "AankomstHalteCode"),
	}
}

type GvbRitBestemmingUurRaw struct{ ent.Schema }

func (GvbRitBestemmingUurRaw) Mixin() []ent.Mixin { return []ent.Mixin{RawMixin{}} }

func (GvbRitBestemmingUurRaw) Annotations() []schema.Annotation {
	return []schema.Annotation{entsql.Annotation{Table: "GvbRitBestemmingUurRaw"}}
}

func (GvbRitBestemmingUurRaw) Fields() []ent.Field {
	return []ent.Field{
		datum(),
		field.String("UurgroepOmschrijvingVanAankomst").Optional(),
		field.String("AankomstHalteCode").Optional(),
		field.String("AankomstHalteNaam").Optional(),
		field.Float("AankomstLat").Optional().Nillable(),
		field.Float("AankomstLon").Optional().Nillable(),
		field.Int("AantalRitten").Optional().Nillable(),
	}
}

func (GvbRitBestemmingUurRaw) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("Datum"),
		index.Fields("AankomstHalteCode"),
	}
}

type GvbRitHerkomstUurRaw struct{ ent.Schema }

func (GvbRitHerkomstUurRaw) Mixin() []ent.Mixin { return []ent.Mixin{RawMixin{}} }

func (GvbRitHerkomstUurRaw) Annotations() []schema.Annotation {
	return []schema.Annotation{entsql.Annotation{Table: "GvbRitHerkomstUurRaw"}}
}

func (GvbRitHerkomstUurRaw) Fields() []ent.Field {
	return []ent.Field{
		datum(),
		field.String("UurgroepOmschrijvingVanVertrek").Optional(),
		field.String("VertrekHalteCode").Optional(),
		field.String("VertrekHalteNaam").Optional(),
		field.Float("VertrekLat").Optional().Nillable(),
		field.Float("VertrekLon").Optional().Nillable(),
		field.Int("AantalRitten").Optional().Nillable(),
	}
}

func (GvbRitHerkomstUurRaw) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("Datum"),
		index.Fields("VertrekHalteCode"),
	}
}
