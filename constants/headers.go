package constants

import "strings"

// Columns every destination table carries that never appear in a source file.
const (
	IdentityField = "Id"
	JobTagField   = "JobId"
)

// legacyHeaders maps header spellings used by older GVB exports to the
// canonical column names. Keys are compared after trimming.
var legacyHeaders = map[string]string{
	"UurgroepOmschrijving (van aankomst)": "UurgroepOmschrijvingVanAankomst",
	"UurgroepOmschrijving (van vertrek)":  "UurgroepOmschrijvingVanVertrek",
}

// LegacyHeaders returns a copy of the legacy header table.
func LegacyHeaders() map[string]string {
	out := make(map[string]string, len(legacyHeaders))
	for k, v := range legacyHeaders {
		out[k] = v
	}
	return out
}

// CanonicalHeader trims a raw header cell, drops a UTF-8 byte order mark and
// rewrites known legacy spellings. The bool reports whether a rename happened.
func CanonicalHeader(raw string) (string, bool) {
	h := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
	if canonical, ok := legacyHeaders[h]; ok {
		return canonical, true
	}
	return h, false
}

// IsTagField reports whether name is one of the generated identity/job-tag columns.
func IsTagField(name string) bool {
	return name == IdentityField || name == JobTagField
}
