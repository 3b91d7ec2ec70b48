package constants

import "strings"

// DefaultDelimiter is the field separator used by the GVB feed files.
const DefaultDelimiter = ';'

// AllowedExtensions holds the file extensions picked up from the cache directory.
var AllowedExtensions = map[string]struct{}{
	"csv": {},
	"txt": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether ext (with or without the leading dot) can be ingested.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
