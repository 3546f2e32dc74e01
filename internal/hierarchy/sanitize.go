package hierarchy

import (
	"strings"
)

// MaxNameLength caps sanitized directory name bases. The filesystem hard
// bound is 255 bytes per component; 200 leaves room for the id suffix.
const MaxNameLength = 200

// fallbackName is used when sanitization leaves nothing printable.
const fallbackName = "unnamed"

// reservedNames are Windows device names that cannot be used as file
// names, matched case-insensitively against the stem.
var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
	"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
	"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// SanitizeName converts an arbitrary user-supplied name into a
// filesystem-safe token: traversal sequences and path separators are
// removed, characters are normalized to a printable ASCII subset,
// whitespace and underscore runs collapse to a single underscore, leading
// and trailing dots and spaces are stripped, reserved device names are
// prefixed, and the length is capped. Deterministic; collision safety is
// ultimately provided by the id suffix, not by sanitization alone.
func SanitizeName(name string) string {
	// Drive letter prefix (C:\...) and traversal sequences.
	if len(name) >= 2 && name[1] == ':' && isASCIIAlpha(name[0]) {
		name = name[2:]
	}
	name = strings.ReplaceAll(name, "..", "")

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '(' || r == ')':
			b.WriteRune(r)
		default:
			// Separators, whitespace, control and non-ASCII characters
			// all map to underscore and collapse below.
			b.WriteByte('_')
		}
	}
	name = collapseUnderscores(b.String())

	// Leading/trailing dots and spaces are invalid on Windows; spaces
	// have already become underscores, so strip those too at the edges.
	name = strings.Trim(name, "._ ")

	if name == "" {
		return fallbackName
	}

	stem := name
	if dot := strings.IndexByte(stem, '.'); dot >= 0 {
		stem = stem[:dot]
	}
	if _, reserved := reservedNames[strings.ToUpper(stem)]; reserved {
		name = "_" + name
	}

	if len(name) > MaxNameLength {
		name = name[:MaxNameLength]
		name = strings.TrimRight(name, "._ ")
		if name == "" {
			return fallbackName
		}
	}
	return name
}

func collapseUnderscores(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevUnderscore := false
	for _, r := range s {
		if r == '_' {
			if prevUnderscore {
				continue
			}
			prevUnderscore = true
		} else {
			prevUnderscore = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isASCIIAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
