package hierarchy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Pilot", "Pilot"},
		{"spaces collapse", "Scene  1", "Scene_1"},
		{"allowed punctuation", "Take-2.final(v3)", "Take-2.final(v3)"},
		{"path separators", "a/b\\c", "a_b_c"},
		{"traversal removed", "../../etc/passwd", "etc_passwd"},
		{"drive letter stripped", `C:\Takes`, "Takes"},
		{"non-ascii replaced", "Café", "Caf"},
		{"leading trailing dots", "...take...", "take"},
		{"empty", "", "unnamed"},
		{"only symbols", "///***", "unnamed"},
		{"reserved device name", "CON", "_CON"},
		{"reserved stem with extension", "con.take", "_con.take"},
		{"reserved lowercase", "lpt1", "_lpt1"},
		{"not reserved", "CONSOLE", "CONSOLE"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SanitizeName(tc.in)
			assert.Equal(t, tc.want, got)
			assert.NotContains(t, got, "/")
			assert.NotContains(t, got, "\\")
			assert.NotContains(t, got, "..")
			assert.NotEmpty(t, got)
		})
	}
}

func TestSanitizeNameDeterministic(t *testing.T) {
	in := "Scene 12: Rooftop / Night"
	assert.Equal(t, SanitizeName(in), SanitizeName(in))
}

func TestSanitizeNameCapsLength(t *testing.T) {
	long := strings.Repeat("a", 500)
	got := SanitizeName(long)
	assert.Len(t, got, MaxNameLength)

	// Truncation must not leave a trailing dot behind.
	dotted := strings.Repeat("a", MaxNameLength-1) + "." + strings.Repeat("b", 100)
	got = SanitizeName(dotted)
	assert.False(t, strings.HasSuffix(got, "."))
}
