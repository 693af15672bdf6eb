package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizePathSegment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Müller", "Mueller"},
		{"Jörg Straße", "Joerg_Strasse"},
		{"Rechnung.pdf", "Rechnung.pdf"},
		{"Kauf Vertrag (final).pdf", "Kauf_Vertrag_final_.pdf"},
		{"a//b\\c", "a_b_c"},
		{"  spaced  ", "spaced"},
		{"Ärger & Söhne GmbH", "Aerger_Soehne_GmbH"},
		{"André-Çelik", "Andre-Celik"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, SanitizePathSegment(tc.in), "input %q", tc.in)
	}
}
