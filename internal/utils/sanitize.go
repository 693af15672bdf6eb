package utils

import "strings"

// German diacritics are folded to their ASCII transliterations so customer
// names survive as S3 path segments.
var diacriticFold = map[rune]string{
	'ä': "ae", 'ö': "oe", 'ü': "ue", 'ß': "ss",
	'Ä': "Ae", 'Ö': "Oe", 'Ü': "Ue",
	'á': "a", 'à': "a", 'â': "a",
	'é': "e", 'è': "e", 'ê': "e",
	'í': "i", 'ì': "i", 'î': "i",
	'ó': "o", 'ò': "o", 'ô': "o",
	'ú': "u", 'ù': "u", 'û': "u",
	'ç': "c", 'ñ': "n",
	'É': "E", 'È': "E", 'Ç': "C",
}

// SanitizePathSegment folds diacritics and collapses anything outside
// [A-Za-z0-9.-] into underscores, suitable for use as an object storage key
// segment. Consecutive underscores are collapsed and the result is trimmed.
func SanitizePathSegment(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if folded, ok := diacriticFold[r]; ok {
			sb.WriteString(folded)
			continue
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	out := sb.String()
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return strings.Trim(out, "_")
}
