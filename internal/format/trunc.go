package format

import "unicode/utf8"

// TruncRunes returns s truncated to at most n runes. When anything is cut
// the last kept rune becomes an ellipsis "…", so the bound includes it.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if RuneLen(s) <= n {
		return s
	}
	cut := 0
	seen := 0
	for i := range s {
		if seen == n-1 {
			cut = i
			break
		}
		seen++
	}
	return s[:cut] + "…"
}

// RuneLen reports the rune count of s. Channel limits are rune-based, not
// byte-based, so multi-byte currency and ellipsis characters count as one.
func RuneLen(s string) int { return utf8.RuneCountInString(s) }
