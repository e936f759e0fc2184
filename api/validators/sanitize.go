package validators

import (
	"strings"
	"unicode"
)

// SanitizeString collapses whitespace runs, drops control characters and
// truncates to maxLen runes. maxLen <= 0 disables truncation.
func SanitizeString(input string, maxLen int) string {
	var b strings.Builder
	runes := 0
	space := false
	for _, r := range strings.TrimSpace(input) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		if space {
			if maxLen > 0 && runes >= maxLen {
				break
			}
			b.WriteRune(' ')
			runes++
			space = false
		}
		if maxLen > 0 && runes >= maxLen {
			break
		}
		b.WriteRune(r)
		runes++
	}
	return strings.TrimSpace(b.String())
}
