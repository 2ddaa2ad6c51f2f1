package statement

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	fullDatePattern    = regexp.MustCompile(`\d{2}/\d{2}/\d{2,4}`)
	partialDatePattern = regexp.MustCompile(`\d{2}/\d{2}`)
	timePattern        = regexp.MustCompile(`\d{2}:\d{2}`)
	digitsPattern      = regexp.MustCompile(`[0-9]+`)
	nonLetterPattern   = regexp.MustCompile(`[^a-zA-Z\x{00C0}-\x{00FF}\s]`)
	spacesPattern      = regexp.MustCompile(`\s+`)
)

const (
	maxMerchantTokens = 3
	fallbackRunes     = 30
)

// MerchantLabel derives a short merchant name from a statement memo: dates,
// times, digits and punctuation are removed and the first three words
// longer than two letters are kept. When nothing survives the first 30
// characters of the memo are returned.
func MerchantLabel(memo string) string {
	s := fullDatePattern.ReplaceAllString(memo, "")
	s = partialDatePattern.ReplaceAllString(s, "")
	s = timePattern.ReplaceAllString(s, "")
	s = digitsPattern.ReplaceAllString(s, "")
	s = nonLetterPattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(spacesPattern.ReplaceAllString(s, " "))

	var words []string
	for _, w := range strings.Split(s, " ") {
		if utf8.RuneCountInString(w) > 2 {
			words = append(words, w)
			if len(words) == maxMerchantTokens {
				break
			}
		}
	}
	if len(words) > 0 {
		return strings.Join(words, " ")
	}
	return truncateRunes(memo, fallbackRunes)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
