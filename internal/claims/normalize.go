package claims

import (
	"regexp"
	"strings"
)

var (
	spaceRun     = regexp.MustCompile(`[ \t\r\n]+`)
	thousandsSep = regexp.MustCompile(`(\d),(\d{3})\b`)
	percentWord  = regexp.MustCompile(`(\d(?:\.\d+)?)\s*percent(?:age points?)?`)
	numSpace     = regexp.MustCompile(`(\d)\s+(%)`)
)

var punctReplacer = strings.NewReplacer(
	"“", `"`, "”", `"`,
	"‘", "'", "’", "'",
	"–", "-", "—", "-", "−", "-",
	" ", " ", " ", " ",
	"…", "...",
)

// normalize prepares text for matching: lowercase, straight punctuation,
// "18 percent" folded to "18%", thousands separators removed, whitespace
// collapsed. Applied identically to claim spans and source content so the
// two sides meet in one canonical form.
func normalize(s string) string {
	s = punctReplacer.Replace(s)
	s = strings.ToLower(s)
	s = percentWord.ReplaceAllString(s, "$1%")
	for thousandsSep.MatchString(s) {
		s = thousandsSep.ReplaceAllString(s, "$1$2")
	}
	s = numSpace.ReplaceAllString(s, "$1$2")
	s = spaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// spanVariants returns alternative normalized renderings of a claim span
// tolerant of formatting differences between draft and source.
func spanVariants(span string) []string {
	base := normalize(span)
	variants := []string{base}

	if strings.Contains(base, "%") {
		variants = append(variants, strings.ReplaceAll(base, "%", " percent"))
	}
	if strings.Contains(base, "$") {
		variants = append(variants, strings.TrimSpace(strings.ReplaceAll(base, "$", ""))+" dollars")
	}
	// "1.8 million" <-> "1.8m" style compaction.
	compact := strings.NewReplacer(" million", "m", " billion", "bn", " thousand", "k").Replace(base)
	if compact != base {
		variants = append(variants, compact)
	}
	return variants
}

var numberToken = regexp.MustCompile(`\d[\d]*(?:\.\d+)?`)

// numbersIn extracts the numeric tokens of an already-normalized string.
func numbersIn(s string) []string {
	return numberToken.FindAllString(s, -1)
}
