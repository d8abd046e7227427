package matcher

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Mix/edit suffixes that labels append to otherwise identical tracks. Stripping
// them lets "Song (Extended Mix)" match "Song" when nothing closer exists.
var suffixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)[\(\[]original mix[\)\]]`),
	regexp.MustCompile(`(?i)[\(\[]original version[\)\]]`),
	regexp.MustCompile(`(?i)[\(\[]original[\)\]]`),
	regexp.MustCompile(`(?i)original mix`),
	regexp.MustCompile(`(?i)[\(\[]extended mix[\)\]]`),
	regexp.MustCompile(`(?i)[\(\[]extended version[\)\]]`),
	regexp.MustCompile(`(?i)extended mix`),
	regexp.MustCompile(`(?i)[\(\[]radio mix[\)\]]`),
	regexp.MustCompile(`(?i)[\(\[]radio edit[\)\]]`),
	regexp.MustCompile(`(?i)radio edit`),
	regexp.MustCompile(`(?i)[\(\[]bootleg[\)\]]`),
}

var featPattern = regexp.MustCompile(`(?i)[\(\[]?\s*(?:feat\.?|ft\.?|featuring)\s+[^\)\]]*[\)\]]?`)

// artistDelimiters splits a combined artist credit into individual names.
var artistDelimiters = regexp.MustCompile(`,|\s&\s|vs\.|\n|ft\.|feat\.|featuring|\s/\s|;\s`)

var whitespace = regexp.MustCompile(`\s+`)

// stripAccents decomposes the string and drops combining marks, so "Beyoncé"
// compares equal to "Beyonce".
func stripAccents(s string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func stripPunctuation(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Normalize folds a title or artist string for comparison: case-folded,
// accent-stripped, punctuation removed, whitespace collapsed.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = stripAccents(s)
	s = stripPunctuation(s)
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// StripSuffixes removes mix/edit annotations from a track title.
func StripSuffixes(title string) string {
	for _, p := range suffixPatterns {
		title = p.ReplaceAllString(title, "")
	}
	return strings.TrimSpace(title)
}

// StripFeaturing removes featuring-artist annotations from a track title.
func StripFeaturing(title string) string {
	return strings.TrimSpace(featPattern.ReplaceAllString(title, ""))
}

// TitleVariants returns the normalized forms a title should be compared under:
// as written, without featuring credits, and without mix suffixes.
func TitleVariants(title string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range []string{
		title,
		StripFeaturing(title),
		StripSuffixes(title),
		StripSuffixes(StripFeaturing(title)),
	} {
		n := Normalize(v)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// SplitArtists breaks a combined artist credit ("A feat. B & C") into
// normalized individual names.
func SplitArtists(artist string) []string {
	var out []string
	for _, part := range artistDelimiters.Split(artist, -1) {
		n := Normalize(part)
		if n != "" {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		out = append(out, Normalize(artist))
	}
	return out
}

// QueryKey builds the canonical search-cache key for a (title, artist) pair.
// Two local tracks with equivalent titles and artists share one cache entry.
func QueryKey(title, artist string) string {
	return Normalize(title) + "|" + Normalize(artist)
}
