// Package textutil holds the pure text-normalization helpers shared by the
// resolver and the record pipeline: diacritic folding, slug generation, and
// the parsers that pull numbers, prices, counts and dates out of the free-text
// fields the site serves.
package textutil

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold strips diacritics, lower-cases and trims the input. The Vietnamese
// đ/Đ pair does not decompose under NFD and is replaced explicitly.
func Fold(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	folded = strings.NewReplacer("đ", "d", "Đ", "D").Replace(folded)
	return strings.ToLower(strings.TrimSpace(folded))
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify folds s and collapses every non-alphanumeric run into a hyphen.
func Slugify(s string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(Fold(s), "-"), "-")
}

// WordSet returns the set of folded words in s.
func WordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(nonAlnum.ReplaceAllString(Fold(s), " ")) {
		set[w] = struct{}{}
	}
	return set
}

// SharedWords counts words present in both sets.
func SharedWords(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}

// EqualWordSets reports whether both sets hold exactly the same words.
func EqualWordSets(a, b map[string]struct{}) bool {
	return len(a) == len(b) && SharedWords(a, b) == len(a)
}

// SubsetWords reports whether a is a subset of b or b a subset of a.
func SubsetWords(a, b map[string]struct{}) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	shared := SharedWords(a, b)
	return shared == len(a) || shared == len(b)
}

var (
	numberPattern    = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	thousandsPattern = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
)

// ParseNumber extracts the first decimal number from free text. A comma is
// read as the decimal separator ("6,3" -> 6.3); dot-grouped digit runs are
// read as thousands separators ("6.300" -> 6300).
func ParseNumber(text string) (float64, bool) {
	match := numberPattern.FindString(text)
	if match == "" {
		return 0, false
	}
	if thousandsPattern.MatchString(match) {
		match = strings.ReplaceAll(match, ".", "")
	} else {
		match = strings.ReplaceAll(match, ",", ".")
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseArea extracts a numeric area in m² from free text ("100 m²" -> 100).
func ParseArea(text string) (float64, bool) {
	return ParseNumber(text)
}

// Price units reported by ParsePrice.
const (
	PriceUnitTotal    = "total"
	PriceUnitPerMonth = "per_month"
)

// ParsePrice converts a price phrase into an absolute numeric value.
// A "tỷ" token scales by 1e9 and a "triệu" token by 1e6, so "6,3 tỷ"
// yields 6300000000. A monthly marker ("/tháng") switches the unit to
// per_month. Negotiable prices ("thỏa thuận") carry no number.
func ParsePrice(text string) (float64, string, bool) {
	folded := Fold(text)
	if folded == "" || strings.Contains(folded, "thoa thuan") {
		return 0, "", false
	}
	value, ok := ParseNumber(folded)
	if !ok {
		return 0, "", false
	}
	switch {
	case containsWord(folded, "ty"):
		value *= 1e9
	case containsWord(folded, "trieu"):
		value *= 1e6
	case containsWord(folded, "nghin"):
		value *= 1e3
	}
	unit := PriceUnitTotal
	if containsWord(folded, "thang") {
		unit = PriceUnitPerMonth
	}
	return value, unit, true
}

func containsWord(folded, word string) bool {
	for _, w := range strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if w == word {
			return true
		}
	}
	return false
}

var spelledCounts = map[string]int{
	"mot": 1, "hai": 2, "ba": 3, "bon": 4, "tu": 4,
	"nam": 5, "sau": 6, "bay": 7, "tam": 8, "chin": 9, "muoi": 10,
}

var digitsPattern = regexp.MustCompile(`\d+`)

// ParseCount reads a small cardinal from free text, accepting both digits
// ("3 phòng") and spelled-out Vietnamese numerals ("ba phòng").
func ParseCount(text string) (int, bool) {
	if m := digitsPattern.FindString(text); m != "" {
		n, err := strconv.Atoi(m)
		if err == nil {
			return n, true
		}
	}
	for _, word := range strings.Fields(Fold(text)) {
		if n, ok := spelledCounts[word]; ok {
			return n, true
		}
	}
	return 0, false
}

var dateLayouts = []string{"2006-01-02", "02/01/2006"}

// ParseDate accepts the two date shapes seen in the wild: ISO dates coming
// from form inputs and DD/MM/YYYY dates scraped off listing pages.
func ParseDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var coordsPattern = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*$`)

// ParseCoords splits a "lat,lng" pair.
func ParseCoords(text string) (float64, float64, bool) {
	m := coordsPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(m[1], 64)
	lng, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lat, lng, true
}
