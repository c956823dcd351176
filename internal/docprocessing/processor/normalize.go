package processor

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// dateTokenRe finds date-like tokens: dd/mm/yy(yy) with . / - separators, or yyyy-mm-dd
var dateTokenRe = regexp.MustCompile(`\b(\d{2}[./-]\d{2}[./-]\d{2,4}|\d{4}-\d{2}-\d{2})\b`)

var nonDigitRe = regexp.MustCompile(`\D`)

// DateCandidate is a date token read by one of the date matchers
type DateCandidate struct {
	Raw        string  `json:"raw"`
	ISO        string  `json:"iso"`
	Matcher    string  `json:"matcher"`
	Confidence float64 `json:"confidence"`
}

type dateMatcher struct {
	name       string
	confidence float64
	applies    func(token, digits string) bool
	read       func(digits string) (year, month, day int)
}

// dateMatchers are tried in order; the first one that yields an in-range date wins.
// Documents print dates day first unless the token itself starts with a 20xx year.
var dateMatchers = []dateMatcher{
	{
		name:       "year-first",
		confidence: 0.9,
		applies: func(token, digits string) bool {
			return len(digits) == 8 && yearFirst(token)
		},
		read: func(d string) (int, int, int) {
			return atoi(d[0:4]), atoi(d[4:6]), atoi(d[6:8])
		},
	},
	{
		name:       "day-first-8",
		confidence: 0.8,
		applies: func(token, digits string) bool {
			return len(digits) == 8 && !yearFirst(token)
		},
		read: func(d string) (int, int, int) {
			return atoi(d[4:8]), atoi(d[2:4]), atoi(d[0:2])
		},
	},
	{
		name:       "day-first-6",
		confidence: 0.6,
		applies: func(token, digits string) bool {
			return len(digits) == 6
		},
		read: func(d string) (int, int, int) {
			yy := atoi(d[4:6])
			year := 2000 + yy
			if yy >= 70 {
				year = 1900 + yy
			}
			return year, atoi(d[2:4]), atoi(d[0:2])
		},
	},
}

// NormalizeDate reads a single date token into ISO form (YYYY-MM-DD).
// It only range-checks month 1-12 and day 1-31, so 30/02 is accepted and
// rolls over the way the calendar does. ok is false for anything else.
func NormalizeDate(token string) (DateCandidate, bool) {
	digits := nonDigitRe.ReplaceAllString(token, "")
	for _, m := range dateMatchers {
		if !m.applies(token, digits) {
			continue
		}
		year, month, day := m.read(digits)
		if year == 0 || month < 1 || month > 12 || day < 1 || day > 31 {
			continue
		}
		iso := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		return DateCandidate{Raw: token, ISO: iso, Matcher: m.name, Confidence: m.confidence}, true
	}
	return DateCandidate{}, false
}

// FindDates returns every date token in text in document order, with the
// candidates that could be read. Tokens that no matcher accepts are only in raw.
func FindDates(text string) (raw []string, dates []DateCandidate) {
	for _, m := range dateTokenRe.FindAllStringSubmatch(text, -1) {
		raw = append(raw, m[1])
		if c, ok := NormalizeDate(m[1]); ok {
			dates = append(dates, c)
		}
	}
	return raw, dates
}

// FirstDate reads the first date token in text. A first token that cannot be
// read yields nothing; later tokens are not consulted.
func FirstDate(text string) *string {
	m := dateTokenRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	c, ok := NormalizeDate(m[1])
	if !ok {
		return nil
	}
	return &c.ISO
}

// NormalizeUnit maps unit synonyms to kg or ud; anything else passes through unchanged
func NormalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	switch {
	case u == "":
		return unit
	case strings.HasPrefix(u, "kg"), strings.HasPrefix(u, "kilo"):
		return "kg"
	case u == "ud", u == "uds", u == "u", u == "u.", u == "pz", u == "pzs", strings.HasPrefix(u, "unidad"):
		return "ud"
	default:
		return unit
	}
}

// ParseQuantity reads a decimal written with . or , as separator
func ParseQuantity(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.Replace(strings.TrimSpace(s), ",", ".", 1))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// FoldAccents lowercases s and strips diacritics, so "ALBARÁN" becomes "albaran"
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(folded)
}

func yearFirst(token string) bool {
	return len(leadingDigits(token)) == 4 && strings.HasPrefix(token, "20")
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
