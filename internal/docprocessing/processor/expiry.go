package processor

import (
	"regexp"
	"strings"

	"github.com/chefos/chefos-backend/internal/docprocessing/domain"
)

var (
	expiryKeywordRe = regexp.MustCompile(`(?i)(cad|caduc|caducidad|best before|consumir preferentemente)`)
	// matched against lowercased text
	labelLotRe = regexp.MustCompile(`(lot[eo]?:?\s*([a-z0-9\-_/]+)|batch\s*([a-z0-9\-_/]+))`)
)

const (
	confidenceKeywordDate = 0.9
	confidenceDate        = 0.6
	confidenceLotOnly     = 0.4
)

// ParseExpiryAndLot scans free text (typically a product label) for an expiry
// date and a lot code. Every date token is considered and the last readable
// one wins. Returns a zero-confidence suggestion with no matches when neither
// a date nor a lot code is present.
func ParseExpiryAndLot(text string) domain.ExpiryLotSuggestion {
	raw, dates := FindDates(text)

	var expiresAt *string
	confidence := 0.0
	if len(dates) > 0 {
		last := dates[len(dates)-1].ISO
		expiresAt = &last
		confidence = confidenceDate
		if expiryKeywordRe.MatchString(text) {
			confidence = confidenceKeywordDate
		}
	}

	var lotCode *string
	if m := labelLotRe.FindStringSubmatch(strings.ToLower(text)); m != nil {
		code := m[2]
		if code == "" {
			code = m[3]
		}
		if code != "" {
			code = strings.ToUpper(code)
			lotCode = &code
			raw = append(raw, code)
		}
	}

	if expiresAt == nil && lotCode == nil {
		return domain.ExpiryLotSuggestion{Confidence: 0, RawMatches: []string{}}
	}
	if expiresAt == nil {
		confidence = confidenceLotOnly
	}

	return domain.ExpiryLotSuggestion{
		ExpiresAt:  expiresAt,
		LotCode:    lotCode,
		Confidence: confidence,
		RawMatches: raw,
	}
}
