package processor

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/chefos/chefos-backend/internal/docprocessing/domain"
)

// WarningNoLines is reported when no line of the document looks like an item
const WarningNoLines = "No se pudieron estructurar líneas automáticamente"

const maxSupplierNameLen = 80

var (
	lineSplitRe = regexp.MustCompile(`\r?\n`)

	// "Albarán nº: A-2024-118", "ALB. 1234", "Número 55"
	noteNumberRe = regexp.MustCompile(`(?i)(albar[aá]n|alb\.?|nº|n\.|numero|número)(?:\s*(?:n[º°]|n\.|n[uú]m(?:ero)?\.?))?\s*[:-]?\s*([A-Za-z0-9-]+)`)

	// matched against accent-folded lowercase text
	noiseLineRe = regexp.MustCompile(`(albar|fecha|proveedor)`)

	itemLineRe = regexp.MustCompile(`(?i)^(.+?)\s+(\d+(?:[.,]\d+)?)\s*(kgs?|kilos?|unidad(?:es)?|uds?|u\.?|pzs?|cajas?|pack)?`)
	lineLotRe  = regexp.MustCompile(`(?i)(lot[eo]|batch)\s*[:-]?\s*([A-Za-z0-9_/-]+)`)
)

// ParseDeliveryNote structures the OCR text of a delivery note into a header
// and candidate lines. It never fails: text it cannot structure yields no
// lines and a warning.
func ParseDeliveryNote(text string) domain.ParsedDeliveryNote {
	lines := splitLines(text)
	joined := strings.Join(lines, " ")

	note := domain.ParsedDeliveryNote{
		Header:   parseHeader(lines, joined),
		Lines:    []domain.ParsedDeliveryLine{},
		RawText:  text,
		Warnings: []string{},
	}

	for _, l := range lines {
		if noiseLineRe.MatchString(FoldAccents(l)) {
			continue
		}
		if parsed, ok := parseItemLine(l); ok {
			note.Lines = append(note.Lines, parsed)
		}
	}

	if len(note.Lines) == 0 {
		note.Warnings = append(note.Warnings, WarningNoLines)
	}
	return note
}

func splitLines(text string) []string {
	var out []string
	for _, l := range lineSplitRe.Split(text, -1) {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func parseHeader(lines []string, joined string) domain.ParsedDeliveryHeader {
	var h domain.ParsedDeliveryHeader

	if name := supplierName(lines); name != "" && utf8.RuneCountInString(name) <= maxSupplierNameLen {
		h.SupplierName = &name
	}
	if m := noteNumberRe.FindStringSubmatch(joined); m != nil {
		number := m[2]
		h.DeliveryNoteNumber = &number
	}
	h.DeliveredAt = FirstDate(joined)
	return h
}

// supplierName picks the letterhead: the first all-uppercase line, or the first line
func supplierName(lines []string) string {
	for _, l := range lines {
		if utf8.RuneCountInString(l) > 3 && l == strings.ToUpper(l) && hasLetter(l) {
			return l
		}
	}
	if len(lines) > 0 {
		return lines[0]
	}
	return ""
}

func parseItemLine(line string) (domain.ParsedDeliveryLine, bool) {
	m := itemLineRe.FindStringSubmatch(line)
	if m == nil {
		return domain.ParsedDeliveryLine{}, false
	}

	parsed := domain.ParsedDeliveryLine{Description: strings.TrimSpace(m[1])}
	if qty, ok := ParseQuantity(m[2]); ok {
		parsed.Qty = &qty
	}
	if m[3] != "" {
		unit := NormalizeUnit(m[3])
		parsed.Unit = &unit
	}
	if lot := lineLotRe.FindStringSubmatch(line); lot != nil {
		code := strings.ToUpper(lot[2])
		parsed.LotCode = &code
	}
	parsed.ExpiresAt = FirstDate(line)
	return parsed, true
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
