package service

import (
	"strings"
)

const (
	dedupeDelimiter  = "|"
	dedupeRawTextLen = 120
)

// DedupeKeyParams are the delivery note fields that identify a repeated upload
type DedupeKeyParams struct {
	OrgID              string
	SupplierName       *string
	DeliveryNoteNumber *string
	DeliveredAt        *string
	RawText            *string
}

// BuildShipmentDedupeKey joins the org, the lowercased supplier and note
// number, the delivery date and the first 120 characters of the raw text.
// The key is a hint: the unique index on inbound_shipments is what rejects a
// repeated upload.
func BuildShipmentDedupeKey(p DedupeKeyParams) string {
	raw := []rune(strings.TrimSpace(deref(p.RawText)))
	if len(raw) > dedupeRawTextLen {
		raw = raw[:dedupeRawTextLen]
	}

	return strings.Join([]string{
		p.OrgID,
		strings.TrimSpace(strings.ToLower(deref(p.SupplierName))),
		strings.TrimSpace(strings.ToLower(deref(p.DeliveryNoteNumber))),
		deref(p.DeliveredAt),
		string(raw),
	}, dedupeDelimiter)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
