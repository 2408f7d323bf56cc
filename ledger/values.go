// Package ledger wraps the Canton Ledger API v2 connection plumbing and the
// decoding of its generic tagged-value representation into plain Go scalars.
package ledger

import (
	"fmt"

	lapiv2 "github.com/chainsafe/canton-middleware/pkg/canton/lapi/v2"
)

// The extractors below decode one concrete case of the Value oneof. A nil
// value or a mismatched case decodes to the zero value; record fields on
// ledger contracts are not guaranteed to carry the type a template suggests,
// and a missing field must never abort a reconciliation pass.

// ExtractNumeric returns the decimal string of a numeric value.
func ExtractNumeric(v *lapiv2.Value) string {
	if v == nil {
		return ""
	}
	if n, ok := v.Sum.(*lapiv2.Value_Numeric); ok {
		return n.Numeric
	}
	return ""
}

// ExtractText returns the contents of a text value.
func ExtractText(v *lapiv2.Value) string {
	if v == nil {
		return ""
	}
	if t, ok := v.Sum.(*lapiv2.Value_Text); ok {
		return t.Text
	}
	return ""
}

// ExtractParty returns a party identifier value.
func ExtractParty(v *lapiv2.Value) string {
	if v == nil {
		return ""
	}
	if p, ok := v.Sum.(*lapiv2.Value_Party); ok {
		return p.Party
	}
	return ""
}

// ExtractContractID returns a contract ID value.
func ExtractContractID(v *lapiv2.Value) string {
	if v == nil {
		return ""
	}
	if c, ok := v.Sum.(*lapiv2.Value_ContractId); ok {
		return c.ContractId
	}
	return ""
}

// ExtractVariantConstructor returns the constructor name of a variant value.
func ExtractVariantConstructor(v *lapiv2.Value) string {
	if v == nil {
		return ""
	}
	if va, ok := v.Sum.(*lapiv2.Value_Variant); ok && va.Variant != nil {
		return va.Variant.Constructor
	}
	return ""
}

// metaTokenFields is the priority order of sub-fields consulted when
// resolving a token identifier out of a holding's meta record.
var metaTokenFields = []string{"tokenId", "id", "instrumentId", "assetId", "symbol", "name"}

// ExtractMetaTokenID resolves a token identifier from a meta record field.
// Labels are tried in priority order regardless of the record's own field
// order; the first non-empty text wins. A non-record meta value falls back
// to direct text extraction.
func ExtractMetaTokenID(v *lapiv2.Value) string {
	if v == nil {
		return ""
	}
	if rec, ok := v.Sum.(*lapiv2.Value_Record); ok && rec.Record != nil {
		for _, label := range metaTokenFields {
			for _, field := range rec.Record.Fields {
				if field.Label != label {
					continue
				}
				if text := ExtractText(field.Value); text != "" {
					return text
				}
			}
		}
		return ""
	}
	return ExtractText(v)
}

// DescribeValue renders any value case as a short display string. Containers
// are summarized rather than recursed into, except Optional which shows its
// payload. Used for field dumps in debug output.
func DescribeValue(v *lapiv2.Value) string {
	if v == nil {
		return "<nil>"
	}
	switch val := v.Sum.(type) {
	case *lapiv2.Value_Text:
		return val.Text
	case *lapiv2.Value_Int64:
		return fmt.Sprintf("%d", val.Int64)
	case *lapiv2.Value_Numeric:
		return val.Numeric
	case *lapiv2.Value_Bool:
		return fmt.Sprintf("%v", val.Bool)
	case *lapiv2.Value_Party:
		return TruncateParty(val.Party)
	case *lapiv2.Value_ContractId:
		return TruncateHash(val.ContractId)
	case *lapiv2.Value_Timestamp:
		return fmt.Sprintf("ts:%d", val.Timestamp)
	case *lapiv2.Value_Record:
		return "<record>"
	case *lapiv2.Value_List:
		return fmt.Sprintf("<list:%d>", len(val.List.Elements))
	case *lapiv2.Value_Optional:
		if val.Optional.Value == nil {
			return "None"
		}
		return "Some(" + DescribeValue(val.Optional.Value) + ")"
	case *lapiv2.Value_Variant:
		return fmt.Sprintf("%s(...)", val.Variant.Constructor)
	case *lapiv2.Value_Enum:
		return val.Enum.Constructor
	default:
		return "<unknown>"
	}
}
