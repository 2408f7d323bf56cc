package ledger

import (
	"testing"

	lapiv2 "github.com/chainsafe/canton-middleware/pkg/canton/lapi/v2"
)

func text(s string) *lapiv2.Value {
	return &lapiv2.Value{Sum: &lapiv2.Value_Text{Text: s}}
}

func numeric(s string) *lapiv2.Value {
	return &lapiv2.Value{Sum: &lapiv2.Value_Numeric{Numeric: s}}
}

func party(s string) *lapiv2.Value {
	return &lapiv2.Value{Sum: &lapiv2.Value_Party{Party: s}}
}

func record(fields map[string]string) *lapiv2.Value {
	r := &lapiv2.Record{}
	for label, value := range fields {
		r.Fields = append(r.Fields, &lapiv2.RecordField{Label: label, Value: text(value)})
	}
	return &lapiv2.Value{Sum: &lapiv2.Value_Record{Record: r}}
}

func TestExtractorsZeroOnMismatch(t *testing.T) {
	tests := []struct {
		name string
		got  string
	}{
		{"numeric from text", ExtractNumeric(text("5"))},
		{"text from numeric", ExtractText(numeric("5"))},
		{"party from text", ExtractParty(text("alice"))},
		{"contract id from text", ExtractContractID(text("cid"))},
		{"variant from text", ExtractVariantConstructor(text("Completed"))},
		{"numeric from nil", ExtractNumeric(nil)},
		{"text from nil", ExtractText(nil)},
		{"party from nil", ExtractParty(nil)},
		{"contract id from nil", ExtractContractID(nil)},
		{"variant from nil", ExtractVariantConstructor(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != "" {
				t.Errorf("got %q, want empty string", tt.got)
			}
		})
	}
}

func TestExtractorsMatchingCase(t *testing.T) {
	if got := ExtractNumeric(numeric("100.5")); got != "100.5" {
		t.Errorf("ExtractNumeric() = %q, want 100.5", got)
	}
	if got := ExtractText(text("hello")); got != "hello" {
		t.Errorf("ExtractText() = %q, want hello", got)
	}
	if got := ExtractParty(party("alice::1220abc")); got != "alice::1220abc" {
		t.Errorf("ExtractParty() = %q, want alice::1220abc", got)
	}
	cid := &lapiv2.Value{Sum: &lapiv2.Value_ContractId{ContractId: "00aabb"}}
	if got := ExtractContractID(cid); got != "00aabb" {
		t.Errorf("ExtractContractID() = %q, want 00aabb", got)
	}
	variant := &lapiv2.Value{Sum: &lapiv2.Value_Variant{Variant: &lapiv2.Variant{Constructor: "Completed"}}}
	if got := ExtractVariantConstructor(variant); got != "Completed" {
		t.Errorf("ExtractVariantConstructor() = %q, want Completed", got)
	}
}

func TestExtractMetaTokenIDPriority(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		want   string
	}{
		{"tokenId beats symbol", map[string]string{"symbol": "SYM", "tokenId": "TOK"}, "TOK"},
		{"tokenId beats everything", map[string]string{"name": "N", "assetId": "A", "tokenId": "TOK"}, "TOK"},
		{"id before instrumentId", map[string]string{"instrumentId": "INST", "id": "ID"}, "ID"},
		{"symbol before name", map[string]string{"name": "Prompt Token", "symbol": "PROMPT"}, "PROMPT"},
		{"name as last resort", map[string]string{"name": "Prompt Token"}, "Prompt Token"},
		{"empty preferred field skipped", map[string]string{"tokenId": "", "symbol": "PROMPT"}, "PROMPT"},
		{"no identifier fields", map[string]string{"decimals": "18"}, ""},
		{"empty record", map[string]string{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractMetaTokenID(record(tt.fields)); got != tt.want {
				t.Errorf("ExtractMetaTokenID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractMetaTokenIDNonRecord(t *testing.T) {
	if got := ExtractMetaTokenID(text("BARE")); got != "BARE" {
		t.Errorf("ExtractMetaTokenID(text) = %q, want BARE", got)
	}
	if got := ExtractMetaTokenID(numeric("5")); got != "" {
		t.Errorf("ExtractMetaTokenID(numeric) = %q, want empty", got)
	}
	if got := ExtractMetaTokenID(nil); got != "" {
		t.Errorf("ExtractMetaTokenID(nil) = %q, want empty", got)
	}
}

func TestExtractMetaTokenIDNonTextPreferredField(t *testing.T) {
	// A preferred label whose value is not text is skipped in favor of the
	// next label that decodes.
	r := &lapiv2.Record{Fields: []*lapiv2.RecordField{
		{Label: "tokenId", Value: numeric("42")},
		{Label: "symbol", Value: text("PROMPT")},
	}}
	v := &lapiv2.Value{Sum: &lapiv2.Value_Record{Record: r}}
	if got := ExtractMetaTokenID(v); got != "PROMPT" {
		t.Errorf("ExtractMetaTokenID() = %q, want PROMPT", got)
	}
}

func TestDescribeValue(t *testing.T) {
	tests := []struct {
		name string
		v    *lapiv2.Value
		want string
	}{
		{"nil", nil, "<nil>"},
		{"text", text("hello"), "hello"},
		{"numeric", numeric("1.5"), "1.5"},
		{"int64", &lapiv2.Value{Sum: &lapiv2.Value_Int64{Int64: 42}}, "42"},
		{"bool", &lapiv2.Value{Sum: &lapiv2.Value_Bool{Bool: true}}, "true"},
		{"short party", party("alice::1220abc"), "alice::1220abc"},
		{"contract id", &lapiv2.Value{Sum: &lapiv2.Value_ContractId{ContractId: "00112233445566778899aabbccdd"}}, "00112233445566778..."},
		{"timestamp", &lapiv2.Value{Sum: &lapiv2.Value_Timestamp{Timestamp: 1700000000000000}}, "ts:1700000000000000"},
		{"record", record(map[string]string{"a": "b"}), "<record>"},
		{"empty list", &lapiv2.Value{Sum: &lapiv2.Value_List{List: &lapiv2.List{}}}, "<list:0>"},
		{"none", &lapiv2.Value{Sum: &lapiv2.Value_Optional{Optional: &lapiv2.Optional{}}}, "None"},
		{"some", &lapiv2.Value{Sum: &lapiv2.Value_Optional{Optional: &lapiv2.Optional{Value: text("x")}}}, "Some(x)"},
		{"variant", &lapiv2.Value{Sum: &lapiv2.Value_Variant{Variant: &lapiv2.Variant{Constructor: "Completed"}}}, "Completed(...)"},
		{"enum", &lapiv2.Value{Sum: &lapiv2.Value_Enum{Enum: &lapiv2.Enum{Constructor: "Red"}}}, "Red"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DescribeValue(tt.v); got != tt.want {
				t.Errorf("DescribeValue() = %q, want %q", got, tt.want)
			}
		})
	}
}
