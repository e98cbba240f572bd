package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		key      string
		raw      *string
		wantKind Kind
		wantJSON string
	}{
		{"null", "submission_limit", nil, KindNull, "null"},
		{"integer", "submission_limit", ptr("5"), KindNumber, "5"},
		{"float", "submission_limit", ptr("2.5"), KindNumber, "2.5"},
		{"padded number", "submission_limit", ptr(" 7 "), KindNumber, "7"},
		{"true", "allow_stock_art", ptr("true"), KindBool, "true"},
		{"false", "submissions_viewable", ptr("false"), KindBool, "false"},
		{"capitalised bool stays a string", "allow_stock_art", ptr("True"), KindString, `"True"`},
		{"file types", FileTypesKey, ptr("doc,pdf"), KindList, `["doc","pdf"]`},
		{"single file type", FileTypesKey, ptr("zip"), KindList, `["zip"]`},
		{"numeric file types wins as number", FileTypesKey, ptr("7"), KindNumber, "7"},
		{"empty string", "submission_limit", ptr(""), KindString, `""`},
		{"infinity", "submission_limit", ptr("Infinity"), KindString, `"Infinity"`},
		{"nan", "submission_limit", ptr("NaN"), KindString, `"NaN"`},
		{"text", "other", ptr("on request"), KindString, `"on request"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := DecodeValue(tt.key, tt.raw)
			assert.Equal(t, tt.wantKind, v.Kind, v.Kind.String())
			text, err := v.JSON()
			require.NoError(t, err)
			assert.Equal(t, tt.wantJSON, text)
		})
	}
}

func TestDecodeValue_IdempotentOnTypedValues(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"5", "2.5", "true", "false", "0"} {
		first, err := DecodeValue("submission_limit", &raw).JSON()
		require.NoError(t, err)
		second, err := DecodeValue("submission_limit", &first).JSON()
		require.NoError(t, err)
		assert.Equal(t, first, second, raw)
	}
}

func TestCamelCase(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"submission_limit":     "submissionLimit",
		"allow_stock_art":      "allowStockArt",
		"submissions_viewable": "submissionsViewable",
		"filetypes":            "filetypes",
		"ALLOW_STOCK_ART":      "allowStockArt",
		"__file--types__":      "fileTypes",
		"fileTypes":            "fileTypes",
		"FileTypes":            "fileTypes",
		"XMLHttpRequest":       "xmlHttpRequest",
		"review_type2Name":     "reviewType2Name",
		"":                     "",
	}
	for in, want := range tests {
		assert.Equal(t, want, CamelCase(in), in)
	}
}
