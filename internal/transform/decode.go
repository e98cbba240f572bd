package transform

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind tags a decoded metadata value.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindBool
	KindList
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindList:
		return "list"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// TaggedValue is a metadata value after type sniffing.
type TaggedValue struct {
	Kind  Kind
	Value any // nil, float64, bool, []string or string
}

// JSON returns the value as JSON text.
func (v TaggedValue) JSON() (string, error) {
	data, err := json.Marshal(v.Value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FileTypesKey is the metadata column holding a comma-joined list.
const FileTypesKey = "filetypes"

type rule struct {
	kind  Kind
	match func(key, raw string) (any, bool)
}

// decodeRules run in order; the first match wins.
var decodeRules = []rule{
	{KindNumber, func(_, raw string) (any, bool) {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return nil, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, false
		}
		return f, true
	}},
	{KindBool, func(_, raw string) (any, bool) {
		switch raw {
		case "true":
			return true, true
		case "false":
			return false, true
		}
		return nil, false
	}},
	{KindList, func(key, raw string) (any, bool) {
		if key != FileTypesKey {
			return nil, false
		}
		return strings.Split(raw, ","), true
	}},
	{KindString, func(_, raw string) (any, bool) {
		return raw, true
	}},
}

// DecodeValue sniffs the type of a loosely typed metadata value. A nil raw
// value is SQL NULL.
func DecodeValue(key string, raw *string) TaggedValue {
	if raw == nil {
		return TaggedValue{Kind: KindNull}
	}
	for _, r := range decodeRules {
		if v, ok := r.match(key, *raw); ok {
			return TaggedValue{Kind: r.kind, Value: v}
		}
	}
	return TaggedValue{Kind: KindString, Value: *raw}
}

// CamelCase converts a column name such as "submission_limit" to
// "submissionLimit". Non alphanumeric runes separate words, and so do case
// transitions: "fileTypes" stays "fileTypes" and "XMLHttp" becomes "xmlHttp".
func CamelCase(s string) string {
	var words []string
	for _, field := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words = append(words, splitCase(field)...)
	}
	if len(words) == 0 {
		return ""
	}

	lower := cases.Lower(language.Und)
	title := cases.Title(language.Und)

	var sb strings.Builder
	sb.WriteString(lower.String(words[0]))
	for _, w := range words[1:] {
		sb.WriteString(title.String(w))
	}
	return sb.String()
}

// splitCase splits an alphanumeric run before an upper case rune that
// follows a lower case one, and before the last rune of an upper case run
// that is followed by a lower case one.
func splitCase(field string) []string {
	runes := []rune(field)
	var words []string
	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		next := rune(0)
		if i+1 < len(runes) {
			next = runes[i+1]
		}
		lowerToUpper := (unicode.IsLower(prev) || unicode.IsDigit(prev)) && unicode.IsUpper(cur)
		acronymEnd := unicode.IsUpper(prev) && unicode.IsUpper(cur) && unicode.IsLower(next)
		if lowerToUpper || acronymEnd {
			words = append(words, string(runes[start:i]))
			start = i
		}
	}
	return append(words, string(runes[start:]))
}
