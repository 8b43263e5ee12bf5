package profile

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/opd-ai/openmail/crypto"
	"github.com/opd-ai/openmail/wire"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindDate
	KindDateTime
	KindKey
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	case KindKey:
		return "key"
	default:
		return "unknown"
	}
}

const dateLayout = "2006-01-02"

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	dateLayout,
}

// Value is a parsed profile field. Only the member matching Kind is set.
type Value struct {
	Kind Kind
	Str  string
	Bool bool
	Time time.Time
	Key  crypto.Key
}

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// BoolValue returns a bool Value.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// DateValue returns a date Value truncated to the day.
func DateValue(t time.Time) Value {
	y, m, d := t.Date()
	return Value{Kind: KindDate, Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// DateTimeValue returns a datetime Value.
func DateTimeValue(t time.Time) Value { return Value{Kind: KindDateTime, Time: t} }

// KeyValue returns a key Value.
func KeyValue(k crypto.Key) Value { return Value{Kind: KindKey, Key: k} }

// ParseValue parses raw as kind. The second result is false when raw is not
// a valid encoding of kind.
func ParseValue(kind Kind, raw string) (Value, bool) {
	raw = strings.TrimSpace(raw)

	switch kind {
	case KindString:
		return StringValue(raw), true
	case KindBool:
		return BoolValue(raw == "Yes"), true
	case KindDate:
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return Value{}, false
		}
		return DateValue(t), true
	case KindDateTime:
		t, ok := ParseDateTime(raw)
		if !ok {
			return Value{}, false
		}
		return DateTimeValue(t), true
	case KindKey:
		k, ok := ParseKey(raw)
		if !ok {
			return Value{}, false
		}
		return KeyValue(k), true
	default:
		return Value{}, false
	}
}

// Wire renders v the way it appears in a profile document.
func (v Value) Wire() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindBool:
		return wire.YesNo(v.Bool)
	case KindDate:
		return v.Time.Format(dateLayout)
	case KindDateTime:
		return FormatDateTime(v.Time)
	case KindKey:
		return FormatKey(v.Key)
	default:
		return ""
	}
}

// ParseDateTime accepts ISO-8601 date-times with or without an offset.
// Values without an offset are taken as UTC.
func ParseDateTime(raw string) (time.Time, bool) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDateTime renders t in UTC with second precision and an explicit
// "+00:00" offset.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05") + "+00:00"
}

// ParseKey parses a key attribute list ("algorithm=...; value=...; id=...").
// algorithm and value are required.
func ParseKey(raw string) (crypto.Key, bool) {
	attrs := wire.ParseAttrs(raw)

	algorithm, ok := attrs["algorithm"]
	if !ok || algorithm == "" {
		return crypto.Key{}, false
	}
	encoded, ok := attrs["value"]
	if !ok {
		return crypto.Key{}, false
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(data) == 0 {
		return crypto.Key{}, false
	}

	return crypto.Key{Data: data, Algorithm: algorithm, ID: attrs["id"]}, true
}

// FormatKey renders a key attribute list. The id is included only when set.
func FormatKey(k crypto.Key) string {
	pairs := make([]wire.Pair, 0, 3)
	if k.ID != "" {
		pairs = append(pairs, wire.P("id", k.ID))
	}
	pairs = append(pairs, wire.P("algorithm", k.Algorithm), wire.P("value", k.String()))
	return wire.Attrs(pairs...)
}
