package apps

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Value is the parsed form of a DataStoreEntry value. Exactly one variant
// exists per ValueType.
type Value interface {
	Type() ValueType
	Interface() any
	String() string
}

type StrValue string
type IntValue int64
type FloatValue float64
type BoolValue bool
type DateValue time.Time
type DateTimeValue time.Time

// JSONValue holds any decoded JSON document.
type JSONValue struct{ V any }

const DateLayout = "2006-01-02"

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (StrValue) Type() ValueType      { return ValueStr }
func (IntValue) Type() ValueType      { return ValueInt }
func (FloatValue) Type() ValueType    { return ValueFloat }
func (BoolValue) Type() ValueType     { return ValueBool }
func (JSONValue) Type() ValueType     { return ValueJSON }
func (DateValue) Type() ValueType     { return ValueDate }
func (DateTimeValue) Type() ValueType { return ValueDateTime }

func (v StrValue) Interface() any      { return string(v) }
func (v IntValue) Interface() any      { return int64(v) }
func (v FloatValue) Interface() any    { return float64(v) }
func (v BoolValue) Interface() any     { return bool(v) }
func (v JSONValue) Interface() any     { return v.V }
func (v DateValue) Interface() any     { return time.Time(v).Format(DateLayout) }
func (v DateTimeValue) Interface() any { return time.Time(v).Format(time.RFC3339) }

func (v StrValue) String() string   { return string(v) }
func (v IntValue) String() string   { return strconv.FormatInt(int64(v), 10) }
func (v FloatValue) String() string { return strconv.FormatFloat(float64(v), 'f', -1, 64) }
func (v BoolValue) String() string  { return strconv.FormatBool(bool(v)) }
func (v JSONValue) String() string {
	b, err := json.Marshal(v.V)
	if err != nil {
		return ""
	}
	return string(b)
}
func (v DateValue) String() string     { return time.Time(v).Format(DateLayout) }
func (v DateTimeValue) String() string { return time.Time(v).Format(time.RFC3339) }

// ParseValue interprets raw according to t. An empty raw string is an error
// for every type except str.
func ParseValue(t ValueType, raw string) (Value, error) {
	s := strings.TrimSpace(raw)
	if t == ValueStr || t == "" {
		if raw == "" {
			return nil, fmt.Errorf("empty value")
		}
		return StrValue(raw), nil
	}
	if s == "" {
		return nil, fmt.Errorf("empty %s value", t)
	}
	switch t {
	case ValueInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, err
		}
		return IntValue(n), nil
	case ValueFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return FloatValue(f), nil
	case ValueBool:
		switch strings.ToLower(s) {
		case "true", "1", "yes", "on":
			return BoolValue(true), nil
		case "false", "0", "no", "off":
			return BoolValue(false), nil
		}
		return nil, fmt.Errorf("invalid bool %q", s)
	case ValueJSON:
		var v any
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil, err
		}
		return JSONValue{V: v}, nil
	case ValueDate:
		tm, err := time.Parse(DateLayout, s)
		if err != nil {
			return nil, err
		}
		return DateValue(tm), nil
	case ValueDateTime:
		var lastErr error
		for _, layout := range dateTimeLayouts {
			tm, err := time.Parse(layout, s)
			if err == nil {
				return DateTimeValue(tm), nil
			}
			lastErr = err
		}
		return nil, lastErr
	}
	return nil, fmt.Errorf("unknown value type %q", t)
}

// ValidValue reports whether raw is acceptable for t. The empty string is
// always acceptable as "unset".
func ValidValue(t ValueType, raw string) bool {
	if raw == "" {
		return true
	}
	_, err := ParseValue(t, raw)
	return err == nil
}
