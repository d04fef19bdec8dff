package tipy

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/now"
)

// DateTimeLayout is the layout datetime attributes are written with.
const DateTimeLayout = "2006-01-02 15:04:05"

// DateLayout is the layout date-only columns are written with.
const DateLayout = "2006-01-02"

var dateTimeLayouts = []string{
	DateTimeLayout,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	DateLayout,
}

// timeParser handles the looser formats the fixed layouts miss.
var timeParser = &now.Config{
	TimeLocation: time.UTC,
	TimeFormats:  append(append([]string{}, dateTimeLayouts...), now.TimeFormats...),
}

// coerce turns a raw driver value into the typed value of a column:
// int64, float64, time.Time or string. Integers above MaxInt64 come back
// as uint64. nil passes through.
func coerce(raw any, ft FieldType) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}

	switch ft {
	case FieldInteger:
		return toInt64(raw)
	case FieldFloat:
		return toFloat64(raw)
	case FieldDateTime:
		return toTime(raw)
	default:
		return toString(raw), nil
	}
}

func toInt64(v any) (any, error) {
	switch v := v.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		return fromUint64(uint64(v)), nil
	case uint64:
		return fromUint64(v), nil
	case float64:
		return integralFloat(v)
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case string:
		s := strings.TrimSpace(v)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return u, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("tipy: cannot coerce %q to integer: %w", v, err)
		}
		return integralFloat(f)
	}
	return nil, fmt.Errorf("tipy: cannot coerce %T to integer", v)
}

// fromUint64 keeps unsigned values above MaxInt64 as uint64.
func fromUint64(u uint64) any {
	if u <= math.MaxInt64 {
		return int64(u)
	}
	return u
}

// integralFloat accepts a float only when it is a whole number that fits in int64.
func integralFloat(f float64) (any, error) {
	if f != math.Trunc(f) || f < -(1<<63) || f >= 1<<63 {
		return nil, fmt.Errorf("tipy: cannot coerce %v to integer without loss", f)
	}
	return int64(f), nil
}

func toFloat64(v any) (any, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("tipy: cannot coerce %q to float: %w", v, err)
		}
		return f, nil
	}
	return nil, fmt.Errorf("tipy: cannot coerce %T to float", v)
}

func toTime(v any) (any, error) {
	switch v := v.(type) {
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateTimeLayouts {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return t, nil
			}
		}
		t, err := timeParser.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("tipy: cannot coerce %q to datetime: %w", v, err)
		}
		return t, nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	}
	return nil, fmt.Errorf("tipy: cannot coerce %T to datetime", v)
}

func toString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case time.Time:
		return v.Format(DateTimeLayout)
	}
	return fmt.Sprint(v)
}

// toDBValue prepares an attribute value for binding. Datetime values are
// written in DateTimeLayout so that a value read back and saved unchanged
// produces the same stored text.
func toDBValue(v any, ft FieldType) any {
	switch t := v.(type) {
	case time.Time:
		if ft == FieldDateTime || ft == FieldString {
			return t.Format(DateTimeLayout)
		}
	case *time.Time:
		if t == nil {
			return nil
		}
		return toDBValue(*t, ft)
	}
	return v
}
