package parser

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// sentLayouts are the timestamp formats accepted for data.sent, tried in order.
var sentLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseSent interprets a sent value as either a date string or a number of
// epoch milliseconds.
func ParseSent(v any) (time.Time, error) {
	switch tv := v.(type) {
	case string:
		s := strings.TrimSpace(tv)
		for _, layout := range sentLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized time %q", tv)
	case float64:
		return fromMillis(tv)
	case int:
		return time.UnixMilli(int64(tv)), nil
	case int64:
		return time.UnixMilli(tv), nil
	case json.Number:
		f, err := tv.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("unrecognized time %q: %w", tv, err)
		}
		return fromMillis(f)
	case time.Time:
		return tv, nil
	default:
		return time.Time{}, fmt.Errorf("unsupported sent type %T", v)
	}
}

func fromMillis(ms float64) (time.Time, error) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return time.Time{}, fmt.Errorf("invalid epoch milliseconds %v", ms)
	}
	whole := math.Floor(ms)
	return time.UnixMilli(int64(whole)), nil
}
