package webhook

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// flexString accepts JSON strings and numbers. Providers are not consistent
// about quoting identifiers.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(strings.TrimSpace(v))
		return nil
	}
	if b[0] == '{' || b[0] == '[' {
		*s = ""
		return nil
	}
	*s = flexString(string(b))
	return nil
}

func (s flexString) String() string { return string(s) }

// flexDecimal accepts numbers and numeric strings; anything else leaves it unset.
type flexDecimal struct {
	Value decimal.Decimal
	Valid bool
}

func (d *flexDecimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*d = flexDecimal{}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil
		}
		raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	*d = flexDecimal{Value: v, Valid: true}
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-07:00",
	"02/01/2006 15:04:05",
	"2006-01-02",
}

// flexTime accepts unix seconds, unix milliseconds and common date layouts.
// Unparsable values leave the zero time.
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	t.Time = time.Time{}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] != '"' {
		if n, err := strconv.ParseFloat(string(b), 64); err == nil {
			t.Time = fromEpoch(int64(n))
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	t.Time = parseTime(s)
	return nil
}

func fromEpoch(n int64) time.Time {
	if n <= 0 {
		return time.Time{}
	}
	if n > 1_000_000_000_000 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromEpoch(n)
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}

// firstTime returns the first non-zero time.
func firstTime(ts ...flexTime) time.Time {
	for _, t := range ts {
		if !t.IsZero() {
			return t.Time
		}
	}
	return time.Time{}
}

// firstNonEmpty returns the first non-blank value.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
