package upstream

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Count decodes a non-negative counter sent either as a JSON number or as a
// string ("12345"). Anything unparsable decodes to 0.
type Count int64

func (c *Count) UnmarshalJSON(b []byte) error {
	*c = Count(ParseCount(strings.Trim(string(b), `"`)))
	return nil
}

func (c Count) Int64() int64 {
	return int64(c)
}

// ParseCount parses a counter; parse failure and negatives yield 0.
func ParseCount(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		n = int64(f)
	}
	if n < 0 {
		return 0
	}
	return n
}

// FlexString decodes identifiers that some APIs send as numbers.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = FlexString(b)
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05Z0700",
}

// ParseTime accepts RFC 3339 and the colon-less offset Graph API uses
// ("2026-01-02T15:04:05+0000"). Unparsable input yields the zero time.
func ParseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
