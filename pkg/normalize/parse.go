package normalize

import (
	"math/big"
	"regexp"
	"strings"
	"time"
)

// Plain decimal notation only. The exponent is capped so a hostile cell cannot
// allocate an enormous rational.
var numberPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d{1,4})?$`)

// ParseNumber parses decimal text ("42", "-0.5", "1e3") into an exact
// rational. Thousands separators, fractions, hex and NaN/Inf are rejected.
func ParseNumber(s string) (*big.Rat, bool) {
	s = strings.TrimSpace(s)
	if !numberPattern.MatchString(s) {
		return nil, false
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, false
	}
	return r, true
}

// Layouts carrying their own zone.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -0700",
}

// Zone-naive layouts, read in the caller's location. Fractional seconds are
// accepted after the seconds field even though the layouts omit them.
var naiveLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses s as an instant and returns it in UTC. Inputs without
// a zone are interpreted in loc; a nil loc means UTC.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range zonedLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	for _, layout := range naiveLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseBool accepts true/false, t/f, yes/no, y/n, on/off and 1/0 in any case.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "on", "1":
		return true, true
	case "false", "f", "no", "n", "off", "0":
		return false, true
	}
	return false, false
}
