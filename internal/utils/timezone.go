package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ZoneName returns a name from which the location of t can be restored with InZone.
// Named IANA locations are kept as is, anonymous fixed offsets (as produced by parsing
// RFC3339 input) are encoded as "+hh:mm".
func ZoneName(t time.Time) string {
	loc := t.Location()
	name := loc.String()
	if name != "" && name != "Local" {
		if _, err := time.LoadLocation(name); err == nil {
			return name
		}
	}
	_, offset := t.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return fmt.Sprintf("%s%02d:%02d", sign, offset/3600, (offset%3600)/60)
}

// InZone converts t into the location described by name. Unknown names leave t untouched.
func InZone(t time.Time, name string) time.Time {
	if name == "" {
		return t
	}
	if loc, ok := parseOffset(name); ok {
		return t.In(loc)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return t
	}
	return t.In(loc)
}

func parseOffset(name string) (*time.Location, bool) {
	if len(name) != 6 || (name[0] != '+' && name[0] != '-') || name[3] != ':' {
		return nil, false
	}
	hours, err := strconv.Atoi(name[1:3])
	if err != nil {
		return nil, false
	}
	minutes, err := strconv.Atoi(name[4:6])
	if err != nil {
		return nil, false
	}
	offset := hours*3600 + minutes*60
	if strings.HasPrefix(name, "-") {
		offset = -offset
	}
	if offset == 0 {
		return time.UTC, true
	}
	return time.FixedZone("", offset), true
}

// ValidZone reports whether name is an IANA location or a "+hh:mm" offset.
func ValidZone(name string) bool {
	if _, ok := parseOffset(name); ok {
		return true
	}
	_, err := time.LoadLocation(name)
	return err == nil
}
