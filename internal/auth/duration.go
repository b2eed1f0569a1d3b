package auth

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var shortDuration = regexp.MustCompile(`^(\d+)([dwh])$`)

var shortUnits = map[string]time.Duration{
	"h": time.Hour,
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

// dateLayouts are tried in order; both are mm/dd/yyyy, in UTC.
var dateLayouts = []string{"01/02/2006 15:04", "01/02/2006"}

// ParseExpirationDuration turns a token lifetime into an expiration time.
// "never" or "" mean no expiration. Accepted lifetimes are Go durations
// ("90m"), day/week/hour counts ("30d", "2w", "12h") and absolute dates
// ("12/25/2026" or "12/25/2026 14:30"), which must lie in the future.
func ParseExpirationDuration(expiresIn string) (*time.Time, error) {
	expiresIn = strings.TrimSpace(expiresIn)
	if expiresIn == "" || strings.EqualFold(expiresIn, "never") {
		return nil, nil
	}
	now := time.Now()

	if dur, err := time.ParseDuration(expiresIn); err == nil {
		t := now.Add(dur)
		return &t, nil
	}

	if m := shortDuration.FindStringSubmatch(expiresIn); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("invalid number in expiration %q", expiresIn)
		}
		t := now.Add(time.Duration(n) * shortUnits[m[2]])
		return &t, nil
	}

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, expiresIn)
		if err != nil {
			continue
		}
		if !t.After(now) {
			return nil, fmt.Errorf("expiration date must be in the future: %s", expiresIn)
		}
		return &t, nil
	}

	return nil, fmt.Errorf("invalid expiration %q (use never, 30d, 2w, 24h, 12/25/2026 or a Go duration)", expiresIn)
}
