package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

// Headers is the canonical rate-limit shape adapters distill out of vendor
// responses. Every field is optional: a vendor that sends nothing parseable
// yields all-nil, never guessed defaults.
type Headers struct {
	Remaining  *int64
	Limit      *int64
	ResetsAt   *time.Time
	RetryAfter *float64 // seconds
}

// ParseHeaders extracts the common x-ratelimit-* and Retry-After headers.
// Vendors disagree on exact names, so several aliases are probed in priority
// order.
func ParseHeaders(h http.Header) Headers {
	return parseHeadersAt(h, time.Now())
}

func parseHeadersAt(h http.Header, now time.Time) Headers {
	var out Headers

	out.Remaining = firstInt(h,
		"x-ratelimit-remaining-requests",
		"x-ratelimit-remaining",
		"x-ratelimit-remaining-tokens",
	)
	out.Limit = firstInt(h,
		"x-ratelimit-limit-requests",
		"x-ratelimit-limit",
	)

	if reset := firstValue(h, "x-ratelimit-reset-requests", "x-ratelimit-reset"); reset != "" {
		out.ResetsAt = parseResetTime(reset, now)
	}
	if retry := h.Get("Retry-After"); retry != "" {
		if v, err := strconv.ParseFloat(retry, 64); err == nil {
			out.RetryAfter = &v
		}
	}

	return out
}

func firstValue(h http.Header, names ...string) string {
	for _, name := range names {
		if v := h.Get(name); v != "" {
			return v
		}
	}
	return ""
}

func firstInt(h http.Header, names ...string) *int64 {
	v := firstValue(h, names...)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// unixThreshold separates relative-seconds values from absolute unix
// timestamps. Values near the boundary can misclassify; vendors do not
// actually send multi-year relative resets, so the heuristic holds in
// practice.
const unixThreshold = 1e9

// parseResetTime accepts the formats seen in the wild: relative seconds
// ("30"), unix timestamps ("1735689600"), duration strings ("6m30s"), and
// RFC 3339 dates. Returns nil when nothing parses.
func parseResetTime(value string, now time.Time) *time.Time {
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		var t time.Time
		if n < unixThreshold {
			t = now.Add(time.Duration(n * float64(time.Second)))
		} else {
			t = time.Unix(int64(n), 0)
		}
		return &t
	}

	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		t := now.Add(d)
		return &t
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t
	}

	return nil
}
