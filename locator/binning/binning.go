// Package binning derives cache keys from device requests.
//
// A key is the request's identifying fields, in the order returned by
// model.Request.KeyFields, followed by the start of the time bin the request falls in,
// all joined with "-". The bin start is rendered in UTC at the precision of the bin width,
// so keys are stable across processes and restarts.
package binning

import (
	"errors"
	"strings"
	"time"

	"encore.app/locator/model"
)

// DefaultWidth is the bin width used when none is configured.
const DefaultWidth = time.Hour

const separator = "-"

// Bin returns the cache key of req issued at t.
func Bin(req model.Request, t time.Time, width time.Duration) (string, error) {
	if req == nil {
		return "", errors.New("binning: request cannot be nil")
	}
	if width <= 0 {
		width = DefaultWidth
	}

	fields := req.KeyFields()
	parts := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		if f == "" {
			return "", errors.New("binning: key field cannot be empty")
		}
		parts = append(parts, f)
	}
	parts = append(parts, BinStart(t, width))

	return strings.Join(parts, separator), nil
}

// BinStart renders floor(t / width) * width in UTC, truncated to the precision of width.
// Bins are counted from the Unix epoch, so a 7-day bin always starts on a Thursday.
func BinStart(t time.Time, width time.Duration) string {
	if width <= 0 {
		width = DefaultWidth
	}
	n, w := t.UnixNano(), int64(width)
	floor := n / w * w
	if n < 0 && floor != n {
		floor -= w
	}
	return time.Unix(0, floor).UTC().Format(layout(width))
}

// layout picks the coarsest timestamp layout that still distinguishes bins of width.
func layout(width time.Duration) string {
	switch {
	case width%(24*time.Hour) == 0:
		return "2006-01-02"
	case width%time.Hour == 0:
		return "2006-01-02T15"
	case width%time.Minute == 0:
		return "2006-01-02T15:04"
	case width%time.Second == 0:
		return "2006-01-02T15:04:05"
	default:
		return "2006-01-02T15:04:05.000000000"
	}
}
