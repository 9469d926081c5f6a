package core

import (
	"time"

	"github.com/xhit/go-str2duration/v2"
)

// Resolution is the time length of a candle bucket.
type Resolution string

// Supported candle resolutions, from one minute up to one week.
const (
	Resolution1m  Resolution = "1m"
	Resolution5m  Resolution = "5m"
	Resolution15m Resolution = "15m"
	Resolution1h  Resolution = "1h"
	Resolution4h  Resolution = "4h"
	Resolution1d  Resolution = "1d"
	Resolution1w  Resolution = "1w"
)

// ValidResolutions lists every supported resolution in ascending order.
func ValidResolutions() []Resolution {
	return []Resolution{
		Resolution1m,
		Resolution5m,
		Resolution15m,
		Resolution1h,
		Resolution4h,
		Resolution1d,
		Resolution1w,
	}
}

// IsValid reports whether the resolution is one of the supported values.
func (r Resolution) IsValid() bool {
	switch r {
	case Resolution1m, Resolution5m, Resolution15m, Resolution1h,
		Resolution4h, Resolution1d, Resolution1w:
		return true
	}
	return false
}

// Duration converts the resolution to its wall-clock length.
func (r Resolution) Duration() (time.Duration, error) {
	if !r.IsValid() {
		return 0, ErrInvalidResolution
	}
	return str2duration.ParseDuration(string(r))
}

// Buckets holds the coarse time components of a timestamp. The candle
// archive stores these precomputed so that re-aggregation can group on
// them directly.
type Buckets struct {
	Year     int
	Month    int
	Week     int
	Day      int
	Hour4    int
	Hour     int
	Minute15 int
	Minute5  int
	Minute   int
}

// BucketsOf decomposes a timestamp into its bucket components.
// Sub-hour and sub-day ids use integer floor division.
func BucketsOf(t time.Time) Buckets {
	t = t.UTC()
	_, week := t.ISOWeek()
	return Buckets{
		Year:     t.Year(),
		Month:    int(t.Month()),
		Week:     week,
		Day:      t.Day(),
		Hour4:    t.Hour() / 4,
		Hour:     t.Hour(),
		Minute15: t.Minute() / 15,
		Minute5:  t.Minute() / 5,
		Minute:   t.Minute(),
	}
}

// SameBucket reports whether two timestamps fall into the same bucket at
// the given resolution. Two timestamps share a bucket iff they agree on
// the time prefix appropriate to the resolution.
func SameBucket(t1, t2 time.Time, r Resolution) bool {
	b1, b2 := BucketsOf(t1), BucketsOf(t2)

	if b1.Year != b2.Year || b1.Month != b2.Month {
		return false
	}

	switch r {
	case Resolution1w:
		return b1.Week == b2.Week
	case Resolution1d:
		return b1.Day == b2.Day
	case Resolution4h:
		return b1.Day == b2.Day && b1.Hour4 == b2.Hour4
	case Resolution1h:
		return b1.Day == b2.Day && b1.Hour == b2.Hour
	case Resolution15m:
		return b1.Day == b2.Day && b1.Hour == b2.Hour && b1.Minute15 == b2.Minute15
	case Resolution5m:
		return b1.Day == b2.Day && b1.Hour == b2.Hour && b1.Minute5 == b2.Minute5
	case Resolution1m:
		return b1.Day == b2.Day && b1.Hour == b2.Hour && b1.Minute == b2.Minute
	}

	return false
}
