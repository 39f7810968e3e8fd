package apex

import "time"

// Datetime64ToTime converts a nanosecond-resolution epoch timestamp (the
// datetime64[ns] representation used by columnar time-series stores) to a
// UTC civil time.
//
// The result is truncated, not rounded, to whole milliseconds: 999999ns
// past a millisecond boundary is dropped.
func Datetime64ToTime(ns int64) time.Time {
	return time.Unix(0, ns).UTC().Truncate(time.Millisecond)
}

// Datetime64sToTimes applies Datetime64ToTime to each element. The result
// has the same length as the input.
func Datetime64sToTimes(ns []int64) []time.Time {
	out := make([]time.Time, len(ns))
	for i, v := range ns {
		out[i] = Datetime64ToTime(v)
	}
	return out
}
