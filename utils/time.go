package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// IsPast checks if the given time lies before now, allowing for the given clock skew
func IsPast(t time.Time, skew time.Duration) bool {
	return t.Add(skew).Before(UTCNow())
}
