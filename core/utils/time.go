package utils

import "time"

func NowUTC() time.Time {
	return time.Now().UTC()
}

// Clock is injected into services so tests can pin timestamps.
type Clock func() time.Time

func (c Clock) Now() time.Time {
	if c == nil {
		return NowUTC()
	}
	return c().UTC()
}
