package risk

import "time"

// Clock supplies the current time. Injectable so cooling-off expiry is
// testable without wall-clock waits.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now()
}
