package outbox

import "time"

var retrySchedule = []time.Duration{
	10 * time.Second,
	30 * time.Second,
	120 * time.Second,
	300 * time.Second,
}

// RetryDelay returns the wait after the given number of failed attempts.
// Attempt 1 waits 10s, 2 waits 30s, 3 waits 2m and everything after waits 5m.
func RetryDelay(attempts int) time.Duration {
	if attempts <= 1 {
		return retrySchedule[0]
	}
	if attempts > len(retrySchedule) {
		return retrySchedule[len(retrySchedule)-1]
	}
	return retrySchedule[attempts-1]
}
