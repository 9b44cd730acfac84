package deploy

import (
	"math/rand/v2"
	"time"
)

// randomSleep sleeps a random 16-47 ms slice, capped by limitMs but
// never less than 1 ms, and returns the planned duration in ms.
// Randomizing the slice de-synchronizes peers retrying the same lock.
func randomSleep(limitMs int64) int64 {
	millis := int64(rand.IntN(0x20) + 0x10)
	if limit := max(limitMs, 1); millis > limit {
		millis = limit
	}
	sleep(time.Duration(millis) * time.Millisecond)
	return millis
}

// sleep is swappable so tests can run the retry loops instantly.
var sleep = time.Sleep
