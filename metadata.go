package telemetry

import (
	"math/rand/v2"
	"os"
	"strconv"
	"sync"
)

var procMetadata = sync.OnceValues(func() (int, string) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return os.Getpid(), hostname
})

// PID returns the process id recorded on root spans.
func PID() int {
	pid, _ := procMetadata()

	return pid
}

// Hostname returns the hostname recorded on root spans and used for host matching.
func Hostname() string {
	_, hostname := procMetadata()

	return hostname
}

// newSpanID returns a random non-zero span id.
func newSpanID() uint64 {
	for {
		if id := rand.Uint64(); id != 0 {
			return id
		}
	}
}

// newTraceID returns a random non-zero trace id in decimal form.
func newTraceID() string {
	return strconv.FormatUint(newSpanID(), 10)
}

func randIntN(n int) int {
	return rand.IntN(n)
}
