package maildir

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

var deliveryCounter uint64

// hostID returns the host token used in message filenames: the hostname,
// or "pid<N>" with the process ID when the hostname is unavailable.
func hostID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = fmt.Sprintf("pid%d", os.Getpid())
	}
	return host
}

// newUniqueKey generates a Maildir-unique base filename of the form
// "<seconds>.<hostid>-<counter>.<host>", following the classic
// time.hostid.host convention with a monotonic counter to disambiguate
// same-second deliveries.
func newUniqueKey(now time.Time) string {
	host := hostID()
	n := atomic.AddUint64(&deliveryCounter, 1)
	return fmt.Sprintf("%d.%s-%d.%s", now.Unix(), host, n, host)
}
