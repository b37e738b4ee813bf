package metrics

import "github.com/matchbase/marketplace/pkg/logger"

// BestEffort records a swallowed failure: it is logged with its key/value
// context and counted, never returned.
func BestEffort(op string, err error, kv ...interface{}) {
	if err == nil {
		return
	}
	BestEffortFailures.WithLabelValues(op).Inc()
	logger.Warnw("best-effort operation failed", append([]interface{}{"op", op, "err", err}, kv...)...)
}
