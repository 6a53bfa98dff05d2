package epoch

import (
	"github.com/rs/zerolog"

	"github.com/rzcore/corepc/internal/xlog"
)

// SetLogger installs l as the destination for this package's debug
// tracing (deferred retirement runs after an epoch advance, and
// Atomic.IntoOwned conversions). Shares the same
// sink as rendezvous.SetLogger; both packages namespace their own
// entries via internal/xlog.Component, so a single logger can serve
// both without callers having to wire up two sinks.
func SetLogger(l zerolog.Logger) {
	xlog.SetLogger(l)
}
