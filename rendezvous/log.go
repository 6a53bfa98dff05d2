package rendezvous

import (
	"github.com/rs/zerolog"

	"github.com/rzcore/corepc/internal/xlog"
)

// SetLogger installs l as the destination for this package's debug
// tracing (a blocking Send or Recv parking, and channel close). By
// default tracing is discarded; call this to observe it.
func SetLogger(l zerolog.Logger) {
	xlog.SetLogger(l)
}
