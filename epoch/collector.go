package epoch

import (
	"sync"
	"sync/atomic"

	"github.com/rzcore/corepc/internal/xlog"
)

// This file implements epoch advancement as a simplified three-epoch
// global scheme rather than a per-thread sharded one. A single global
// epoch counter plus a registry of pinned guards is enough to uphold
// the contract the reclamation protocol relies on: retirement actions
// filed in an epoch are not run until every thread that could have
// been pinned in that epoch, or anything older, has moved on.

var globalEpoch atomic.Uint64

var pinned sync.Map // *Guard -> struct{}

var pinCount atomic.Uint64

type garbageBag struct {
	mu    sync.Mutex
	items []Deferred
}

var bags [3]garbageBag

// pinSampleInterval throttles how often a Pin call bothers to attempt
// an epoch advance, rather than scanning the pinned set on every
// single pin.
const pinSampleInterval = 128

func pushGarbage(epoch uint64, d Deferred) {
	idx := epoch % 3
	bags[idx].mu.Lock()
	bags[idx].items = append(bags[idx].items, d)
	bags[idx].mu.Unlock()
}

// tryAdvance bumps the global epoch by one if every currently pinned
// guard has observed the current epoch (so nothing could still be
// holding a Shared minted two or more epochs ago), then flushes the
// garbage bag that just became safe to run.
func tryAdvance() {
	cur := globalEpoch.Load()

	safe := true
	pinned.Range(func(key, _ any) bool {
		g := key.(*Guard)
		if g.pinned.Load() && g.epoch.Load() < cur {
			safe = false
			return false
		}
		return true
	})
	if !safe {
		return
	}
	if !globalEpoch.CompareAndSwap(cur, cur+1) {
		return
	}

	flushIdx := (cur + 2) % 3
	bags[flushIdx].mu.Lock()
	items := bags[flushIdx].items
	bags[flushIdx].items = nil
	bags[flushIdx].mu.Unlock()

	log := xlog.Component("epoch")
	if len(items) > 0 {
		log.Debug().Int("count", len(items)).Msg("running deferred retirement actions")
	}
	for i := range items {
		items[i].Call()
	}
}
