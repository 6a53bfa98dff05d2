// Package ids mints diagnostic correlation identifiers. They never
// participate in correctness: two threads with colliding ids would
// still rendezvous correctly. They exist purely so that log lines
// from internal/xlog can be tied back to a particular thread context
// across goroutines.
package ids

import "github.com/google/uuid"

// New returns a fresh correlation id as a short string.
func New() string {
	return uuid.NewString()
}
