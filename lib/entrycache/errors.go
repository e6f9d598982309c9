package entrycache

import "fmt"

// Sentinel errors for the recoverable error kinds of spec.md §7.
// Corruption is deliberately not among them: it is a fatal assertion
// the cache cannot recover from, so it is reported by panic instead
// (see corruptf below).
var (
	// ErrDuplicate is returned by Add/Update when the DN or ID would
	// collide with an existing, distinct record.
	ErrDuplicate = fmt.Errorf("entrycache: duplicate entry")

	// ErrNotFound is returned by Delete when the given borrow's record
	// has already been deleted, for example by another borrower's
	// Delete.
	ErrNotFound = fmt.Errorf("entrycache: entry not found")

	// ErrResource would signal allocation or lock-initialization
	// failure (spec.md §7). Go's allocator and sync primitives don't
	// fail in a way this package can observe, so no operation actually
	// returns it; it is kept for interface fidelity with spec.md's
	// error-kind enumeration.
	ErrResource = fmt.Errorf("entrycache: resource exhausted")
)

// corruptf panics with a formatted Corruption error. Used whenever
// bookkeeping finds the dual-index/LRU invariants violated — spec.md
// is explicit that such a state is unrecoverable, so there is no
// sensible error return here, only a panic, matching how the
// teacher's containers package handles invariant violations.
func corruptf(format string, a ...any) {
	panic(fmt.Errorf("entrycache: corruption: "+format, a...))
}
