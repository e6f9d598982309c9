package entrycache

// State is an EntryRecord's position in its lifecycle (spec.md §4.1).
//
//	Undefined (zero value; must never be observed by a caller)
//	  -> Creating  (add/update inserts the record)
//	       -> Committed  (producer calls Commit)
//	            -> Ready  (producer returns the borrow)
//	       -> Deleted     (producer returns without committing: abandonment)
//	  Ready -> Deleted    (delete, or the eviction scan)
//	  Deleted -> freed    (last outstanding borrow returned)
type State int32

const (
	StateUndefined State = iota
	StateCreating
	StateCommitted
	StateReady
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateCreating:
		return "Creating"
	case StateCommitted:
		return "Committed"
	case StateReady:
		return "Ready"
	case StateDeleted:
		return "Deleted"
	default:
		return "Undefined"
	}
}

// LockMode selects read or write access to a record's per-entry
// reader-writer lock.
type LockMode int

const (
	LockRead LockMode = iota
	LockWrite
)

func (m LockMode) String() string {
	if m == LockWrite {
		return "write"
	}
	return "read"
}
