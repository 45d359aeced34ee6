package domain

// GroupStatus is the outcome of one seller group within a checkout.
type GroupStatus string

const (
	GroupStatusOK             GroupStatus = "ok"
	GroupStatusNotifiedFailed GroupStatus = "notified_failed"
	GroupStatusPersistFailed  GroupStatus = "persist_failed"
	GroupStatusNotAttempted   GroupStatus = "not_attempted"
)

// Persisted reports whether the group's order was committed.
func (s GroupStatus) Persisted() bool {
	return s == GroupStatusOK || s == GroupStatusNotifiedFailed
}

// String representation (for logging)
func (s GroupStatus) String() string {
	return string(s)
}
