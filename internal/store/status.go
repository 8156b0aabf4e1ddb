package store

// Status is a message delivery status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// statusRank orders the delivery ladder. Failed is handled separately
// because it is reachable from any non-terminal state.
var statusRank = map[Status]int{
	StatusPending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// ParseStatus maps a wire status string to a Status. Unknown strings
// return false so callers can drop the update.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusSent, StatusDelivered, StatusRead, StatusFailed:
		return Status(s), true
	}
	return "", false
}

// Terminal reports whether no further transitions are accepted.
// Once failed, stale delayed updates must not flap the status back.
func (s Status) Terminal() bool {
	return s == StatusFailed
}

// CanTransition reports whether moving from s to next is allowed:
// strictly forward along pending < sent < delivered < read, or into
// failed from any non-terminal state.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	return statusRank[next] > statusRank[s]
}
