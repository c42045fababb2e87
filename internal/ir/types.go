package ir

import "strings"

// Category distinguishes the two kinds of named entities the host exposes.
type Category string

const (
	// CategoryDevice identifies devices (things). Their names are UIDs such
	// as "hue:bridge:1".
	CategoryDevice Category = "thing"

	// CategoryDataPoint identifies data points (items). Their names are
	// already valid identifiers such as "Kitchen_Light".
	CategoryDataPoint Category = "item"
)

// Entity is a named domain object of the host.
type Entity struct {
	Name string `json:"name"`
}

// Status is the lifecycle status of a device as reported by the host.
type Status string

const (
	StatusUninitialized Status = "UNINITIALIZED"
	StatusInitializing  Status = "INITIALIZING"
	StatusUnknown       Status = "UNKNOWN"
	StatusOnline        Status = "ONLINE"
	StatusOffline       Status = "OFFLINE"
	StatusRemoving      Status = "REMOVING"
	StatusRemoved       Status = "REMOVED"
)

// Statuses lists every known status in lifecycle order.
var Statuses = []Status{
	StatusUninitialized,
	StatusInitializing,
	StatusUnknown,
	StatusOnline,
	StatusOffline,
	StatusRemoving,
	StatusRemoved,
}

// ParseStatus converts a string into a Status. Matching is case-insensitive.
func ParseStatus(s string) (Status, bool) {
	upper := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range Statuses {
		if st == upper {
			return st, true
		}
	}
	return "", false
}

// IsInitialized reports whether a device in this status has its handler
// running and therefore has its proxy actions registered.
func IsInitialized(s Status) bool {
	switch s {
	case StatusUnknown, StatusOnline, StatusOffline:
		return true
	default:
		return false
	}
}

// CrossesInitialized reports whether a transition enters or leaves the
// initialized status group. Transitions inside the group (ONLINE -> OFFLINE)
// or outside of it (UNINITIALIZED -> INITIALIZING) return false.
func CrossesInitialized(from, to Status) bool {
	return IsInitialized(from) != IsInitialized(to)
}
