package models

import "time"

// LinkStatus is the fetch lifecycle state of an external link record.
type LinkStatus string

const (
	LinkPending     LinkStatus = "pending"
	LinkOK          LinkStatus = "ok"
	LinkError       LinkStatus = "error"
	LinkBlocked     LinkStatus = "blocked"
	LinkUnsupported LinkStatus = "unsupported"
)

// LinkRecord is one owner-configured external URL with its cached extract.
// Identity is (OwnerID, URLHash).
type LinkRecord struct {
	ID           string
	OwnerID      string
	URL          string
	URLHash      string
	Title        string
	ContentHash  string
	Content      string
	Status       LinkStatus
	LastFetch    time.Time
	LastError    string
	TimeModified time.Time
}
