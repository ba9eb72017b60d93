package model

import "time"

// Call is one support-call record extracted from an out-of-hours export.
type Call struct {
	// Reference is the external ticket identifier (callref).
	Reference string `json:"reference"`

	// Status is the catalog label of the group the call was found under.
	Status string `json:"status"`

	// StatusCode is the numeric code of that group.
	StatusCode int `json:"status_code"`

	// Requester is the customer id, or a placeholder name for the
	// unknown-user codes.
	Requester string `json:"requester"`

	// LoggedAt is the formatted contact time, DD.MM.YY : HH:MM:SS.
	LoggedAt string `json:"logged_at"`

	// Narrative is the problem description followed by each update on
	// its own line, with HTML entities decoded.
	Narrative string `json:"narrative"`

	// Absent lists source fields that were missing from the ticket.
	Absent []string `json:"absent,omitempty"`
}

// IsAbsent reports whether the named source field was missing.
func (c Call) IsAbsent(field string) bool {
	for _, f := range c.Absent {
		if f == field {
			return true
		}
	}
	return false
}

// RenderedMessage is a call ready to be relayed.
type RenderedMessage struct {
	Reference string
	Status    string
	Subject   string
	Body      string
}

// Address is a display name plus mailbox.
type Address struct {
	Name    string
	Address string
}

// DailyStat is one line of the stats log.
type DailyStat struct {
	Date  time.Time
	Count int
}
