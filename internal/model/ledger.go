package model

import "time"

// Run outcomes recorded in the ledger.
const (
	OutcomeRunning      = "running"
	OutcomeAlreadyRan   = "already_ran"
	OutcomeNoAttachment = "no_attachment"
	OutcomeNoCalls      = "no_calls"
	OutcomeSent         = "sent"
	OutcomeFailed       = "failed"
)

// Run is one invocation of the relay as recorded in the ledger.
type Run struct {
	ID         string     `db:"id" json:"id"`
	RunDate    string     `db:"run_date" json:"run_date"`
	Attachment string     `db:"attachment" json:"attachment"`
	CallCount  int        `db:"call_count" json:"call_count"`
	SentCount  int        `db:"sent_count" json:"sent_count"`
	Outcome    string     `db:"outcome" json:"outcome"`
	Error      string     `db:"error" json:"error,omitempty"`
	StartedAt  time.Time  `db:"started_at" json:"started_at"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// Dispatch is one call accepted by the outbound relay.
type Dispatch struct {
	ID        string    `db:"id" json:"id"`
	RunID     string    `db:"run_id" json:"run_id"`
	Reference string    `db:"reference" json:"reference"`
	Status    string    `db:"status" json:"status"`
	Subject   string    `db:"subject" json:"subject"`
	Recipient string    `db:"recipient" json:"recipient"`
	SentAt    time.Time `db:"sent_at" json:"sent_at"`
}
