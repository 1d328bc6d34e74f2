package domain

import "time"

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

type Suggestion struct {
	ID          string    `json:"id"`
	StreamID    string    `json:"stream_id,omitempty"`
	Text        string    `json:"suggestion_text"`
	Urgency     Urgency   `json:"urgency,omitempty"`
	SourceModel string    `json:"source_model,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type DedupState string

const (
	DedupWaiting    DedupState = "WAITING"
	DedupEvaluating DedupState = "EVALUATING"
	DedupAccepted   DedupState = "ACCEPTED"
	DedupSuppressed DedupState = "SUPPRESSED"
)

type Verdict struct {
	Accepted bool       `json:"accepted"`
	State    DedupState `json:"verdict"`
	Reason   string     `json:"reason,omitempty"`
	// MatchedID is the accepted suggestion the candidate duplicated.
	MatchedID string `json:"matched_id,omitempty"`
}
