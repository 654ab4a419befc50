package workflow

import "strings"

type Status string

const (
	StatusCreated        Status = "created"
	StatusPending        Status = "pending"
	StatusActionRequired Status = "action_required"
	StatusRejected       Status = "rejected"
	StatusApproved       Status = "approved"
)

var statusSynonyms = map[string]Status{
	"created":         StatusCreated,
	"in_progress":     StatusPending,
	"in progress":     StatusPending,
	"inprogress":      StatusPending,
	"pending":         StatusPending,
	"action_required": StatusActionRequired,
	"action required": StatusActionRequired,
	"rejected":        StatusRejected,
	"approved":        StatusApproved,
	"completed":       StatusApproved,
	"done":            StatusApproved,
}

var allowedStatuses = map[Status]struct{}{
	StatusCreated:        {},
	StatusPending:        {},
	StatusActionRequired: {},
	StatusRejected:       {},
	StatusApproved:       {},
}

// Normalize maps legacy and free-form spellings onto the canonical set.
// Unknown values come back trimmed and lower-cased; callers that persist must
// check Valid.
func Normalize(raw string) Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return StatusCreated
	}
	if st, ok := statusSynonyms[s]; ok {
		return st
	}
	return Status(s)
}

func (s Status) Valid() bool {
	_, ok := allowedStatuses[s]
	return ok
}

// Closed reports whether the status takes an incident off the pending list.
func (s Status) Closed() bool {
	return s == StatusApproved || s == StatusRejected
}

func (s Status) String() string {
	return string(s)
}

func closedStatuses() []string {
	return []string{string(StatusApproved), string(StatusRejected)}
}
