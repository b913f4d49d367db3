package models

// JobStatus represents the lifecycle state of a scraping job
type JobStatus string

const (
	JobStatusUnset     JobStatus = ""          // Zero value = unset/unknown
	JobStatusPending   JobStatus = "pending"   // Created, not yet picked up
	JobStatusRunning   JobStatus = "running"   // Page loop in progress
	JobStatusCompleted JobStatus = "completed" // Page loop finished (page-level errors allowed)
	JobStatusFailed    JobStatus = "failed"    // Aborted by a fatal error
)

// String implements fmt.Stringer for logging
func (s JobStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the status is absorbing
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo reports whether moving from s to next is a forward transition.
// pending -> running -> {completed | failed}; pending -> failed covers jobs that
// die before their first page.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusRunning || next == JobStatusFailed
	case JobStatusRunning:
		return next == JobStatusCompleted || next == JobStatusFailed
	}
	return false
}
