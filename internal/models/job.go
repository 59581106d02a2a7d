package models

import "fmt"

// JobState tracks an outstanding archival retrieval job.
type JobState int

const (
	JobRequested JobState = iota
	JobInProgress
	JobSucceeded
	JobFailed
)

func (s JobState) String() string {
	switch s {
	case JobRequested:
		return "requested"
	case JobInProgress:
		return "in_progress"
	case JobSucceeded:
		return "succeeded"
	case JobFailed:
		return "failed"
	default:
		return fmt.Sprintf("jobstate(%d)", int(s))
	}
}

// ParseJobState converts the persisted name of a job state.
func ParseJobState(s string) (JobState, error) {
	switch s {
	case "requested":
		return JobRequested, nil
	case "in_progress":
		return JobInProgress, nil
	case "succeeded":
		return JobSucceeded, nil
	case "failed":
		return JobFailed, nil
	default:
		return 0, fmt.Errorf("unknown job state %q", s)
	}
}

// JobDescriptor is the local record of one asynchronous retrieval request.
// At most one descriptor exists per stored key; it is deleted once the job
// reaches a terminal state.
type JobDescriptor struct {
	Key         string
	JobID       string
	RequestedAt int64
	State       JobState
}
