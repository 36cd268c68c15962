package jobs

import "voicetransor/internal/domain"

// isValidTransition enforces the allowed job state machine edges.
func isValidTransition(from, to domain.JobStatus) bool {
	switch from {
	case domain.JobStatusQueued:
		return to == domain.JobStatusRunning || to == domain.JobStatusFailed
	case domain.JobStatusRunning:
		return to == domain.JobStatusCancelling || to == domain.JobStatusCompleted || to == domain.JobStatusFailed
	case domain.JobStatusCancelling:
		return to == domain.JobStatusCancelled || to == domain.JobStatusFailed
	default:
		return false
	}
}

// terminalEventType maps a terminal status to its event type.
func terminalEventType(status domain.JobStatus) EventType {
	switch status {
	case domain.JobStatusCompleted:
		return EventTypeCompleted
	case domain.JobStatusCancelled:
		return EventTypeCancelled
	default:
		return EventTypeFailed
	}
}

// resolveOutcome picks the terminal status from the cancel and failure
// stamps. Zero means the event never happened.
func resolveOutcome(cancelSeq, failSeq uint64) domain.JobStatus {
	switch {
	case failSeq == 0 && cancelSeq == 0:
		return domain.JobStatusCompleted
	case failSeq == 0:
		return domain.JobStatusCancelled
	case cancelSeq != 0 && cancelSeq < failSeq:
		return domain.JobStatusCancelled
	default:
		return domain.JobStatusFailed
	}
}
