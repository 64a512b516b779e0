package request

import "leadmarket/models"

// transitions is the core lifecycle graph. Admin overrides to CANCELLED and
// PROCESSING bypass this table; everything else must follow it.
var transitions = map[models.RequestStatus][]models.RequestStatus{
	models.RequestPending: {
		models.RequestMatched,
		models.RequestInProgress,
		models.RequestExpired,
		models.RequestCancelled,
	},
	models.RequestMatched: {
		models.RequestInProgress,
		models.RequestExpired,
		models.RequestCancelled,
	},
	models.RequestProcessing: {
		models.RequestInProgress,
		models.RequestCancelled,
	},
	models.RequestOnProcess: {
		models.RequestInProgress,
		models.RequestCancelled,
	},
	models.RequestInProgress: {
		models.RequestOngoing,
		models.RequestCompleted,
		models.RequestCancelled,
	},
	models.RequestOngoing: {
		models.RequestCompleted,
		models.RequestCancelled,
	},
	models.RequestCompleted: {
		models.RequestApproved,
	},
	// Terminal states have no successors.
	models.RequestApproved:  {},
	models.RequestCancelled: {},
	models.RequestExpired:   {},
}

// CanTransition reports whether moving from one status to another follows
// the lifecycle graph.
func CanTransition(from, to models.RequestStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func IsTerminal(status models.RequestStatus) bool {
	return len(transitions[status]) == 0
}
