package orders

import "github.com/iMDK-cs/SmoothFLow-Store-sub001/models"

// validNext is the single source of truth for order status transitions.
// Automated (webhook) and admin-driven paths both consult it, so the two can
// never diverge.
var validNext = map[models.OrderStatus]map[models.OrderStatus]bool{
	models.OrderStatusReceived: {
		models.OrderStatusPendingApproval: true,
		models.OrderStatusConfirmed:       true,
		models.OrderStatusProcessing:      true,
		models.OrderStatusCancelled:       true,
	},
	models.OrderStatusPendingApproval: {
		models.OrderStatusConfirmed: true,
		models.OrderStatusCancelled: true,
	},
	models.OrderStatusConfirmed: {
		models.OrderStatusProcessing: true,
		models.OrderStatusCancelled:  true,
	},
	models.OrderStatusProcessing: {
		models.OrderStatusCompleted: true,
		models.OrderStatusCancelled: true,
	},
	models.OrderStatusCompleted: {
		models.OrderStatusRefunded: true,
	},
	models.OrderStatusCancelled: {},
	models.OrderStatusRefunded:  {},
}

// statusRank orders the happy path so webhook replays can be told apart from
// genuine backward moves. Terminal states rank highest.
var statusRank = map[models.OrderStatus]int{
	models.OrderStatusReceived:        1,
	models.OrderStatusPendingApproval: 2,
	models.OrderStatusConfirmed:       3,
	models.OrderStatusProcessing:      4,
	models.OrderStatusCompleted:       5,
	models.OrderStatusCancelled:       6,
	models.OrderStatusRefunded:        6,
}

func CanTransition(from, to models.OrderStatus) bool {
	return validNext[from][to]
}

func IsTerminal(s models.OrderStatus) bool {
	return s == models.OrderStatusCompleted ||
		s == models.OrderStatusCancelled ||
		s == models.OrderStatusRefunded
}

// Rank returns the position of a status on the progression path; unknown
// statuses rank 0.
func Rank(s models.OrderStatus) int {
	return statusRank[s]
}
