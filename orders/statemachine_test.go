package orders

import (
	"testing"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
)

func TestCanTransition_HappyPath(t *testing.T) {
	path := []models.OrderStatus{
		models.OrderStatusReceived,
		models.OrderStatusConfirmed,
		models.OrderStatusProcessing,
		models.OrderStatusCompleted,
	}
	for i := 0; i < len(path)-1; i++ {
		if !CanTransition(path[i], path[i+1]) {
			t.Errorf("Expected %s -> %s to be allowed", path[i], path[i+1])
		}
	}
}

func TestCanTransition_BankTransferPath(t *testing.T) {
	if !CanTransition(models.OrderStatusReceived, models.OrderStatusPendingApproval) {
		t.Error("Expected received -> pending_admin_approval to be allowed")
	}
	if !CanTransition(models.OrderStatusPendingApproval, models.OrderStatusConfirmed) {
		t.Error("Expected pending_admin_approval -> confirmed to be allowed")
	}
	if !CanTransition(models.OrderStatusPendingApproval, models.OrderStatusCancelled) {
		t.Error("Expected pending_admin_approval -> cancelled to be allowed")
	}
}

func TestCanTransition_NoBackwardMoves(t *testing.T) {
	backward := []struct{ from, to models.OrderStatus }{
		{models.OrderStatusCompleted, models.OrderStatusProcessing},
		{models.OrderStatusCompleted, models.OrderStatusReceived},
		{models.OrderStatusProcessing, models.OrderStatusConfirmed},
		{models.OrderStatusConfirmed, models.OrderStatusReceived},
		{models.OrderStatusCancelled, models.OrderStatusReceived},
		{models.OrderStatusRefunded, models.OrderStatusCompleted},
	}
	for _, tt := range backward {
		if CanTransition(tt.from, tt.to) {
			t.Errorf("Expected %s -> %s to be rejected", tt.from, tt.to)
		}
	}
}

func TestCanTransition_TerminalStatesAreDeadEnds(t *testing.T) {
	all := []models.OrderStatus{
		models.OrderStatusReceived,
		models.OrderStatusPendingApproval,
		models.OrderStatusConfirmed,
		models.OrderStatusProcessing,
		models.OrderStatusCompleted,
		models.OrderStatusCancelled,
		models.OrderStatusRefunded,
	}
	for _, to := range all {
		if CanTransition(models.OrderStatusCancelled, to) {
			t.Errorf("Expected cancelled -> %s to be rejected", to)
		}
		if CanTransition(models.OrderStatusRefunded, to) {
			t.Errorf("Expected refunded -> %s to be rejected", to)
		}
	}
}

func TestCanTransition_RefundOnlyAfterCompletion(t *testing.T) {
	if !CanTransition(models.OrderStatusCompleted, models.OrderStatusRefunded) {
		t.Error("Expected completed -> refunded to be allowed")
	}
	for _, from := range []models.OrderStatus{
		models.OrderStatusReceived,
		models.OrderStatusConfirmed,
		models.OrderStatusProcessing,
	} {
		if CanTransition(from, models.OrderStatusRefunded) {
			t.Errorf("Expected %s -> refunded to be rejected", from)
		}
	}
}

func TestRank_ProgressionIsMonotonic(t *testing.T) {
	if Rank(models.OrderStatusCompleted) <= Rank(models.OrderStatusProcessing) {
		t.Error("Expected completed to rank above processing")
	}
	if Rank(models.OrderStatusProcessing) <= Rank(models.OrderStatusReceived) {
		t.Error("Expected processing to rank above received")
	}
	if Rank("bogus") != 0 {
		t.Errorf("Expected unknown status to rank 0, got %d", Rank("bogus"))
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []models.OrderStatus{
		models.OrderStatusCompleted,
		models.OrderStatusCancelled,
		models.OrderStatusRefunded,
	} {
		if !IsTerminal(s) {
			t.Errorf("Expected %s to be terminal", s)
		}
	}
	for _, s := range []models.OrderStatus{
		models.OrderStatusReceived,
		models.OrderStatusPendingApproval,
		models.OrderStatusConfirmed,
		models.OrderStatusProcessing,
	} {
		if IsTerminal(s) {
			t.Errorf("Expected %s to be non-terminal", s)
		}
	}
}
