package scheduling

import "testing"

func TestStatusIsTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusScheduled:  false,
		StatusConfirmed:  false,
		StatusInProgress: false,
		StatusCompleted:  true,
		StatusCancelled:  true,
		StatusNoShow:     true,
	}

	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", status, got, want)
		}
	}

	if Status("BOGUS").IsTerminal() {
		t.Error("unknown status must not report terminal")
	}
}

func TestStatusCanReachCompleted(t *testing.T) {
	// COMPLETED is reachable from every non-terminal state.
	for _, from := range []Status{StatusScheduled, StatusConfirmed, StatusInProgress} {
		if !from.CanTransition(StatusCompleted) {
			t.Errorf("%s -> COMPLETED should be allowed", from)
		}
	}
	for _, from := range []Status{StatusCompleted, StatusCancelled, StatusNoShow} {
		if from.CanTransition(StatusCompleted) {
			t.Errorf("%s -> COMPLETED should be rejected", from)
		}
	}
}

func TestStatusIsEditable(t *testing.T) {
	editable := map[Status]bool{
		StatusScheduled:  true,
		StatusConfirmed:  true,
		StatusInProgress: false,
		StatusCompleted:  false,
		StatusCancelled:  false,
		StatusNoShow:     false,
	}

	for status, want := range editable {
		if got := status.IsEditable(); got != want {
			t.Errorf("IsEditable(%s) = %v, want %v", status, got, want)
		}
	}
}
