package queue

import "testing"

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusApproved, StatusInProgress, StatusCompleted, StatusUnavailable} {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range []Status{"", "waiting", "done", "APPROVED"} {
		if s.Valid() {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestStatusTransitions(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusApproved, StatusInProgress}:    true,
		{StatusApproved, StatusUnavailable}:   true,
		{StatusInProgress, StatusCompleted}:   true,
		{StatusInProgress, StatusUnavailable}: true,
	}

	statuses := []Status{StatusApproved, StatusInProgress, StatusCompleted, StatusUnavailable}
	for _, from := range statuses {
		for _, to := range statuses {
			got := from.CanTransitionTo(to)
			want := allowed[[2]Status{from, to}]
			if got != want {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusApproved.Terminal() || StatusInProgress.Terminal() {
		t.Error("approved and in_progress must not be terminal")
	}
	if !StatusCompleted.Terminal() || !StatusUnavailable.Terminal() {
		t.Error("completed and unavailable must be terminal")
	}
}

func TestAllowedFrom(t *testing.T) {
	from := allowedFrom(StatusUnavailable)
	if len(from) != 2 {
		t.Fatalf("expected 2 predecessors of unavailable, got %d: %v", len(from), from)
	}
	seen := map[Status]bool{}
	for _, s := range from {
		seen[s] = true
	}
	if !seen[StatusApproved] || !seen[StatusInProgress] {
		t.Errorf("unexpected predecessors of unavailable: %v", from)
	}

	if got := allowedFrom(StatusApproved); len(got) != 0 {
		t.Errorf("approved must have no predecessors, got %v", got)
	}
}
