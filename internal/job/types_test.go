package job

import "testing"

func TestStatusTerminal(t *testing.T) {
	cases := map[Status]bool{
		StatusQueued:     false,
		StatusInProgress: false,
		StatusRetrying:   false,
		StatusCompleted:  true,
		StatusFailed:     true,
		StatusCancelled:  true,
	}
	for status, want := range cases {
		if got := status.Terminal(); got != want {
			t.Errorf("Status(%s).Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestStatusCancellable(t *testing.T) {
	if !StatusQueued.Cancellable() {
		t.Error("queued should be cancellable")
	}
	if !StatusRetrying.Cancellable() {
		t.Error("retrying should be cancellable")
	}
	if StatusInProgress.Cancellable() {
		t.Error("in_progress should not be cancellable")
	}
	if StatusCompleted.Cancellable() {
		t.Error("completed should not be cancellable")
	}
}

func TestSortPriorities(t *testing.T) {
	in := []Priority{PriorityDefault, PriorityLow, PriorityHigh, PriorityMedium}
	got := SortPriorities(in)
	want := []Priority{PriorityHigh, PriorityMedium, PriorityLow, PriorityDefault}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortPriorities(%v) = %v, want %v", in, got, want)
		}
	}
	if in[0] != PriorityDefault {
		t.Error("SortPriorities mutated its input")
	}
}

func TestValidPriority(t *testing.T) {
	if !ValidPriority(PriorityHigh) {
		t.Error("high should be valid")
	}
	if ValidPriority(Priority("urgent")) {
		t.Error("urgent should not be a known priority")
	}
}

func TestNewJob(t *testing.T) {
	j := New("job-1", Payload{"k": "v"}, PriorityHigh)
	if j.Status != StatusQueued {
		t.Errorf("new job status = %s, want queued", j.Status)
	}
	if j.Attempts != 0 {
		t.Errorf("new job attempts = %d, want 0", j.Attempts)
	}
}
