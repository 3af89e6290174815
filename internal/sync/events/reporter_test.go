package events

import "testing"

func TestReporter_QueuesBranchEventsUntilGrouped(t *testing.T) {
	var observed []Type
	r := NewReporter(func(ev Event) { observed = append(observed, ev.Type) })

	r.Report(Event{Type: TypeCommitSynced, Data: CommitSyncedData{Branch: "a"}})
	r.Report(Event{Type: TypeRemoteStatusUpdate, Data: RemoteStatusUpdateData{Branch: "a"}})
	if len(observed) != 0 {
		t.Fatalf("branch events should be queued before BranchesGrouped, got %v", observed)
	}

	r.Report(Event{Type: TypeBranchesGrouped, Data: BranchesGroupedData{Branches: []string{"a"}}})

	want := []Type{TypeBranchesGrouped, TypeCommitSynced, TypeRemoteStatusUpdate}
	if len(observed) != len(want) {
		t.Fatalf("observed = %v, want %v", observed, want)
	}
	for i, ty := range want {
		if observed[i] != ty {
			t.Errorf("observed[%d] = %v, want %v", i, observed[i], ty)
		}
	}
}

func TestReporter_PassesThroughImmediatelyAfterGrouped(t *testing.T) {
	var observed []Type
	r := NewReporter(func(ev Event) { observed = append(observed, ev.Type) })

	r.Report(Event{Type: TypeBranchesGrouped})
	r.Report(Event{Type: TypeCommitSynced})
	r.Report(Event{Type: TypeCompleted})

	want := []Type{TypeBranchesGrouped, TypeCommitSynced, TypeCompleted}
	for i, ty := range want {
		if observed[i] != ty {
			t.Errorf("observed[%d] = %v, want %v", i, observed[i], ty)
		}
	}
}

func TestReporter_NonBranchEventsPassThroughAlways(t *testing.T) {
	var observed []Type
	r := NewReporter(func(ev Event) { observed = append(observed, ev.Type) })

	r.Report(Event{Type: TypeIssueNavigationConfig})
	r.Report(Event{Type: TypeUnassignedCommits})

	if len(observed) != 2 {
		t.Fatalf("expected immediate passthrough before grouping, got %v", observed)
	}
}
