package app

import (
	"errors"
	"strings"
	"testing"
	"time"

	"roomdesk/internal/domain"
)

func advance(t *testing.T, svc *Service, caller domain.OwnerID, input string) Step {
	t.Helper()
	step, err := svc.Advance(caller, input)
	if err != nil {
		t.Fatalf("Advance(%q): %v", input, err)
	}
	return step
}

func TestFlowHappyPath(t *testing.T) {
	svc := newTestService(t, testOptions(), nil)

	step, err := svc.StartCreate("u1")
	if err != nil {
		t.Fatalf("StartCreate: %v", err)
	}
	if step.Stage != StageHost {
		t.Fatalf("initial stage = %s, want host", step.Stage)
	}

	step = advance(t, svc, "u1", "Ann")
	if step.Stage != StageCode {
		t.Fatalf("after host stage = %s, want code", step.Stage)
	}
	step = advance(t, svc, "u1", "ABCDEF")
	if step.Stage != StageMap {
		t.Fatalf("after code stage = %s, want map", step.Stage)
	}
	if len(step.Options) == 0 {
		t.Fatal("map prompt carries no options")
	}
	step = advance(t, svc, "u1", "Polus")
	if step.Stage != StageMode {
		t.Fatalf("after map stage = %s, want mode", step.Stage)
	}
	step = advance(t, svc, "u1", "Classic")
	if step.Committed == nil {
		t.Fatalf("mode input did not commit: %+v", step)
	}

	room := *step.Committed
	if room.Code != "ABCDEF" || room.Host != "Ann" || room.Map != "Polus" || room.Mode != "Classic" || room.OwnerID != "u1" {
		t.Fatalf("committed wrong room: %+v", room)
	}
	if left := time.Until(room.ExpiresAt); left < 59*time.Minute || left > 61*time.Minute {
		t.Fatalf("committed expiry %v, want about default TTL", left)
	}

	// The conversation is discarded on commit.
	if _, err := svc.Advance("u1", "anything"); !errors.Is(err, domain.ErrNoActiveFlow) {
		t.Fatalf("Advance after commit = %v, want ErrNoActiveFlow", err)
	}
}

func TestFlowRePromptsOnBadInput(t *testing.T) {
	svc := newTestService(t, testOptions(), nil)
	_, _ = svc.StartCreate("u1")

	step := advance(t, svc, "u1", strings.Repeat("x", 30))
	if step.Stage != StageHost || step.Diag == "" {
		t.Fatalf("bad host should re-prompt with a diagnostic: %+v", step)
	}
	advance(t, svc, "u1", "Ann")

	step = advance(t, svc, "u1", "AB!")
	if step.Stage != StageCode || step.Diag == "" {
		t.Fatalf("bad code should re-prompt with a diagnostic: %+v", step)
	}
}

func TestFlowCodeCollisionDiagnostic(t *testing.T) {
	svc := newTestService(t, testOptions(), nil)
	_, _ = svc.CreateRoom("other", "Bob", "ABCDEF", "Polus", "Classic")

	_, _ = svc.StartCreate("u1")
	advance(t, svc, "u1", "Ann")

	// Format and collision produce distinct diagnostics.
	badFormat := advance(t, svc, "u1", "ab")
	collision := advance(t, svc, "u1", "ABCDEF")
	if badFormat.Diag == collision.Diag {
		t.Fatalf("format and collision diagnostics are identical: %q", collision.Diag)
	}
	if collision.Stage != StageCode {
		t.Fatalf("collision left stage %s, want code", collision.Stage)
	}

	step := advance(t, svc, "u1", "FEDCBA")
	if step.Stage != StageMap {
		t.Fatalf("fresh code rejected: %+v", step)
	}
}

func TestFlowBacktrackingPreservesDraft(t *testing.T) {
	svc := newTestService(t, testOptions(), nil)
	_, _ = svc.StartCreate("u1")
	advance(t, svc, "u1", "Ann")
	advance(t, svc, "u1", "ABCDEF")
	advance(t, svc, "u1", "Polus")

	step := advance(t, svc, "u1", InputBack)
	if step.Stage != StageMap {
		t.Fatalf("back from mode landed on %s, want map", step.Stage)
	}

	// Complete from here; host and code entered earlier must survive.
	advance(t, svc, "u1", "The Skeld")
	step = advance(t, svc, "u1", "Classic")
	if step.Committed == nil {
		t.Fatalf("flow did not commit after backtrack: %+v", step)
	}
	if step.Committed.Host != "Ann" || step.Committed.Code != "ABCDEF" {
		t.Fatalf("backtrack lost draft fields: %+v", step.Committed)
	}
	if step.Committed.Map != "The Skeld" {
		t.Fatalf("re-picked map not applied: %+v", step.Committed)
	}
}

func TestFlowCancelFromAnyStage(t *testing.T) {
	svc := newTestService(t, testOptions(), nil)
	inputs := [][]string{
		{},
		{"Ann"},
		{"Ann", "ABCDEF"},
		{"Ann", "ABCDEF", "Polus"},
	}
	for _, prefix := range inputs {
		_, _ = svc.StartCreate("u1")
		for _, in := range prefix {
			advance(t, svc, "u1", in)
		}
		step := advance(t, svc, "u1", InputCancel)
		if !step.Cancelled {
			t.Fatalf("cancel after %v did not cancel: %+v", prefix, step)
		}
		if _, err := svc.Advance("u1", "x"); !errors.Is(err, domain.ErrNoActiveFlow) {
			t.Fatalf("flow survived cancel: %v", err)
		}
	}
	if len(svc.ListRooms()) != 0 {
		t.Fatal("cancelled flows created rooms")
	}
}

func TestFlowCommitRaceReturnsToCodeStage(t *testing.T) {
	svc := newTestService(t, testOptions(), nil)
	_, _ = svc.StartCreate("u1")
	advance(t, svc, "u1", "Ann")
	advance(t, svc, "u1", "ABCDEF")
	advance(t, svc, "u1", "Polus")

	// Another caller claims the code between validation and commit.
	if _, err := svc.CreateRoom("rival", "Bob", "ABCDEF", "Polus", "Classic"); err != nil {
		t.Fatalf("rival create: %v", err)
	}

	step := advance(t, svc, "u1", "Classic")
	if step.Committed != nil {
		t.Fatal("commit overwrote a racing room")
	}
	if step.Stage != StageCode || step.Diag == "" {
		t.Fatalf("commit race should return to the code stage: %+v", step)
	}

	// The rival's room is untouched and the flow can finish.
	rival, _ := svc.GetRoom("ABCDEF")
	if rival.Host != "Bob" {
		t.Fatalf("rival room mutated: %+v", rival)
	}
	advance(t, svc, "u1", "FEDCBA")
	advance(t, svc, "u1", "Polus")
	step = advance(t, svc, "u1", "Classic")
	if step.Committed == nil || step.Committed.Code != "FEDCBA" {
		t.Fatalf("flow did not recover after collision: %+v", step)
	}
}

func TestFlowOnePerOwnerRejectsEntry(t *testing.T) {
	opts := testOptions()
	opts.OnePerOwner = true
	svc := newTestService(t, opts, nil)
	_, _ = svc.CreateRoom("u1", "Ann", "AAAAAA", "Polus", "Classic")

	_, err := svc.StartCreate("u1")
	if !errors.Is(err, domain.ErrOwnerHasRoom) {
		t.Fatalf("StartCreate = %v, want ErrOwnerHasRoom", err)
	}
	if !strings.Contains(err.Error(), "AAAAAA") {
		t.Fatalf("existing code not surfaced: %v", err)
	}
}

func TestFlowEdit(t *testing.T) {
	svc := newTestService(t, testOptions(), nil)
	created, _ := svc.CreateRoom("u1", "Ann", "ABCDEF", "Polus", "Classic")

	if _, err := svc.StartEdit("intruder", "ABCDEF"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("StartEdit by non-owner = %v, want ErrForbidden", err)
	}
	if _, err := svc.StartEdit("u1", "NOSUCH"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("StartEdit on missing room = %v, want ErrNotFound", err)
	}

	step, err := svc.StartEdit("u1", "ABCDEF")
	if err != nil {
		t.Fatalf("StartEdit: %v", err)
	}
	if step.Stage != StageMap {
		t.Fatalf("edit flow starts at %s, want map", step.Stage)
	}
	advance(t, svc, "u1", "The Skeld")
	step = advance(t, svc, "u1", "Mods")
	if step.Committed == nil {
		t.Fatalf("edit flow did not commit: %+v", step)
	}
	if step.Committed.Map != "The Skeld" || step.Committed.Mode != "Mods" {
		t.Fatalf("edit not applied: %+v", step.Committed)
	}
	if step.Committed.Host != "Ann" || step.Committed.Code != "ABCDEF" {
		t.Fatalf("edit changed immutable fields: %+v", step.Committed)
	}
	if !step.Committed.ExpiresAt.Equal(created.ExpiresAt) {
		t.Fatal("edit flow moved the expiry clock")
	}
}

func TestFlowIdleEviction(t *testing.T) {
	opts := testOptions()
	opts.FlowIdleTTL = 20 * time.Millisecond
	svc := newTestService(t, opts, nil)

	_, _ = svc.StartCreate("u1")
	time.Sleep(60 * time.Millisecond)
	if _, err := svc.Advance("u1", "Ann"); !errors.Is(err, domain.ErrNoActiveFlow) {
		t.Fatalf("idle flow still alive: %v", err)
	}
}

func TestFlowAdvanceWithoutStart(t *testing.T) {
	svc := newTestService(t, testOptions(), nil)
	if _, err := svc.Advance("u1", "Ann"); !errors.Is(err, domain.ErrNoActiveFlow) {
		t.Fatalf("Advance without flow = %v, want ErrNoActiveFlow", err)
	}
	if svc.CancelFlow("u1") {
		t.Fatal("CancelFlow reported success with no flow")
	}
}

func TestFlowLowercaseCodeIsUppercased(t *testing.T) {
	svc := newTestService(t, testOptions(), nil)
	_, _ = svc.StartCreate("u1")
	advance(t, svc, "u1", "Ann")
	step := advance(t, svc, "u1", "abcdef")
	if step.Stage != StageMap {
		t.Fatalf("lowercase code not normalized: %+v", step)
	}
	advance(t, svc, "u1", "Polus")
	step = advance(t, svc, "u1", "Classic")
	if step.Committed == nil || step.Committed.Code != "ABCDEF" {
		t.Fatalf("committed code not uppercased: %+v", step)
	}
}
