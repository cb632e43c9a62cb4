package bot

import "testing"

func TestJoinGuardLocksOutOnThirdFailure(t *testing.T) {
	guard := NewJoinGuard(0)

	if guard.Fail(1) || guard.Fail(1) {
		t.Fatalf("expected no lockout before the third failure")
	}
	if got := guard.Failures(1); got != 2 {
		t.Fatalf("expected 2 failures, got %d", got)
	}
	if !guard.Fail(1) {
		t.Fatalf("expected lockout on the third failure")
	}
	if got := guard.Failures(1); got != 0 {
		t.Fatalf("expected counter cleared after lockout, got %d", got)
	}

	if guard.Fail(1) {
		t.Fatalf("expected counting to restart after a lockout")
	}
	if got := guard.Failures(1); got != 1 {
		t.Fatalf("expected 1 failure after restart, got %d", got)
	}
}

func TestJoinGuardIsPerUser(t *testing.T) {
	guard := NewJoinGuard(2)

	if guard.Fail(1) || guard.Fail(2) {
		t.Fatalf("expected first failures to pass")
	}
	guard.Reset(1)
	if got := guard.Failures(1); got != 0 {
		t.Fatalf("expected reset counter, got %d", got)
	}
	if !guard.Fail(2) {
		t.Fatalf("expected user 2 locked out independently of user 1")
	}
}
