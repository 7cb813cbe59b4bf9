package statetx

import "testing"

func TestSubjectGuardExclusion(t *testing.T) {
	guard := NewSubjectGuard()

	if err := guard.Acquire("alice", 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := guard.Acquire("alice", 1); err != ErrSubjectBusy {
		t.Fatalf("expected SubjectBusy, got %v", err)
	}
	// Distinct subjects are independent.
	if err := guard.Acquire("alice", 2); err != nil {
		t.Fatalf("acquire distinct id: %v", err)
	}
	if err := guard.Acquire("bob", 1); err != nil {
		t.Fatalf("acquire distinct owner: %v", err)
	}

	guard.Release("alice", 1)
	if err := guard.Acquire("alice", 1); err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
}

func TestSubjectGuardReleaseUnheld(t *testing.T) {
	guard := NewSubjectGuard()
	guard.Release("nobody", 99)
	if err := guard.Acquire("nobody", 99); err != nil {
		t.Fatalf("acquire: %v", err)
	}
}
