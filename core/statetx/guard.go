package statetx

import (
	"errors"
	"fmt"
	"sync"
)

// ErrSubjectBusy is returned when an operation is already in flight for the
// same (owner, position) subject. Callers reject rather than queue: under a
// suspend-capable execution model, state read before a suspension point may
// be stale after resumption, so overlapping work on one subject is refused
// outright.
var ErrSubjectBusy = errors.New("statetx: subject busy")

// SubjectGuard is a non-blocking per-subject mutual exclusion map held for
// the duration of any operation that may suspend.
type SubjectGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewSubjectGuard constructs an empty guard.
func NewSubjectGuard() *SubjectGuard {
	return &SubjectGuard{held: make(map[string]struct{})}
}

func subjectKey(owner string, id uint64) string {
	return fmt.Sprintf("%s/%d", owner, id)
}

// Acquire claims the subject or fails immediately with ErrSubjectBusy.
func (g *SubjectGuard) Acquire(owner string, id uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := subjectKey(owner, id)
	if _, ok := g.held[key]; ok {
		return ErrSubjectBusy
	}
	g.held[key] = struct{}{}
	return nil
}

// Release frees the subject. Safe to call for a subject that is not held.
func (g *SubjectGuard) Release(owner string, id uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, subjectKey(owner, id))
}
