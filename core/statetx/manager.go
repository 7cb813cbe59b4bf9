package statetx

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"bollar/core/types"
)

var (
	// ErrLocked is returned when a transaction is already open. At most
	// one transaction exists system-wide; all mutating operations
	// serialize through it.
	ErrLocked = errors.New("statetx: transaction already in progress")
	// ErrUnknownTransaction is returned for commit/rollback against an id
	// that is not the open transaction.
	ErrUnknownTransaction = errors.New("statetx: unknown transaction id")
)

// RegistryState is the snapshot surface the manager drives. The CDP registry
// is the production implementation.
type RegistryState interface {
	Snapshot(operation string, now time.Time) (*types.StateSnapshot, error)
	Restore(snapshot *types.StateSnapshot) error
}

// Manager wraps registry mutations in a snapshot/commit/rollback envelope so
// multi-step state changes land all-or-nothing. Single-writer: Begin fails
// rather than blocks when a transaction is already open.
type Manager struct {
	mu         sync.Mutex
	state      RegistryState
	open       *types.StateTransaction
	history    []*types.StateTransaction
	historyCap int
	now        func() time.Time
}

// NewManager constructs a manager retaining at most historyCap completed
// transactions for audit; the oldest entries are evicted first.
func NewManager(state RegistryState, historyCap int) *Manager {
	if historyCap <= 0 {
		historyCap = 32
	}
	return &Manager{
		state:      state,
		historyCap: historyCap,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source for deterministic tests.
func (m *Manager) SetClock(now func() time.Time) {
	if m == nil || now == nil {
		return
	}
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// Begin opens a transaction for the named operation after capturing a full
// before-snapshot. Returns the transaction id.
func (m *Manager) Begin(operation string) (string, error) {
	if m == nil || m.state == nil {
		return "", fmt.Errorf("statetx: manager not configured")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open != nil {
		return "", ErrLocked
	}
	now := m.now()
	before, err := m.state.Snapshot(operation, now)
	if err != nil {
		return "", fmt.Errorf("statetx: before-snapshot: %w", err)
	}
	tx := &types.StateTransaction{
		ID:        uuid.NewString(),
		Operation: operation,
		StartedAt: now,
		Status:    types.TransactionStatusOpen,
		Before:    before,
	}
	m.open = tx
	return tx.ID, nil
}

// Commit takes the after-snapshot, marks the transaction committed, and
// releases the lock.
func (m *Manager) Commit(txID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, err := m.openTx(txID)
	if err != nil {
		return err
	}
	now := m.now()
	after, err := m.state.Snapshot(tx.Operation, now)
	if err != nil {
		return fmt.Errorf("statetx: after-snapshot: %w", err)
	}
	tx.After = after
	tx.Status = types.TransactionStatusCommitted
	tx.EndedAt = now
	m.finish(tx)
	return nil
}

// Rollback restores the registry verbatim from the before-snapshot, records
// the reason, and releases the lock.
func (m *Manager) Rollback(txID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, err := m.openTx(txID)
	if err != nil {
		return err
	}
	if err := m.state.Restore(tx.Before); err != nil {
		return fmt.Errorf("statetx: restore: %w", err)
	}
	tx.Status = types.TransactionStatusRolledBack
	tx.Reason = reason
	tx.EndedAt = m.now()
	m.finish(tx)
	return nil
}

func (m *Manager) openTx(txID string) (*types.StateTransaction, error) {
	if m.open == nil || m.open.ID != txID {
		return nil, ErrUnknownTransaction
	}
	return m.open, nil
}

func (m *Manager) finish(tx *types.StateTransaction) {
	m.open = nil
	m.history = append(m.history, tx)
	if len(m.history) > m.historyCap {
		m.history = m.history[len(m.history)-m.historyCap:]
	}
}

// Run executes fn inside a transaction with guaranteed release on every exit
// path: commit when fn returns nil, rollback otherwise. The returned error is
// fn's error; envelope failures wrap it.
func (m *Manager) Run(operation string, fn func() error) error {
	txID, err := m.Begin(operation)
	if err != nil {
		return err
	}
	if err := fn(); err != nil {
		if rbErr := m.Rollback(txID, err.Error()); rbErr != nil {
			return fmt.Errorf("statetx: rollback after %q failed: %w", err.Error(), rbErr)
		}
		return err
	}
	if err := m.Commit(txID); err != nil {
		if rbErr := m.Rollback(txID, err.Error()); rbErr != nil {
			return fmt.Errorf("statetx: commit and rollback both failed: %w", rbErr)
		}
		return err
	}
	return nil
}

// History returns the retained transactions, oldest first. Snapshots are
// omitted from the copies; they can be large and the audit surface only
// needs outcomes.
func (m *Manager) History() []types.StateTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.StateTransaction, 0, len(m.history))
	for _, tx := range m.history {
		entry := *tx
		entry.Before = nil
		entry.After = nil
		out = append(out, entry)
	}
	return out
}

// InTransaction reports whether a transaction is currently open.
func (m *Manager) InTransaction() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open != nil
}
