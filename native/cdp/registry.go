package cdp

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	protoerr "bollar/core/errors"
	"bollar/core/types"
	"bollar/storage"
)

// Registry is the persistent CDP store: an ordered id -> position map plus an
// owner -> []id index backed by the key-value database. Terminal records are
// retained forever for audit.
type Registry struct {
	db storage.Database
}

// NewRegistry wires a registry to the provided database.
func NewRegistry(db storage.Database) *Registry {
	return &Registry{db: db}
}

// NextID allocates the next monotonically increasing position id. The counter
// is part of every snapshot, so a rollback rewinds it along with the records
// it was allocated for.
func (r *Registry) NextID() (uint64, error) {
	current, err := r.loadNextID()
	if err != nil {
		return 0, err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, current+1)
	if err := r.db.Put(nextIDKey, buf); err != nil {
		return 0, err
	}
	return current, nil
}

func (r *Registry) loadNextID() (uint64, error) {
	raw, err := r.db.Get(nextIDKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("cdp: corrupt id counter (%d bytes)", len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}

// GetCDP loads one position. Returns ErrCDPNotFound when absent.
func (r *Registry) GetCDP(id uint64) (*types.CDP, error) {
	raw, err := r.db.Get(recordKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, protoerr.ErrCDPNotFound
	}
	if err != nil {
		return nil, err
	}
	record := new(types.CDP)
	if err := json.Unmarshal(raw, record); err != nil {
		return nil, fmt.Errorf("cdp: decode position %d: %w", id, err)
	}
	return record, nil
}

// PutCDP upserts one position record atomically.
func (r *Registry) PutCDP(record *types.CDP) error {
	if record == nil {
		return protoerr.ErrInvalidState
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("cdp: encode position %d: %w", record.ID, err)
	}
	return r.db.Put(recordKey(record.ID), raw)
}

// AppendOwner adds the id to the owner index.
func (r *Registry) AppendOwner(owner string, id uint64) error {
	ids, err := r.OwnerPositions(owner)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return r.db.Put(ownerKey(owner), raw)
}

// OwnerPositions returns the position ids recorded for an owner.
func (r *Registry) OwnerPositions(owner string) ([]uint64, error) {
	raw, err := r.db.Get(ownerKey(owner))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []uint64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("cdp: decode owner index %q: %w", owner, err)
	}
	return ids, nil
}

// IterateCDPs walks every position in ascending id order. Returning false
// from fn stops the walk.
func (r *Registry) IterateCDPs(fn func(*types.CDP) bool) error {
	var decodeErr error
	err := r.db.Iterate(recordPrefix, func(_, value []byte) bool {
		record := new(types.CDP)
		if err := json.Unmarshal(value, record); err != nil {
			decodeErr = fmt.Errorf("cdp: decode position during scan: %w", err)
			return false
		}
		return fn(record)
	})
	if decodeErr != nil {
		return decodeErr
	}
	return err
}

// FeeAccrual loads the protocol revenue record, zero-valued when absent.
func (r *Registry) FeeAccrual() (*types.FeeAccrual, error) {
	raw, err := r.db.Get(feeAccrualKey)
	if errors.Is(err, storage.ErrNotFound) {
		return &types.FeeAccrual{}, nil
	}
	if err != nil {
		return nil, err
	}
	fees := new(types.FeeAccrual)
	if err := json.Unmarshal(raw, fees); err != nil {
		return nil, fmt.Errorf("cdp: decode fee accrual: %w", err)
	}
	return fees, nil
}

// PutFeeAccrual persists the protocol revenue record.
func (r *Registry) PutFeeAccrual(fees *types.FeeAccrual) error {
	if fees == nil {
		return protoerr.ErrInvalidState
	}
	raw, err := json.Marshal(fees)
	if err != nil {
		return err
	}
	return r.db.Put(feeAccrualKey, raw)
}

// Snapshot captures the full registry state for the transaction manager.
func (r *Registry) Snapshot(operation string, now time.Time) (*types.StateSnapshot, error) {
	snapshot := &types.StateSnapshot{Operation: operation, TakenAt: now}
	if err := r.IterateCDPs(func(record *types.CDP) bool {
		snapshot.CDPs = append(snapshot.CDPs, *record)
		return true
	}); err != nil {
		return nil, err
	}
	nextID, err := r.loadNextID()
	if err != nil {
		return nil, err
	}
	snapshot.NextID = nextID
	fees, err := r.FeeAccrual()
	if err != nil {
		return nil, err
	}
	snapshot.Fees = *fees
	return snapshot, nil
}

// Restore rewrites the registry verbatim from a snapshot, discarding every
// record and index written since it was taken.
func (r *Registry) Restore(snapshot *types.StateSnapshot) error {
	if snapshot == nil {
		return protoerr.ErrInvalidState
	}
	for _, prefix := range [][]byte{recordPrefix, ownerPrefix} {
		var keys [][]byte
		if err := r.db.Iterate(prefix, func(key, _ []byte) bool {
			keys = append(keys, append([]byte(nil), key...))
			return true
		}); err != nil {
			return err
		}
		for _, key := range keys {
			if err := r.db.Delete(key); err != nil {
				return err
			}
		}
	}
	owners := make(map[string][]uint64)
	for i := range snapshot.CDPs {
		record := snapshot.CDPs[i]
		if err := r.PutCDP(&record); err != nil {
			return err
		}
		owners[record.Owner] = append(owners[record.Owner], record.ID)
	}
	for owner, ids := range owners {
		raw, err := json.Marshal(ids)
		if err != nil {
			return err
		}
		if err := r.db.Put(ownerKey(owner), raw); err != nil {
			return err
		}
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, snapshot.NextID)
	if err := r.db.Put(nextIDKey, buf); err != nil {
		return err
	}
	fees := snapshot.Fees
	return r.PutFeeAccrual(&fees)
}
