// Package memory provides map-backed implementations of the storage
// ports for standalone CLI use and tests. The external relational
// store replaces these in service deployments.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/carlosrabelo/arava/core/domain/entities"
	"github.com/carlosrabelo/arava/core/domain/ports"
)

// ErrNotFound is returned for lookups of unknown records.
var ErrNotFound = errors.New("record not found")

// DeviceRepository keeps device records in a map.
type DeviceRepository struct {
	mu      sync.RWMutex
	devices map[uuid.UUID]entities.Device
}

// NewDeviceRepository builds an empty repository.
func NewDeviceRepository() *DeviceRepository {
	return &DeviceRepository{devices: make(map[uuid.UUID]entities.Device)}
}

// Put inserts or replaces a device record.
func (r *DeviceRepository) Put(device entities.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[device.ID] = device
}

func (r *DeviceRepository) GetDevice(ctx context.Context, id uuid.UUID) (entities.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	device, ok := r.devices[id]
	if !ok {
		return entities.Device{}, fmt.Errorf("device %s: %w", id, ErrNotFound)
	}
	return device, nil
}

func (r *DeviceRepository) ListDevices(ctx context.Context) ([]entities.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	devices := make([]entities.Device, 0, len(r.devices))
	for _, device := range r.devices {
		devices = append(devices, device)
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Hostname < devices[j].Hostname
	})
	return devices, nil
}

// SnapshotStore keeps snapshots, diffs and rollback records in maps.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[uuid.UUID]entities.ConfigSnapshot
	diffs     map[string]entities.ConfigDiff
	rollbacks map[uuid.UUID]entities.RollbackOperation
}

// NewSnapshotStore builds an empty store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		snapshots: make(map[uuid.UUID]entities.ConfigSnapshot),
		diffs:     make(map[string]entities.ConfigDiff),
		rollbacks: make(map[uuid.UUID]entities.RollbackOperation),
	}
}

func diffKey(beforeID, afterID uuid.UUID) string {
	return beforeID.String() + "/" + afterID.String()
}

func (s *SnapshotStore) SaveSnapshot(ctx context.Context, snap entities.ConfigSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.ID] = snap
	return nil
}

func (s *SnapshotStore) GetSnapshot(ctx context.Context, id uuid.UUID) (entities.ConfigSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[id]
	if !ok {
		return entities.ConfigSnapshot{}, fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
	}
	return snap, nil
}

// LatestSnapshot returns the most recent snapshot of a device, by
// creation time.
func (s *SnapshotStore) LatestSnapshot(ctx context.Context, deviceID uuid.UUID) (entities.ConfigSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest entities.ConfigSnapshot
	found := false
	for _, snap := range s.snapshots {
		if snap.DeviceID != deviceID {
			continue
		}
		if !found || snap.CreatedAt.After(latest.CreatedAt) {
			latest = snap
			found = true
		}
	}
	return latest, found, nil
}

func (s *SnapshotStore) SaveDiff(ctx context.Context, diff entities.ConfigDiff) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diffs[diffKey(diff.BeforeSnapshotID, diff.AfterSnapshotID)] = diff
	return nil
}

func (s *SnapshotStore) GetDiff(ctx context.Context, beforeID, afterID uuid.UUID) (entities.ConfigDiff, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	diff, ok := s.diffs[diffKey(beforeID, afterID)]
	return diff, ok, nil
}

func (s *SnapshotStore) SaveRollback(ctx context.Context, op entities.RollbackOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollbacks[op.ID] = op
	return nil
}

func (s *SnapshotStore) GetRollback(ctx context.Context, id uuid.UUID) (entities.RollbackOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, ok := s.rollbacks[id]
	if !ok {
		return entities.RollbackOperation{}, fmt.Errorf("rollback %s: %w", id, ErrNotFound)
	}
	return op, nil
}

// TemplateStore serves template bodies from a map keyed
// brand/commandType. Useful for tests and embedded template sets.
type TemplateStore struct {
	mu        sync.RWMutex
	templates map[string]string
}

// NewTemplateStore builds an empty template store.
func NewTemplateStore() *TemplateStore {
	return &TemplateStore{templates: make(map[string]string)}
}

// Put registers a template body.
func (t *TemplateStore) Put(brand, commandType, body string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.templates[brand+"/"+commandType] = body
}

func (t *TemplateStore) Lookup(brand, commandType string) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	body, ok := t.templates[brand+"/"+commandType]
	if !ok {
		return "", ports.ErrTemplateNotFound
	}
	return body, nil
}
