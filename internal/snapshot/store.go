package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sbenjam1n/autopilot/internal/automation"
)

// Store persists a single engine snapshot. Load returns nil, nil when
// nothing has been saved yet.
type Store interface {
	Load(ctx context.Context) (*automation.Snapshot, error)
	Save(ctx context.Context, snap *automation.Snapshot) error
}

// Memory keeps the encoded snapshot in process memory.
type Memory struct {
	mu   sync.Mutex
	data []byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Load decodes the last saved snapshot.
func (m *Memory) Load(context.Context) (*automation.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	return decode(m.data)
}

// Save replaces the stored snapshot.
func (m *Memory) Save(_ context.Context, snap *automation.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
	return nil
}

func encode(snap *automation.Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot: nil snapshot")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*automation.Snapshot, error) {
	var snap automation.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	return &snap, nil
}
