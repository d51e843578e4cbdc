package state

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryKey struct {
	id    string
	stage Stage
}

// MemoryStore is an in-process Store used by tests and dry runs.
type MemoryStore struct {
	mu      sync.Mutex
	records map[memoryKey]Record
	puts    int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[memoryKey]Record)}
}

func (m *MemoryStore) Get(_ context.Context, submissionID string, stage Stage) (*Record, error) {
	if err := validateStage(stage); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[memoryKey{submissionID, stage}]
	if !ok {
		return nil, nil
	}
	clone := cloneRecord(record)
	return &clone, nil
}

func (m *MemoryStore) Put(_ context.Context, record Record) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[memoryKey{record.SubmissionID, record.Stage}] = cloneRecord(record)
	m.puts++
	return nil
}

func (m *MemoryStore) All(_ context.Context, stage Stage) (map[string]Record, error) {
	if err := validateStage(stage); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Record)
	for key, record := range m.records {
		if key.stage == stage {
			out[key.id] = cloneRecord(record)
		}
	}
	return out, nil
}

func (m *MemoryStore) Counts(ctx context.Context, stage Stage) (Counts, error) {
	records, err := m.All(ctx, stage)
	if err != nil {
		return Counts{}, err
	}
	var counts Counts
	for _, record := range records {
		counts.add(record.Status, 1)
	}
	return counts, nil
}

func (m *MemoryStore) Delete(_ context.Context, submissionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stage := range Stages {
		delete(m.records, memoryKey{submissionID, stage})
	}
	return nil
}

// Puts returns the number of successful writes.
func (m *MemoryStore) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

func (m *MemoryStore) Close() error { return nil }

func cloneRecord(record Record) Record {
	clone := record
	if record.Payload != nil {
		clone.Payload = append(json.RawMessage(nil), record.Payload...)
	}
	if record.Error != nil {
		errCopy := *record.Error
		clone.Error = &errCopy
	}
	if record.Flags != nil {
		clone.Flags = append(clone.Flags[:0:0], record.Flags...)
	}
	return clone
}
