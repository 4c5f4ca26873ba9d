package tracking

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Tracker. It is the default for one-shot CLI runs,
// where skipping within a single run is all that matters.
type Memory struct {
	mu      sync.Mutex
	entries map[string]Entry
}

var _ Tracker = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

func (m *Memory) IsProcessed(_ context.Context, fileID, sheetID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[trackingKey(fileID, sheetID)]
	return ok && entry.Status == StatusCompleted, nil
}

func (m *Memory) MarkProcessing(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.Status = StatusProcessing
	entry.ProcessedAt = time.Now().UTC()
	m.entries[trackingKey(entry.FileID, entry.SheetID)] = entry
	return nil
}

func (m *Memory) MarkCompleted(_ context.Context, fileID, sheetID string) error {
	m.setStatus(fileID, sheetID, StatusCompleted, "")
	return nil
}

func (m *Memory) MarkFailed(_ context.Context, fileID, sheetID, reason string) error {
	m.setStatus(fileID, sheetID, StatusFailed, reason)
	return nil
}

func (m *Memory) setStatus(fileID, sheetID string, status Status, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := trackingKey(fileID, sheetID)
	entry, ok := m.entries[key]
	if !ok {
		entry = Entry{FileID: fileID, SheetID: sheetID}
	}
	entry.Status = status
	entry.Error = reason
	entry.ProcessedAt = time.Now().UTC()
	m.entries[key] = entry
}

func trackingKey(fileID, sheetID string) string {
	return sheetID + ":" + fileID
}
