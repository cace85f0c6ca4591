package memory

import (
	"fmt"
	"sync"

	"github.com/lokutor-ai/vtuber-orchestrator/pkg/orchestrator"
)

// CoreMemory is the categorized, importance-ranked long-lived memory store
// that the core-memory distillation worker writes into, grounded on
// core_memory_processor.py's file-backed entry list.
type CoreMemory struct {
	mu      sync.Mutex
	path    string
	entries []orchestrator.CoreMemoryEntry
}

type coreMemoryRecord struct {
	Text       string `json:"memory_text"`
	Importance string `json:"importance_level"`
	Category   string `json:"category"`
	Timestamp  string `json:"timestamp"`
}

// NewCoreMemory loads an existing core-memory file at path, if present.
func NewCoreMemory(path string) (*CoreMemory, error) {
	cm := &CoreMemory{path: path}

	var loaded []coreMemoryRecord
	if err := loadJSON(path, &loaded); err != nil {
		return nil, err
	}
	for _, rec := range loaded {
		entry := orchestrator.CoreMemoryEntry{
			Text:       rec.Text,
			Importance: orchestrator.Importance(rec.Importance),
			Category:   rec.Category,
		}
		if t, err := parseTimestamp(rec.Timestamp); err == nil {
			entry.CreatedAt = t
		}
		cm.entries = append(cm.entries, entry)
	}
	return cm, nil
}

// Add appends entry and persists the store.
func (cm *CoreMemory) Add(entry orchestrator.CoreMemoryEntry) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.entries = append(cm.entries, entry)
	return saveJSON(cm.path, cm.toRecords(), "  ")
}

// All returns every stored core-memory entry.
func (cm *CoreMemory) All() []orchestrator.CoreMemoryEntry {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return append([]orchestrator.CoreMemoryEntry(nil), cm.entries...)
}

// ByImportance returns entries filtered to a single importance level.
func (cm *CoreMemory) ByImportance(level orchestrator.Importance) []orchestrator.CoreMemoryEntry {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	var out []orchestrator.CoreMemoryEntry
	for _, e := range cm.entries {
		if e.Importance == level {
			out = append(out, e)
		}
	}
	return out
}

// Summary renders the stored core memories grouped by importance level,
// critical first, for inclusion in the prompt's core-memory section.
func (cm *CoreMemory) Summary() string {
	cm.mu.Lock()
	entries := append([]orchestrator.CoreMemoryEntry(nil), cm.entries...)
	cm.mu.Unlock()

	if len(entries) == 0 {
		return ""
	}

	var b []byte
	appendGroup := func(label string, level orchestrator.Importance) {
		var group []orchestrator.CoreMemoryEntry
		for _, e := range entries {
			if e.Importance == level {
				group = append(group, e)
			}
		}
		if len(group) == 0 {
			return
		}
		b = append(b, fmt.Sprintf("%s:\n", label)...)
		for _, e := range group {
			b = append(b, fmt.Sprintf("- %s (%s)\n", e.Text, e.Category)...)
		}
	}

	appendGroup("Critical", orchestrator.ImportanceCritical)
	appendGroup("High importance", orchestrator.ImportanceHigh)
	appendGroup("Medium importance", orchestrator.ImportanceMedium)

	return string(b)
}

func (cm *CoreMemory) toRecords() []coreMemoryRecord {
	records := make([]coreMemoryRecord, len(cm.entries))
	for i, e := range cm.entries {
		records[i] = coreMemoryRecord{
			Text:       e.Text,
			Importance: string(e.Importance),
			Category:   e.Category,
			Timestamp:  formatTimestamp(e.CreatedAt),
		}
	}
	return records
}
