package downloader

import (
	"sort"
	"sync"

	"teachable-dl/internal/domain"
)

// Ledger accumulates permanently failed tasks over one run. Append-only;
// used for the end-of-run summary so a human can finish the remaining
// downloads without re-running the whole tool.
type Ledger struct {
	mu      sync.Mutex
	entries []domain.FailureEntry
}

func NewLedger() *Ledger {
	return &Ledger{}
}

func (l *Ledger) Add(entry domain.FailureEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy of the ledger sorted by course, then attachment id.
// Transfer completion order is meaningless; any ordering the report needs is
// applied here, decoupled from transfer timing.
func (l *Ledger) Entries() []domain.FailureEntry {
	l.mu.Lock()
	out := make([]domain.FailureEntry, len(l.entries))
	copy(out, l.entries)
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CourseID != out[j].CourseID {
			return out[i].CourseID < out[j].CourseID
		}
		return out[i].AttachmentID < out[j].AttachmentID
	})
	return out
}
