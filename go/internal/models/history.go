package models

// HistoryEntry is the terminal outcome of a past round, retained in a bounded
// trailing window for display and for the resting position of the next
// round's presentation.
type HistoryEntry struct {
	WinningNumber *int     `json:"winning_number,omitempty"`
	CrashPoint    *float64 `json:"crash_point,omitempty"`
}

// History is an append-only trailing window of round outcomes, newest first,
// oldest evicted.
type History struct {
	entries []HistoryEntry
	limit   int
}

// NewHistory returns a history window holding at most limit entries.
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

// Push prepends an entry, evicting the oldest if over the limit.
func (h *History) Push(e HistoryEntry) {
	h.entries = append([]HistoryEntry{e}, h.entries...)
	if len(h.entries) > h.limit {
		h.entries = h.entries[:h.limit]
	}
}

// Entries returns a copy of the window, newest first.
func (h *History) Entries() []HistoryEntry {
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Latest returns the most recent entry, or false when empty.
func (h *History) Latest() (HistoryEntry, bool) {
	if len(h.entries) == 0 {
		return HistoryEntry{}, false
	}
	return h.entries[0], true
}

// Len returns the number of retained entries.
func (h *History) Len() int { return len(h.entries) }
