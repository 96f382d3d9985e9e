package session

import (
	"time"

	"biasmeter/app/service/diagnosis"
)

type Entry struct {
	diagnosis.Result
	Timestamp time.Time `json:"timestamp"`
}

func (e Entry) Clock() string {
	return formatTime(e.Timestamp)
}

// History keeps the most recent successful results of a session.
type History struct {
	size    int
	entries []Entry
}

func (h *History) add(result diagnosis.Result, now time.Time) {
	entry := Entry{
		Result:    result,
		Timestamp: now,
	}

	if h.size > 0 && len(h.entries) >= h.size {
		h.entries = append(h.entries[1:], entry)
	} else {
		h.entries = append(h.entries, entry)
	}
}

func (h *History) list() []Entry {
	result := make([]Entry, len(h.entries))
	copy(result, h.entries)

	return result
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	return t.Format("15:04:05")
}
