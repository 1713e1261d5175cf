package logging

import "time"

// DefaultRecentEntries is the number of entries each logger family keeps in memory.
const DefaultRecentEntries = 512

// Entry is a formatted log line kept for excerpts.
type Entry struct {
	Time   time.Time
	Level  Level
	Fields []Field
	Line   string
}

// ring is a fixed-size buffer of the newest entries. Callers hold output.mu.
type ring struct {
	entries []Entry
	next    int
	full    bool
}

func newRing(size int) *ring {
	if size <= 0 {
		size = DefaultRecentEntries
	}
	return &ring{entries: make([]Entry, size)}
}

func (r *ring) add(e Entry) {
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

// ordered returns the buffered entries oldest first.
func (r *ring) ordered() []Entry {
	if !r.full {
		return r.entries[:r.next]
	}
	out := make([]Entry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	return append(out, r.entries[:r.next]...)
}

// matching returns the newest max entries that carry every field in want.
func (r *ring) matching(want []Field, max int) []Entry {
	all := r.ordered()
	var out []Entry
	for i := len(all) - 1; i >= 0; i-- {
		if max > 0 && len(out) >= max {
			break
		}
		if hasFields(all[i].Fields, want) {
			out = append(out, all[i])
		}
	}

	// reverse back to chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func hasFields(have, want []Field) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
