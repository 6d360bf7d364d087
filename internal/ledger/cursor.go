package ledger

import "sync"

// AppendCursor remembers how much of the ledger a row-per-record backend has
// already stored, so each Save only inserts what was appended since.
// The ledger only ever appends, so the stored part is always a prefix.
type AppendCursor struct {
	mu     sync.Mutex
	stored int
}

// Pending returns the records past the stored prefix. A record set shorter
// than the prefix means the caller lost track, and everything is pending.
func (c *AppendCursor) Pending(records []Record) []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stored > len(records) {
		c.stored = 0
	}
	return records[c.stored:]
}

// Stored marks the first n records as persisted. Call it after a commit.
func (c *AppendCursor) Stored(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stored = n
}
