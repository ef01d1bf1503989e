package batch

// Entry is one distinct reading and how often it occurred.
type Entry struct {
	Digits string `json:"digits" yaml:"digits"`
	Count  int    `json:"count" yaml:"count"`
}

// Tally counts readings by exact string match, remembering the order in
// which distinct readings were first seen. The zero value is ready to use.
// A Tally is not safe for concurrent use.
type Tally struct {
	counts map[string]int
	order  []string
}

// Add counts one occurrence of s. Empty strings are ignored.
func (t *Tally) Add(s string) {
	if s == "" {
		return
	}
	if t.counts == nil {
		t.counts = make(map[string]int)
	}
	if _, seen := t.counts[s]; !seen {
		t.order = append(t.order, s)
	}
	t.counts[s]++
}

// Count returns how often s was added.
func (t *Tally) Count(s string) int { return t.counts[s] }

// Len returns the number of distinct readings.
func (t *Tally) Len() int { return len(t.order) }

// Total returns the number of counted readings.
func (t *Tally) Total() int {
	n := 0
	for _, c := range t.counts {
		n += c
	}
	return n
}

// Best returns the most frequent reading. Among equal counts the one seen
// first wins. ok is false for an empty tally.
func (t *Tally) Best() (digits string, count int, ok bool) {
	for _, s := range t.order {
		if c := t.counts[s]; c > count {
			digits, count, ok = s, c, true
		}
	}
	return digits, count, ok
}

// Entries returns the readings in first-seen order.
func (t *Tally) Entries() []Entry {
	out := make([]Entry, len(t.order))
	for i, s := range t.order {
		out[i] = Entry{Digits: s, Count: t.counts[s]}
	}
	return out
}

// Reset empties the tally.
func (t *Tally) Reset() {
	clear(t.counts)
	t.order = t.order[:0]
}
