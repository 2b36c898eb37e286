package speaker

// Ring is a fixed-capacity list of strings that evicts the oldest entry.
type Ring struct {
	items    []string
	capacity int
}

// NewRing creates a ring holding at most capacity items.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{capacity: capacity, items: make([]string, 0, capacity)}
}

// Push adds s, evicting the oldest item when full.
func (r *Ring) Push(s string) {
	if len(r.items) == r.capacity {
		copy(r.items, r.items[1:])
		r.items = r.items[:len(r.items)-1]
	}
	r.items = append(r.items, s)
}

// Items returns a copy of the contents, oldest first.
func (r *Ring) Items() []string {
	out := make([]string, len(r.items))
	copy(out, r.items)
	return out
}

// Len returns the number of items held.
func (r *Ring) Len() int { return len(r.items) }

// Clear empties the ring.
func (r *Ring) Clear() { r.items = r.items[:0] }
