package speaker

import "sort"

// Store owns the buffers of every speaker seen since the last reset.
// Buffers are created lazily on first use.
type Store struct {
	buffers map[string]*Buffer
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{buffers: make(map[string]*Buffer)}
}

// Get returns the buffer for speaker, creating it if needed.
func (s *Store) Get(speaker string) *Buffer {
	b, ok := s.buffers[speaker]
	if !ok {
		b = NewBuffer(speaker)
		s.buffers[speaker] = b
	}
	return b
}

// Lookup returns the buffer for speaker without creating it.
func (s *Store) Lookup(speaker string) (*Buffer, bool) {
	b, ok := s.buffers[speaker]
	return b, ok
}

// Speakers returns the known speaker labels in sorted order.
func (s *Store) Speakers() []string {
	names := make([]string, 0, len(s.buffers))
	for name := range s.buffers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Active counts the buffers currently holding text.
func (s *Store) Active() int {
	n := 0
	for _, b := range s.buffers {
		if b.State() == StateBuffering {
			n++
		}
	}
	return n
}

// Len returns the number of known speakers.
func (s *Store) Len() int { return len(s.buffers) }

// Reset disarms every deadline and forgets all speakers.
func (s *Store) Reset() {
	for _, b := range s.buffers {
		b.Reset()
	}
	s.buffers = make(map[string]*Buffer)
}
