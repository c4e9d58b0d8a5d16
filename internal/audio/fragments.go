package audio

import (
	"errors"
	"sync"
	"time"
)

// ErrSealed is returned when a fragment arrives after the buffer was sealed.
var ErrSealed = errors.New("fragment buffer is sealed")

// FragmentBuffer collects the binary fragments of one recording in arrival
// order. It is append-only until Seal; after that the content is fixed.
type FragmentBuffer struct {
	fragments [][]byte
	size      int

	firstAt time.Time
	lastAt  time.Time
	sealed  bool

	mu sync.RWMutex
}

// FragmentStats represents buffer statistics for monitoring
type FragmentStats struct {
	Fragments int       `json:"fragments"`
	Bytes     int       `json:"bytes"`
	FirstAt   time.Time `json:"first_at"`
	LastAt    time.Time `json:"last_at"`
	Sealed    bool      `json:"sealed"`
}

// NewFragmentBuffer creates an empty fragment buffer
func NewFragmentBuffer() *FragmentBuffer {
	return &FragmentBuffer{
		fragments: make([][]byte, 0, 64),
	}
}

// Append stores a copy of fragment at the end of the sequence. Empty
// fragments are ignored.
func (b *FragmentBuffer) Append(fragment []byte) error {
	if len(fragment) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sealed {
		return ErrSealed
	}

	now := time.Now()
	if len(b.fragments) == 0 {
		b.firstAt = now
	}
	b.lastAt = now

	b.fragments = append(b.fragments, append([]byte(nil), fragment...))
	b.size += len(fragment)

	return nil
}

// Seal stops further appends. Sealing twice is harmless.
func (b *FragmentBuffer) Seal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sealed = true
}

// Bytes returns the concatenation of all fragments in arrival order
func (b *FragmentBuffer) Bytes() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]byte, 0, b.size)
	for _, fragment := range b.fragments {
		out = append(out, fragment...)
	}
	return out
}

// Len returns the number of stored fragments
func (b *FragmentBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.fragments)
}

// Size returns the total number of buffered bytes
func (b *FragmentBuffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// GetStats returns buffer statistics
func (b *FragmentBuffer) GetStats() FragmentStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return FragmentStats{
		Fragments: len(b.fragments),
		Bytes:     b.size,
		FirstAt:   b.firstAt,
		LastAt:    b.lastAt,
		Sealed:    b.sealed,
	}
}
