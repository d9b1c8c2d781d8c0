package responder

// History is a fixed-capacity FIFO of recently used fallback replies.
// When full, pushing overwrites the oldest entry. It is not safe for
// concurrent use; Policy guards it with its own mutex.
type History struct {
	buf  []string
	size int
	head int // next write position
	n    int
}

// NewHistory creates a history holding at most size entries.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{
		buf:  make([]string, size),
		size: size,
	}
}

// Push appends s, evicting the oldest entry once the history is full.
func (h *History) Push(s string) {
	h.buf[h.head] = s
	h.head = (h.head + 1) % h.size
	if h.n < h.size {
		h.n++
	}
}

// Contains reports whether s is among the remembered entries.
func (h *History) Contains(s string) bool {
	for i := 0; i < h.n; i++ {
		if h.buf[(h.head-h.n+i+h.size)%h.size] == s {
			return true
		}
	}
	return false
}

// Len returns the number of remembered entries.
func (h *History) Len() int {
	return h.n
}

// Cap returns the maximum number of entries.
func (h *History) Cap() int {
	return h.size
}

// Snapshot returns the entries oldest first.
func (h *History) Snapshot() []string {
	out := make([]string, 0, h.n)
	for i := 0; i < h.n; i++ {
		out = append(out, h.buf[(h.head-h.n+i+h.size)%h.size])
	}
	return out
}
