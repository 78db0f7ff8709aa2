package pipeline

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// seenWindow remembers the most recently published observation IDs so
// overlapping polls of the rolling window are not republished. It is an LRU
// set keyed by the xxhash of the ID. A window of size 0 remembers nothing.
type seenWindow struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[uint64]*entry
	head       *entry // most recently seen
	tail       *entry // least recently seen
}

type entry struct {
	key  uint64
	prev *entry
	next *entry
}

func newSeenWindow(maxEntries int) *seenWindow {
	return &seenWindow{
		maxEntries: maxEntries,
		entries:    make(map[uint64]*entry),
	}
}

// contains reports whether id was added and not yet evicted. A hit refreshes
// the entry.
func (w *seenWindow) contains(id string) bool {
	key := xxhash.Sum64String(id)

	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entries[key]
	if !ok {
		return false
	}
	w.moveToFront(e)
	return true
}

func (w *seenWindow) add(id string) {
	if w.maxEntries <= 0 {
		return
	}
	key := xxhash.Sum64String(id)

	w.mu.Lock()
	defer w.mu.Unlock()

	if e, ok := w.entries[key]; ok {
		w.moveToFront(e)
		return
	}

	e := &entry{key: key}
	w.entries[key] = e
	w.addToFront(e)

	if len(w.entries) > w.maxEntries {
		w.evictTail()
	}
}

func (w *seenWindow) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

func (w *seenWindow) moveToFront(e *entry) {
	if e == w.head {
		return
	}
	w.remove(e)
	w.addToFront(e)
}

func (w *seenWindow) addToFront(e *entry) {
	e.next = w.head
	e.prev = nil
	if w.head != nil {
		w.head.prev = e
	}
	w.head = e
	if w.tail == nil {
		w.tail = e
	}
}

func (w *seenWindow) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		w.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		w.tail = e.prev
	}
}

func (w *seenWindow) evictTail() {
	if w.tail == nil {
		return
	}
	delete(w.entries, w.tail.key)
	w.remove(w.tail)
}
