package ringbuf

// File layout sizes (bytes).
const (
	headerSize     = 16 // magic(4) + version(4) + slot size(4) + capacity(4)
	flagSize       = 1
	terminatorSize = 1
)

// index addresses a slot in the ring. Values are always in [0, capacity);
// wraparound goes through [layout.next] and [layout.advance] only.
type index int

// layout maps slot indices to byte offsets for one capacity/payload pair.
// It is a value type with no I/O.
type layout struct {
	capacity    int
	payloadSize int
}

func newLayout(capacity, payloadSize int) layout {
	return layout{capacity: capacity, payloadSize: payloadSize}
}

// slotSize is flag + payload + terminator.
func (l layout) slotSize() int {
	return flagSize + l.payloadSize + terminatorSize
}

// fileSize is fixed for the lifetime of a file.
func (l layout) fileSize() int64 {
	return headerSize + int64(l.capacity)*int64(l.slotSize())
}

func (l layout) slotOffset(i index) int64 {
	return headerSize + int64(i)*int64(l.slotSize())
}

// offsetToIndex returns the slot containing byte offset off.
// off must lie within the slots region.
func (l layout) offsetToIndex(off int64) index {
	return index((off - headerSize) / int64(l.slotSize()))
}

func (l layout) next(i index) index {
	if int(i)+1 == l.capacity {
		return 0
	}

	return i + 1
}

// advance returns the index n slots after i, n >= 0.
func (l layout) advance(i index, n int) index {
	return index((int(i) + n) % l.capacity)
}

// isLastPhysical reports whether i is the final slot in the file, whose
// successor's bytes are not contiguous with its own.
func (l layout) isLastPhysical(i index) bool {
	return int(i) == l.capacity-1
}
