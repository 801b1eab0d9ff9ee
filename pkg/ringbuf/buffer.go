package ringbuf

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/calvinalkan/ringfile/pkg/fs"
)

// Buffer is an open ring buffer file.
//
// A Buffer owns its file handle from [Open] until [Buffer.Close]. It is not
// safe for concurrent use: callers must serialize all method calls.
//
// A Buffer must be obtained via [Open]; the zero value is not usable.
//
// After a failed write or sync the file may no longer match the in-memory
// position, so every later call except Close and the accessors returns
// [ErrFileAccess] until the file is reopened.
type Buffer struct {
	_ [0]func() // prevent external construction

	file      fs.File
	path      string
	layout    layout
	writeback WritebackMode
	locked    bool
	log       logrus.FieldLogger
	recovery  Recovery

	first  index // oldest element
	last   index // next slot to write; equals first when empty or full
	size   int
	closed bool

	// broken is the first write or sync failure. Set once, never cleared.
	broken error
}

func newBuffer(f fs.File, opts Options, l layout, scan scanResult, recovery Recovery) *Buffer {
	return &Buffer{
		file:      f,
		path:      opts.Path,
		layout:    l,
		writeback: opts.Writeback,
		locked:    !opts.DisableLocking,
		log:       opts.Logger.WithField("path", opts.Path),
		recovery:  recovery,
		first:     scan.first,
		last:      l.advance(scan.first, scan.size),
		size:      scan.size,
	}
}

// Add appends text as the newest element. If the buffer is full, the oldest
// element is overwritten.
//
// Text longer than the payload size is silently truncated to that many bytes.
//
// Possible errors:
//   - [ErrFileAccess]: a write or sync failed, now or in an earlier call
//   - [ErrClosed]: the buffer was closed
func (b *Buffer) Add(text string) error {
	err := b.usable()
	if err != nil {
		return err
	}

	l := b.layout
	cur := b.last

	first, size := b.first, b.size
	if size == l.capacity {
		// Full: cur is the oldest slot; it gets overwritten and the head moves on.
		first = l.next(first)
	} else {
		size++
	}

	state := slotValid
	if cur == first {
		state = slotValidHead
	}

	rec := encodeSlot(l, state, text)
	off := l.slotOffset(cur)

	// The successor's flag byte is rewritten with every add: it is either the
	// head (ring is now full) or must read as empty. With capacity 1 the slot
	// is its own successor and rec already carries the head bit.
	following := l.next(cur)
	if following != cur {
		followFlag := encodeFlags(slotEmpty)
		if following == first {
			followFlag = encodeFlags(slotValidHead)
		}

		if l.isLastPhysical(cur) {
			// Ring wraps, file bytes don't: slot 0's flag is a separate write.
			err = b.writeAt(rec, off)
			if err != nil {
				return err
			}

			rec, off = []byte{followFlag}, l.slotOffset(following)
		} else {
			rec = append(rec, followFlag)
		}
	}

	err = b.writeAt(rec, off)
	if err != nil {
		return err
	}

	err = b.flush()
	if err != nil {
		return err
	}

	b.first = first
	b.last = l.advance(first, size)
	b.size = size

	return nil
}

// Remove dequeues and returns the oldest element.
//
// Possible errors:
//   - [ErrEmpty]: the buffer holds no elements
//   - [ErrFileAccess]: reading the element or writing the flags failed,
//     now or in an earlier call
//   - [ErrClosed]: the buffer was closed
func (b *Buffer) Remove() (string, error) {
	err := b.usable()
	if err != nil {
		return "", err
	}

	if b.size == 0 {
		return "", ErrEmpty
	}

	l := b.layout

	text, err := b.readText(b.first)
	if err != nil {
		return "", err
	}

	next := l.next(b.first)
	size := b.size - 1

	head := slotEmptyHead
	if size > 0 {
		head = slotValidHead
	}

	if next != b.first {
		err = b.writeAt([]byte{encodeFlags(slotEmpty)}, l.slotOffset(b.first))
		if err != nil {
			return "", err
		}
	}

	err = b.writeAt([]byte{encodeFlags(head)}, l.slotOffset(next))
	if err != nil {
		return "", err
	}

	err = b.flush()
	if err != nil {
		return "", err
	}

	b.first = next
	b.size = size

	return text, nil
}

// Peek returns the oldest element without removing it.
//
// Returns [ErrEmpty] if the buffer holds no elements.
func (b *Buffer) Peek() (string, error) {
	err := b.usable()
	if err != nil {
		return "", err
	}

	if b.size == 0 {
		return "", ErrEmpty
	}

	return b.readText(b.first)
}

// Entries returns all elements, oldest first.
func (b *Buffer) Entries() ([]string, error) {
	err := b.usable()
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, b.size)

	for k := range b.size {
		text, err := b.readText(b.layout.advance(b.first, k))
		if err != nil {
			return nil, err
		}

		out = append(out, text)
	}

	return out, nil
}

// Clear drops all elements and resets the head to slot 0, leaving the file in
// the same state as a freshly created one.
func (b *Buffer) Clear() error {
	err := b.usable()
	if err != nil {
		return err
	}

	err = b.writeAt(freshSlots(b.layout), headerSize)
	if err != nil {
		return err
	}

	err = b.flush()
	if err != nil {
		return err
	}

	b.first, b.last, b.size = 0, 0, 0

	return nil
}

// Len returns the number of elements in the buffer.
func (b *Buffer) Len() int {
	return b.size
}

// Cap returns the fixed capacity of the buffer.
func (b *Buffer) Cap() int {
	return b.layout.capacity
}

// Recovery reports how [Open] obtained the file.
func (b *Buffer) Recovery() Recovery {
	return b.recovery
}

// Info is a snapshot of the buffer's layout and position.
type Info struct {
	Path        string
	Capacity    int
	PayloadSize int
	SlotSize    int
	FileSize    int64
	First       int
	Last        int
	Len         int
	Writeback   WritebackMode
	Recovery    Recovery
}

// Info returns a snapshot of the buffer's layout and position.
func (b *Buffer) Info() Info {
	return Info{
		Path:        b.path,
		Capacity:    b.layout.capacity,
		PayloadSize: b.layout.payloadSize,
		SlotSize:    b.layout.slotSize(),
		FileSize:    b.layout.fileSize(),
		First:       int(b.first),
		Last:        int(b.last),
		Len:         b.size,
		Writeback:   b.writeback,
		Recovery:    b.recovery,
	}
}

// Close releases the file lock and closes the file.
//
// Close is idempotent; calls after the first return nil.
func (b *Buffer) Close() error {
	if b.closed {
		return nil
	}

	b.closed = true

	var unlockErr error
	if b.locked {
		unlockErr = unlockFile(b.file)
	}

	closeErr := b.file.Close()
	if closeErr != nil {
		closeErr = fileAccess("close", b.path, closeErr)
	}

	return errors.Join(unlockErr, closeErr)
}

func (b *Buffer) readText(i index) (string, error) {
	rec := make([]byte, b.layout.slotSize())

	_, err := b.file.ReadAt(rec, b.layout.slotOffset(i))
	if err != nil {
		return "", fileAccess("read", b.path, err)
	}

	return decodePayload(b.layout, rec), nil
}

// usable reports whether the Buffer may still touch the file.
func (b *Buffer) usable() error {
	if b.closed {
		return ErrClosed
	}

	if b.broken != nil {
		return fmt.Errorf("earlier write failed, reopen the buffer: %w", b.broken)
	}

	return nil
}

func (b *Buffer) writeAt(data []byte, off int64) error {
	_, err := b.file.WriteAt(data, off)
	if err != nil {
		b.log.WithError(err).WithField("offset", off).Error("write failed")
		b.broken = fileAccess("write", b.path, err)

		return b.broken
	}

	return nil
}

func (b *Buffer) flush() error {
	if b.writeback != WritebackSync {
		return nil
	}

	err := b.file.Sync()
	if err != nil {
		b.log.WithError(err).Error("sync failed")
		b.broken = fileAccess("sync", b.path, err)

		return b.broken
	}

	return nil
}
