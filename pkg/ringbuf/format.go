package ringbuf

import (
	"bytes"
	"encoding/binary"
)

// RBF file format constants.
const (
	// File format version.
	formatVersion uint32 = 1

	// Header field offsets (bytes from file start).
	offMagic    = 0x0 // [4]byte
	offVersion  = 0x4 // uint32, big-endian
	offSlotSize = 0x8 // uint32, big-endian
	offCapacity = 0xC // uint32, big-endian
)

var magic = [4]byte{'R', 'B', 'F', ' '}

// header is the 16-byte file header.
type header struct {
	Magic    [4]byte
	Version  uint32
	SlotSize uint32
	Capacity uint32
}

func newHeader(l layout) header {
	return header{
		Magic:    magic,
		Version:  formatVersion,
		SlotSize: uint32(l.slotSize()),
		Capacity: uint32(l.capacity),
	}
}

func encodeHeader(h header) []byte {
	buf := make([]byte, headerSize)

	copy(buf[offMagic:], h.Magic[:])
	binary.BigEndian.PutUint32(buf[offVersion:], h.Version)
	binary.BigEndian.PutUint32(buf[offSlotSize:], h.SlotSize)
	binary.BigEndian.PutUint32(buf[offCapacity:], h.Capacity)

	return buf
}

// decodeHeader parses buf, which must be at least headerSize bytes.
func decodeHeader(buf []byte) header {
	var h header

	copy(h.Magic[:], buf[offMagic:offMagic+4])
	h.Version = binary.BigEndian.Uint32(buf[offVersion:])
	h.SlotSize = binary.BigEndian.Uint32(buf[offSlotSize:])
	h.Capacity = binary.BigEndian.Uint32(buf[offCapacity:])

	return h
}

// Slot flag bits.
const (
	flagValid byte = 1 << 0
	flagFirst byte = 1 << 1

	// All other bits are reserved and must be zero.
	flagReservedMask = ^(flagValid | flagFirst)
)

// slotState is the decoded form of a slot flag byte.
type slotState uint8

const (
	slotEmpty     slotState = iota // no data, not the head
	slotEmptyHead                  // no data, head of an empty buffer
	slotValid                      // live data
	slotValidHead                  // live data, oldest element
)

func (s slotState) valid() bool {
	return s == slotValid || s == slotValidHead
}

func (s slotState) head() bool {
	return s == slotEmptyHead || s == slotValidHead
}

func (s slotState) String() string {
	switch s {
	case slotEmpty:
		return "empty"
	case slotEmptyHead:
		return "empty+first"
	case slotValid:
		return "valid"
	case slotValidHead:
		return "valid+first"
	default:
		return "unknown"
	}
}

func encodeFlags(s slotState) byte {
	switch s {
	case slotEmptyHead:
		return flagFirst
	case slotValid:
		return flagValid
	case slotValidHead:
		return flagValid | flagFirst
	default:
		return 0
	}
}

// decodeFlags returns ok=false if any reserved bit is set.
func decodeFlags(b byte) (slotState, bool) {
	if b&flagReservedMask != 0 {
		return slotEmpty, false
	}

	switch b & (flagValid | flagFirst) {
	case flagFirst:
		return slotEmptyHead, true
	case flagValid:
		return slotValid, true
	case flagValid | flagFirst:
		return slotValidHead, true
	default:
		return slotEmpty, true
	}
}

// truncatePayload cuts text to at most n bytes. The cut is on raw bytes and
// may split a multi-byte sequence.
func truncatePayload(text string, n int) string {
	if len(text) <= n {
		return text
	}

	return text[:n]
}

// encodeSlot serializes one slot record: flag byte, payload zero-padded to
// payloadSize, terminator.
func encodeSlot(l layout, s slotState, text string) []byte {
	buf := make([]byte, l.slotSize())

	buf[0] = encodeFlags(s)
	copy(buf[flagSize:flagSize+l.payloadSize], truncatePayload(text, l.payloadSize))
	// Padding and terminator are already zero.

	return buf
}

// decodePayload returns the text stored in rec, a full slot record. The text
// ends at the first NUL or at the terminator position.
func decodePayload(l layout, rec []byte) string {
	payload := rec[flagSize : flagSize+l.payloadSize]

	if end := bytes.IndexByte(payload, 0); end >= 0 {
		payload = payload[:end]
	}

	return string(payload)
}

// freshImage returns the complete contents of a new, empty buffer file:
// header, all slots empty, slot 0 marked as head.
func freshImage(l layout) []byte {
	img := make([]byte, l.fileSize())

	copy(img, encodeHeader(newHeader(l)))
	img[l.slotOffset(0)] = encodeFlags(slotEmptyHead)

	return img
}

// freshSlots returns the slots region of an empty buffer.
func freshSlots(l layout) []byte {
	slots := make([]byte, int64(l.capacity)*int64(l.slotSize()))
	slots[0] = encodeFlags(slotEmptyHead)

	return slots
}
