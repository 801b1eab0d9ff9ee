// Package ringbuf provides a persistent, file-backed circular buffer of
// bounded-length text records.
//
// The buffer lives in a single fixed-size file: a 16-byte header followed by
// Capacity slots of PayloadSize+2 bytes each. The file never grows or shrinks;
// once full, each [Buffer.Add] evicts the oldest element.
//
// # Basic Usage
//
//	buf, err := ringbuf.Open(ringbuf.Options{
//	    Path:        "/var/lib/app/events.ring",
//	    Capacity:    1024,
//	    PayloadSize: 120,
//	})
//	if err != nil {
//	    // only file access problems and invalid options end up here
//	}
//	defer buf.Close()
//
//	_ = buf.Add("disk almost full")
//
//	text, err := buf.Remove()
//	if errors.Is(err, ringbuf.ErrEmpty) {
//	    // nothing queued
//	}
//
// # Recovery
//
// On [Open] an existing file is validated: header fields must match the
// options exactly, exactly one slot must carry the head marker, and the valid
// slots must form one contiguous run starting at the head. A file that fails
// any check is deleted and recreated empty. This is the only recovery mode;
// there is no journal. [Buffer.Recovery] reports what happened.
//
// # Text
//
// Values longer than PayloadSize bytes are truncated on raw byte count, which
// may split a multi-byte UTF-8 sequence. A value is read back up to its first
// NUL byte.
//
// # Concurrency
//
// A [Buffer] is not safe for concurrent use; callers serialize all calls.
// Across processes, Open takes a non-blocking exclusive flock on the file and
// returns [ErrBusy] if another process holds it.
package ringbuf
