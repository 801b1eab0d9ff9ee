package ringbuf

// Hardcoded implementation limits.
//
// Fresh files are built in memory and written with one atomic rename, so the
// file size cap doubles as an allocation cap. All limit violations return
// ErrInvalidInput.
const (
	// Maximum payload bytes per slot.
	maxPayloadSize = 1 << 16

	// Maximum number of slots.
	maxCapacity = 1 << 24

	// Maximum total file size (bytes).
	maxFileSizeBytes = int64(256) << 20 // 256 MiB
)

// Defaults used when [Options] leaves Capacity or PayloadSize at zero.
const (
	DefaultCapacity    = 3
	DefaultPayloadSize = 2
)
