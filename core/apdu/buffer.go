package apdu

import "github.com/pkg/errors"

// MaxFrameSize is the largest command frame any supported transport carries.
const MaxFrameSize = 260

var (
	// ErrOutputTooSmall is returned when a write would run past the buffer capacity.
	ErrOutputTooSmall = errors.New("output does not fit into command buffer")
	// ErrFrameTooLarge is returned for an inbound frame above the capacity.
	ErrFrameTooLarge = errors.New("inbound frame exceeds command buffer")
)

// Buffer is the shared command buffer. It lives inside the device context for
// the whole process lifetime and is overwritten in place on every exchange;
// it never grows.
type Buffer struct {
	data     [MaxFrameSize]byte
	capacity int
}

// Init sets the logical capacity, bounded by the transport MTU.
func (b *Buffer) Init(capacity int) error {
	if capacity < MinLength+2 || capacity > MaxFrameSize {
		return errors.Errorf("buffer capacity %d out of range [%d, %d]", capacity, MinLength+2, MaxFrameSize)
	}
	b.capacity = capacity
	return nil
}

// Cap returns the logical capacity.
func (b *Buffer) Cap() int { return b.capacity }

// Bytes returns the whole usable region of the buffer.
func (b *Buffer) Bytes() []byte { return b.data[:b.capacity] }

// Load copies an inbound frame into the buffer and returns its length.
// Frames larger than the capacity are refused and leave the buffer untouched.
func (b *Buffer) Load(frame []byte) (int, error) {
	if len(frame) > b.capacity {
		return 0, errors.Wrapf(ErrFrameTooLarge, "frame of %d bytes", len(frame))
	}
	return copy(b.data[:b.capacity], frame), nil
}

// PutStatus writes sw at offset tx and returns the new outbound length.
func (b *Buffer) PutStatus(tx int, sw StatusWord) (int, error) {
	if tx < 0 || tx+2 > b.capacity {
		return tx, ErrOutputTooSmall
	}
	b.data[tx] = sw.Hi()
	b.data[tx+1] = sw.Lo()
	return tx + 2, nil
}

// Zero wipes the usable region.
func (b *Buffer) Zero() {
	clear(b.data[:b.capacity])
}
