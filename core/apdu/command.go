package apdu

import "github.com/pkg/errors"

// Offsets of the command header fields.
const (
	IndexCLA = 0
	IndexINS = 1
	IndexP1  = 2
	IndexP2  = 3
	IndexLen = 4

	// MinLength is the header size every command must carry.
	MinLength = 5
)

var (
	// ErrLengthMismatch means the frame is shorter than a command header.
	ErrLengthMismatch = errors.New("command shorter than header")
	// ErrNotEnoughPayload means the declared payload runs past the frame.
	ErrNotEnoughPayload = errors.New("declared payload exceeds frame")
)

// Command is a read view over a received frame. It does not copy.
type Command struct {
	buf []byte
	rx  int
}

// ReadCommand validates the header of the first rx bytes of buf.
func ReadCommand(buf []byte, rx int) (Command, error) {
	if rx < MinLength || len(buf) < MinLength {
		return Command{}, errors.Wrapf(ErrLengthMismatch, "got %d bytes", rx)
	}
	if len(buf) < rx {
		return Command{}, errors.Wrapf(ErrLengthMismatch, "frame %d larger than buffer %d", rx, len(buf))
	}
	return Command{buf: buf, rx: rx}, nil
}

func (c Command) CLA() byte { return c.buf[IndexCLA] }
func (c Command) INS() byte { return c.buf[IndexINS] }
func (c Command) P1() byte  { return c.buf[IndexP1] }
func (c Command) P2() byte  { return c.buf[IndexP2] }

// Payload returns the data bytes following the header, as declared by the
// length byte.
func (c Command) Payload() ([]byte, error) {
	plen := int(c.buf[IndexLen])
	if MinLength+plen > c.rx {
		return nil, errors.Wrapf(ErrNotEnoughPayload, "declared %d, got %d", plen, c.rx-MinLength)
	}
	return c.buf[MinLength : MinLength+plen], nil
}

// Out returns the buffer for writing the response. The command must not be
// read after this call.
func (c Command) Out() []byte { return c.buf }
