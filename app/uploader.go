package app

import (
	"github.com/vadiminshakov/tokencore/core/apdu"
)

// Chunk kinds carried in P1.
const (
	ChunkInit byte = 0
	ChunkAdd  byte = 1
	ChunkLast byte = 2
)

// UploadCapacity is the size of the swapping buffer a multi-frame payload is
// assembled in.
const UploadCapacity = 8 * 1024

// Upload is an assembled payload. First is the Init chunk, Data the rest.
// Both alias the uploader buffer and stay valid until Release.
type Upload struct {
	P2    byte
	First []byte
	Data  []byte
}

// Uploader assembles chunked payloads. After the Last chunk the buffer stays
// held until Release, and any new upload is refused as busy.
type Uploader struct {
	buf     [UploadCapacity]byte
	n       int
	initLen int
	open    bool
	held    bool
}

// Push stores one chunk. It returns the assembled payload on the Last chunk.
func (u *Uploader) Push(cmd apdu.Command) (*Upload, error) {
	kind := cmd.P1()
	if kind > ChunkLast {
		return nil, fault(apdu.InvalidP1P2)
	}
	if u.held {
		return nil, fault(apdu.Busy)
	}

	// a chunk without a declared payload carries nothing
	payload, err := cmd.Payload()
	if err != nil {
		payload = nil
	}

	if kind == ChunkInit {
		u.reset()
		u.buf[0] = cmd.P2()
		u.n = 1
		u.open = true
		if err := u.write(payload); err != nil {
			return nil, err
		}
		u.initLen = len(payload)
		return nil, nil
	}

	if !u.open {
		return nil, fault(apdu.ExecutionError)
	}
	if err := u.write(payload); err != nil {
		return nil, err
	}
	if kind == ChunkAdd {
		return nil, nil
	}

	u.held = true
	return &Upload{
		P2:    u.buf[0],
		First: u.buf[1 : 1+u.initLen],
		Data:  u.buf[1+u.initLen : u.n],
	}, nil
}

// Release wipes the buffer and accepts new uploads.
func (u *Uploader) Release() {
	u.reset()
}

// Held reports whether an assembled payload is still in use.
func (u *Uploader) Held() bool { return u.held }

func (u *Uploader) write(p []byte) error {
	if u.n+len(p) > len(u.buf) {
		u.reset()
		return fault(apdu.DataInvalid)
	}
	u.n += copy(u.buf[u.n:], p)
	return nil
}

func (u *Uploader) reset() {
	clear(u.buf[:u.n])
	u.n, u.initLen = 0, 0
	u.open, u.held = false, false
}
