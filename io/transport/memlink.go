package transport

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// ErrNoCaller is returned when a reply has nobody to go to.
var ErrNoCaller = errors.New("no caller waiting for a reply")

// MemLink is an in-process link. The host side pushes frames with Transmit
// and reads replies; the device side is the Link interface.
type MemLink struct {
	frames    chan []byte
	replies   chan []byte
	resets    atomic.Int32
	closeOnce sync.Once
}

// NewMemLink returns a link buffering up to depth frames each way.
func NewMemLink(depth int) *MemLink {
	return &MemLink{
		frames:  make(chan []byte, depth),
		replies: make(chan []byte, depth),
	}
}

func (l *MemLink) Open(context.Context) error { return nil }

func (l *MemLink) Send(frame []byte) error {
	select {
	case l.replies <- append([]byte(nil), frame...):
		return nil
	default:
		return ErrNoCaller
	}
}

func (l *MemLink) Frames() <-chan []byte { return l.frames }

func (l *MemLink) Reset() error {
	l.resets.Add(1)
	return nil
}

func (l *MemLink) Close() error {
	l.closeOnce.Do(func() { close(l.frames) })
	return nil
}

// Resets returns how many times the device restarted the link.
func (l *MemLink) Resets() int { return int(l.resets.Load()) }

// Push queues a command frame without waiting for the reply.
func (l *MemLink) Push(ctx context.Context, frame []byte) error {
	select {
	case l.frames <- append([]byte(nil), frame...):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Replies delivers frames sent by the device.
func (l *MemLink) Replies() <-chan []byte { return l.replies }

// Transmit pushes a command and waits for the next reply.
func (l *MemLink) Transmit(ctx context.Context, frame []byte) ([]byte, error) {
	if err := l.Push(ctx, frame); err != nil {
		return nil, err
	}
	select {
	case reply := <-l.replies:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
