// Package transport carries command frames over the single active link and
// exposes the blocking Exchange primitive used by the command loop.
//
// Device input keeps being serviced while Exchange waits for a frame: events
// and timer ticks are delivered to the sink on the caller's goroutine, one at
// a time, in arrival order. That is the only place the flow state machine is
// driven from, so it needs no locking.
package transport

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/tokencore/core/apdu"
	"github.com/vadiminshakov/tokencore/core/flow"
	"github.com/vadiminshakov/tokencore/core/guard"
)

// Flags modify a single exchange.
type Flags uint32

const (
	// FlagReturnAfterTx sends and returns without waiting for a command.
	FlagReturnAfterTx Flags = 1 << iota
	// FlagResetAfterReplied sends, then restarts the link.
	FlagResetAfterReplied
	// FlagAsyncReply suppresses the send; the reply is produced later by
	// the review flow.
	FlagAsyncReply
)

// Channel selects the logical channel of an exchange.
type Channel uint8

const (
	ChannelAPDU Channel = iota
	ChannelKeyboard
	ChannelSPI
)

var (
	// ErrUnsupportedChannel is fatal: the build only carries one channel.
	ErrUnsupportedChannel = errors.New("unsupported transport channel")
	// ErrLinkClosed is returned when the link stops delivering frames.
	ErrLinkClosed = errors.New("transport link closed")
)

// Link is the physical channel under the multiplexer.
//
//go:generate mockgen -destination=../../mocks/mock_link.go -package=mocks . Link
type Link interface {
	Open(ctx context.Context) error
	Send(frame []byte) error
	Frames() <-chan []byte
	Reset() error
	Close() error
}

// EventSink consumes device input while Exchange waits.
type EventSink interface {
	HandleEvent(ev flow.Event) error
}

type Option func(m *Mux)

// WithEvents sets the source of device input.
func WithEvents(events <-chan flow.Event) Option {
	return func(m *Mux) { m.events = events }
}

// WithTick makes the multiplexer deliver a redraw tick every period.
func WithTick(period time.Duration) Option {
	return func(m *Mux) { m.tickPeriod = period }
}

// WithHalter sets the halter used on unsupported channel selection.
func WithHalter(h guard.Halter) Option {
	return func(m *Mux) { m.halter = h }
}

type Mux struct {
	link       Link
	buf        *apdu.Buffer
	sink       EventSink
	events     <-chan flow.Event
	tickPeriod time.Duration
	ticker     *time.Ticker
	halter     guard.Halter
}

// New returns a multiplexer writing into buf. The sink is attached later with
// SetSink because the flow machine replies through the multiplexer.
func New(link Link, buf *apdu.Buffer, opts ...Option) *Mux {
	m := &Mux{link: link, buf: buf, halter: guard.LogHalter{}}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetSink attaches the consumer of device input.
func (m *Mux) SetSink(sink EventSink) {
	m.sink = sink
}

// BringUp opens the link.
func (m *Mux) BringUp(ctx context.Context) error {
	if err := m.link.Open(ctx); err != nil {
		return errors.Wrap(err, "open link")
	}
	if m.tickPeriod > 0 && m.ticker == nil {
		m.ticker = time.NewTicker(m.tickPeriod)
	}
	return nil
}

// Close stops the ticker and closes the link.
func (m *Mux) Close() error {
	if m.ticker != nil {
		m.ticker.Stop()
	}
	return m.link.Close()
}

// Exchange sends the first tx bytes of the shared buffer, unless tx is 0 or
// the reply is asynchronous, then blocks until the next command frame lands
// in the buffer and returns its length. With FlagReturnAfterTx or
// FlagResetAfterReplied it returns 0 right after sending.
func (m *Mux) Exchange(ctx context.Context, ch Channel, flags Flags, tx int) (int, error) {
	if ch != ChannelAPDU {
		err := errors.Wrapf(ErrUnsupportedChannel, "channel %d", ch)
		m.halter.Halt(err)
		return 0, err
	}

	if tx > 0 && flags&FlagAsyncReply == 0 {
		if err := m.link.Send(m.buf.Bytes()[:tx]); err != nil {
			return 0, errors.Wrap(err, "send frame")
		}
		if flags&FlagResetAfterReplied != 0 {
			return 0, m.link.Reset()
		}
		if flags&FlagReturnAfterTx != 0 {
			return 0, nil
		}
	}

	return m.receive(ctx)
}

// Reply sends n bytes and returns at once. The flow machine uses it to
// deliver approve/reject results.
func (m *Mux) Reply(n int) error {
	_, err := m.Exchange(context.Background(), ChannelAPDU, FlagReturnAfterTx, n)
	return err
}

func (m *Mux) receive(ctx context.Context) (int, error) {
	var ticks <-chan time.Time
	if m.ticker != nil {
		ticks = m.ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()

		case frame, ok := <-m.link.Frames():
			if !ok {
				return 0, ErrLinkClosed
			}
			n, err := m.buf.Load(frame)
			if err != nil {
				log.Warnf("dropping inbound frame: %v", err)
				if err := m.refuse(); err != nil {
					return 0, err
				}
				continue
			}
			return n, nil

		case ev := <-m.events:
			if err := m.deliver(ev); err != nil {
				return 0, err
			}

		case <-ticks:
			if err := m.deliver(flow.Tick()); err != nil {
				return 0, err
			}
		}
	}
}

// deliver hands one event to the sink. Only a quit request interrupts the
// exchange; other failures are logged.
func (m *Mux) deliver(ev flow.Event) error {
	if m.sink == nil {
		return nil
	}
	err := m.sink.HandleEvent(ev)
	if err == nil {
		return nil
	}
	if errors.Is(err, flow.ErrQuit) {
		return err
	}
	log.Errorf("event %s: %v", ev.Kind, err)
	return nil
}

// refuse answers an oversized frame with WrongLength.
func (m *Mux) refuse() error {
	tx, err := m.buf.PutStatus(0, apdu.WrongLength)
	if err != nil {
		return err
	}
	return errors.Wrap(m.link.Send(m.buf.Bytes()[:tx]), "send wrong length")
}
