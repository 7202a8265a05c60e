// Package dispatcher runs the command loop: exchange a frame, hand it to the
// command handler, check the stack guard, repeat.
//
// Handler failures never leave the loop. They are translated into status
// words written into the shared buffer and sent on the next exchange, which
// is also the only retry boundary.
package dispatcher

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/tokencore/core/apdu"
	"github.com/vadiminshakov/tokencore/io/transport"
)

// Phase is the dispatcher lifecycle.
type Phase uint8

const (
	NotInitialized Phase = iota
	Running
)

func (p Phase) String() string {
	if p == Running {
		return "running"
	}
	return "not-initialized"
}

// runningFaultLen is the length of the record sent for a fault after start-up.
const runningFaultLen = 4

// Handler processes one command. It reads rx bytes from buf and writes its
// reply, status word included, into buf, returning the reply length and the
// flags for the next exchange. A failure is reported as an apdu.Fault.
//
//go:generate mockgen -destination=../../mocks/mock_handler.go -package=mocks . Handler
type Handler interface {
	Handle(buf []byte, rx int) (tx int, flags transport.Flags, err error)
}

// Exchanger is the transport multiplexer seen from the loop.
//
//go:generate mockgen -destination=../../mocks/mock_exchanger.go -package=mocks . Exchanger
type Exchanger interface {
	BringUp(ctx context.Context) error
	Exchange(ctx context.Context, ch transport.Channel, flags transport.Flags, tx int) (int, error)
}

// Checker is the stack guard.
type Checker interface {
	Check() error
}

// Idler shows the idle menu at start-up.
type Idler interface {
	ShowIdle() error
}

type Dispatcher struct {
	phase   Phase
	buf     *apdu.Buffer
	mux     Exchanger
	handler Handler
	guard   Checker
	idle    Idler

	tx    int
	flags transport.Flags
}

// New wires the loop. idle may be nil when no display is attached.
func New(buf *apdu.Buffer, mux Exchanger, handler Handler, guard Checker, idle Idler) *Dispatcher {
	return &Dispatcher{
		buf:     buf,
		mux:     mux,
		handler: handler,
		guard:   guard,
		idle:    idle,
	}
}

// Phase returns the lifecycle phase.
func (d *Dispatcher) Phase() Phase { return d.phase }

// Run loops until the context ends, the user quits, the link fails or the
// stack guard trips.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.Step(ctx); err != nil {
			return err
		}
	}
}

// Step runs one iteration of the loop.
func (d *Dispatcher) Step(ctx context.Context) error {
	if d.phase == NotInitialized {
		if err := d.init(ctx); err != nil {
			return err
		}
		if d.phase == NotInitialized {
			return nil
		}
	}

	tx, flags := d.tx, d.flags
	d.tx, d.flags = 0, 0

	rx, err := d.mux.Exchange(ctx, transport.ChannelAPDU, flags, tx)
	if err != nil {
		return errors.Wrap(err, "exchange")
	}
	if err := d.guard.Check(); err != nil {
		return err
	}
	if rx == 0 {
		// send-only cycle
		return nil
	}

	d.tx, d.flags = d.dispatch(rx)

	return d.guard.Check()
}

// init brings the transport up and shows the idle menu. A fault raised here
// is staged with the pre-init mapping and init is retried on the next step.
func (d *Dispatcher) init(ctx context.Context) error {
	err := d.mux.BringUp(ctx)
	if err == nil && d.idle != nil {
		err = d.idle.ShowIdle()
	}
	if err != nil {
		var fault apdu.Fault
		if !errors.As(err, &fault) {
			return errors.Wrap(err, "bring-up")
		}
		log.Warnf("bring-up fault: %v", fault)
		d.tx = d.translate(fault, d.tx)
		return nil
	}

	d.phase = Running
	log.Info("dispatcher running")
	return d.guard.Check()
}

// dispatch calls the handler under a fault boundary.
func (d *Dispatcher) dispatch(rx int) (tx int, flags transport.Flags) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("handler panic: %v", r)
			tx, flags = d.translate(apdu.Fault(apdu.Unknown), tx), 0
		}
	}()

	tx, flags, err := d.handler.Handle(d.buf.Bytes(), rx)
	if err != nil {
		var fault apdu.Fault
		if !errors.As(err, &fault) {
			log.Errorf("handler error: %v", err)
			fault = apdu.Fault(apdu.Unknown)
		}
		return d.translate(fault, tx), 0
	}
	if tx < 0 || tx > d.buf.Cap() {
		log.Errorf("handler returned tx=%d for a %d byte buffer", tx, d.buf.Cap())
		return d.translate(apdu.Fault(apdu.OutputBufferTooSmall), 0), 0
	}
	return tx, flags
}

// translate writes the reply for fault and returns its length.
func (d *Dispatcher) translate(fault apdu.Fault, tx int) int {
	out := d.buf.Bytes()
	code := fault.Code()

	if d.phase == Running {
		out[0] = byte(code >> 8)
		out[1] = byte(code)
		out[2] = apdu.ExecutionError.Hi()
		out[3] = apdu.ExecutionError.Lo()
		return runningFaultLen
	}

	if tx < 0 || tx+2 > len(out) {
		tx = 0
	}
	n, _ := d.buf.PutStatus(tx, PreInitStatus(code))
	return n
}

// PreInitStatus maps a fault raised before start-up completed. Codes already
// shaped like status words pass through.
func PreInitStatus(code uint16) apdu.StatusWord {
	switch code & 0xF000 {
	case 0x6000, 0x9000:
		return apdu.StatusWord(code)
	}
	return apdu.StatusWord(0x6800 | (code & 0x07FF))
}
