// Package guard implements the stack canary checked by the command loop at
// its safe points: after start-up, after every blocking exchange and after
// every call into the command handler.
//
// A corrupted canary is fatal. The guard latches once tripped, so every later
// check halts again even if the sentinel word is restored.
package guard

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Magic is the value the sentinel must hold at every checked point.
const Magic uint32 = 0xDEAD0031

// ErrCanaryCorrupted is reported once the sentinel no longer equals Magic.
var ErrCanaryCorrupted = errors.New("stack canary corrupted")

// Halter stops the device. Production halters do not return.
type Halter interface {
	Halt(reason error)
}

// HaltFunc adapts a function to Halter.
type HaltFunc func(reason error)

func (f HaltFunc) Halt(reason error) { f(reason) }

// LogHalter logs the violation at fatal level, which exits the process
// without running deferred functions.
type LogHalter struct{}

func (LogHalter) Halt(reason error) {
	log.WithField("canary", "corrupted").Fatal(reason)
}

// Resetter is signalled before halting so the host side sees the link drop.
type Resetter interface {
	Reset() error
}

type Guard struct {
	canary   uint32
	tripped  bool
	halter   Halter
	resetter Resetter
}

// New returns a guard with its sentinel set. resetter may be nil.
func New(halter Halter, resetter Resetter) *Guard {
	if halter == nil {
		halter = LogHalter{}
	}
	return &Guard{canary: Magic, halter: halter, resetter: resetter}
}

// Check halts iff the sentinel is corrupted or the guard already tripped.
func (g *Guard) Check() error {
	if !g.tripped && g.canary == Magic {
		return nil
	}

	first := !g.tripped
	g.tripped = true
	if first && g.resetter != nil {
		if err := g.resetter.Reset(); err != nil {
			log.Warnf("failed to reset transport before halt: %v", err)
		}
	}
	g.halter.Halt(ErrCanaryCorrupted)

	return ErrCanaryCorrupted
}

// Tripped reports whether a violation has been detected.
func (g *Guard) Tripped() bool { return g.tripped }

// Sentinel exposes the guarded word. It lives next to the command buffer in
// the device context; fault-injection tests write through it.
func (g *Guard) Sentinel() *uint32 { return &g.canary }
