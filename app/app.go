// Package app is the command handler behind the dispatcher: a CLA/INS router
// and the GetVersion, GetPublicKey and Sign commands.
//
// Commands that need the user's consent start a review on the device and
// reply asynchronously; the reply is produced by the review's approve or
// reject callback.
package app

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/tokencore/core/apdu"
	"github.com/vadiminshakov/tokencore/core/content"
	"github.com/vadiminshakov/tokencore/core/flow"
	"github.com/vadiminshakov/tokencore/io/transport"
)

// Instruction class and codes.
const (
	CLA byte = 0xFF

	InsGetVersion   byte = 0x00
	InsGetPublicKey byte = 0x01
	InsSign         byte = 0x02
)

// UI is the part of the flow machine a handler drives.
type UI interface {
	State() flow.State
	ShowReview(r flow.Review) error
	ShowError(message string, onAck func()) error
	Expert() bool
}

type Option func(a *App)

// WithVersion sets the version reported by GetVersion, as "major.minor.patch".
func WithVersion(v string) Option {
	return func(a *App) { a.version = parseVersion(v) }
}

// WithTarget sets the device model reported by GetVersion.
func WithTarget(t content.Target) Option {
	return func(a *App) { a.target = t }
}

// WithSeed sets the secret all signing keys are derived from.
func WithSeed(seed [SeedSize]byte) Option {
	return func(a *App) { a.keys = newKeyring(seed) }
}

// App routes commands to their handlers. It implements dispatcher.Handler.
type App struct {
	ui       UI
	version  [3]byte
	target   content.Target
	keys     *keyring
	uploader Uploader

	// live reviews, reused between commands
	signUI signReview
	addrUI addrReview
}

// New returns a router. Without WithSeed the zero seed is used.
func New(ui UI, opts ...Option) *App {
	a := &App{
		ui:     ui,
		target: content.TargetNanoS,
		keys:   newKeyring([SeedSize]byte{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handle dispatches one command and appends the status word to the reply.
func (a *App) Handle(buf []byte, rx int) (int, transport.Flags, error) {
	tx, flags, err := a.route(buf, rx)

	sw := apdu.Success
	if err != nil {
		var fault apdu.Fault
		if !errors.As(err, &fault) {
			return 0, 0, err
		}
		log.Debugf("command failed: %v", err)
		sw = apdu.StatusWord(fault.Code())
		tx, flags = 0, 0
	}

	if tx < 0 || tx+2 > len(buf) {
		return 0, 0, apdu.Fault(apdu.OutputBufferTooSmall)
	}
	buf[tx] = sw.Hi()
	buf[tx+1] = sw.Lo()

	return tx + 2, flags, nil
}

func (a *App) route(buf []byte, rx int) (int, transport.Flags, error) {
	cmd, err := apdu.ReadCommand(buf, rx)
	if err != nil {
		return 0, 0, errors.Wrap(apdu.Fault(apdu.WrongLength), err.Error())
	}
	if cmd.CLA() != CLA {
		return 0, 0, apdu.Fault(apdu.ClaNotSupported)
	}

	switch cmd.INS() {
	case InsGetVersion:
		return a.getVersion(cmd)
	case InsGetPublicKey:
		return a.getPublicKey(cmd)
	case InsSign:
		return a.sign(cmd)
	}
	return 0, 0, apdu.Fault(apdu.CommandNotAllowed)
}

func fault(sw apdu.StatusWord) error { return apdu.Fault(sw) }
