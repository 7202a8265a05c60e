// Package apdu holds the command frame primitives shared by the transport,
// the dispatcher and the command handlers: the fixed command buffer, the
// status word table and the typed fault a handler raises.
package apdu

import "fmt"

// StatusWord is the 2-byte trailer of every response frame (ISO7816).
type StatusWord uint16

const (
	ExecutionError         StatusWord = 0x6400
	WrongLength            StatusWord = 0x6700
	EmptyBuffer            StatusWord = 0x6982
	OutputBufferTooSmall   StatusWord = 0x6983
	DataInvalid            StatusWord = 0x6984
	ConditionsNotSatisfied StatusWord = 0x6985
	CommandNotAllowed      StatusWord = 0x6986
	BadKey                 StatusWord = 0x6A80
	InvalidP1P2            StatusWord = 0x6B00
	InsNotSupported        StatusWord = 0x6D00
	ClaNotSupported        StatusWord = 0x6E00
	Unknown                StatusWord = 0x6F00
	SignVerifyError        StatusWord = 0x6F01
	Success                StatusWord = 0x9000
	Busy                   StatusWord = 0x9001
)

var statusNames = map[StatusWord]string{
	ExecutionError:         "execution error",
	WrongLength:            "wrong length",
	EmptyBuffer:            "empty buffer",
	OutputBufferTooSmall:   "output buffer too small",
	DataInvalid:            "data invalid",
	ConditionsNotSatisfied: "conditions not satisfied",
	CommandNotAllowed:      "command not allowed",
	BadKey:                 "bad key",
	InvalidP1P2:            "invalid p1/p2",
	InsNotSupported:        "ins not supported",
	ClaNotSupported:        "cla not supported",
	Unknown:                "unknown",
	SignVerifyError:        "sign verify error",
	Success:                "success",
	Busy:                   "busy",
}

func (sw StatusWord) String() string {
	if name, ok := statusNames[sw]; ok {
		return fmt.Sprintf("0x%04X (%s)", uint16(sw), name)
	}
	return fmt.Sprintf("0x%04X", uint16(sw))
}

// Hi returns the first byte of the status word as sent on the wire.
func (sw StatusWord) Hi() byte { return byte(sw >> 8) }

// Lo returns the second byte of the status word as sent on the wire.
func (sw StatusWord) Lo() byte { return byte(sw) }

// ParseStatusWord reads the big-endian status word trailing a response.
func ParseStatusWord(resp []byte) (StatusWord, bool) {
	if len(resp) < 2 {
		return 0, false
	}
	n := len(resp)
	return StatusWord(uint16(resp[n-2])<<8 | uint16(resp[n-1])), true
}

// Fault is raised by a command handler in place of a regular reply. The
// dispatcher converts it into a response according to its phase.
type Fault uint16

func (f Fault) Error() string {
	return fmt.Sprintf("handler fault 0x%04X", uint16(f))
}

// Code returns the raw fault code.
func (f Fault) Code() uint16 { return uint16(f) }
