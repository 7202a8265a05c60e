package app

import (
	"crypto/ed25519"
	"encoding/hex"

	"github.com/vadiminshakov/tokencore/core/apdu"
	"github.com/vadiminshakov/tokencore/core/content"
	"github.com/vadiminshakov/tokencore/core/flow"
	"github.com/vadiminshakov/tokencore/io/transport"
)

// CurveEd25519 is the only curve accepted in P2.
const CurveEd25519 byte = 0

// PublicKeyReplyLen is the payload length of a GetPublicKey reply:
// [len][key][digest of key].
const PublicKeyReplyLen = 1 + ed25519.PublicKeySize + DigestSize

// getPublicKey returns the key for the path in the payload. With P1 >= 1 the
// user must confirm the key on the device first.
func (a *App) getPublicKey(cmd apdu.Command) (int, transport.Flags, error) {
	if cmd.P2() != CurveEd25519 {
		return 0, 0, fault(apdu.InvalidP1P2)
	}
	payload, err := cmd.Payload()
	if err != nil {
		return 0, 0, fault(apdu.DataInvalid)
	}
	path, err := ReadPath(payload)
	if err == nil {
		err = path.Verify()
	}
	if err != nil {
		return 0, 0, fault(apdu.DataInvalid)
	}

	// the live review is only replaced once the device is free
	r := addrReview{path: path, expert: a.ui.Expert()}
	pub := a.keys.derive(path).Public().(ed25519.PublicKey)
	copy(r.key[:], pub)
	r.hash = digest(r.key[:])

	if cmd.P1() >= 1 {
		if a.ui.State() != flow.Idle {
			return 0, 0, fault(apdu.Busy)
		}
		a.addrUI = r
		if err := a.startReview(&a.addrUI); err != nil {
			return 0, 0, err
		}
		return 0, transport.FlagAsyncReply, nil
	}

	out := cmd.Out()
	n, sw := r.Approve(out[:len(out)-2])
	if sw != apdu.Success {
		return 0, 0, fault(sw)
	}
	return n, 0, nil
}

type addrReview struct {
	path   Path
	key    [ed25519.PublicKeySize]byte
	hash   [DigestSize]byte
	expert bool
}

func (r *addrReview) LoopStart() {}

func (r *addrReview) LoopInside(idx int, items *content.Store) (bool, error) {
	switch {
	case idx == 0:
		return true, items.SetItem(TitlePublicKey, hex.EncodeToString(r.key[:]))
	case idx == 1 && r.expert:
		return true, items.SetItem(TitlePath, r.path.String())
	}
	return false, nil
}

func (r *addrReview) LoopEnd() {}

func (r *addrReview) Approve(out []byte) (int, apdu.StatusWord) {
	if len(out) < PublicKeyReplyLen {
		return 0, apdu.OutputBufferTooSmall
	}
	out[0] = ed25519.PublicKeySize
	tx := 1
	tx += copy(out[tx:], r.key[:])
	tx += copy(out[tx:], r.hash[:])
	return tx, apdu.Success
}

func (r *addrReview) Reject([]byte) (int, apdu.StatusWord) {
	return 0, apdu.CommandNotAllowed
}
