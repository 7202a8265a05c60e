package app

import (
	"crypto/ed25519"
	"encoding/hex"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/tokencore/core/apdu"
	"github.com/vadiminshakov/tokencore/core/content"
	"github.com/vadiminshakov/tokencore/core/flow"
	"github.com/vadiminshakov/tokencore/io/transport"
)

// SignReplyLen is the payload length of an approved Sign: signature then digest.
const SignReplyLen = ed25519.SignatureSize + DigestSize

// Review item titles.
const (
	TitleSign      = "Sign"
	TitlePath      = "Path"
	TitleSize      = "Size"
	TitlePublicKey = "Public Key"
)

// sign collects the chunked payload and, on the last chunk, asks the user to
// review its digest.
func (a *App) sign(cmd apdu.Command) (int, transport.Flags, error) {
	upload, err := a.uploader.Push(cmd)
	if err != nil || upload == nil {
		return 0, 0, err
	}

	path, err := ReadPath(upload.First)
	if err == nil {
		err = path.Verify()
	}
	if err != nil {
		a.uploader.Release()
		return 0, 0, a.showError("Invalid derivation path", err)
	}
	if len(upload.Data) == 0 {
		a.uploader.Release()
		return 0, 0, a.showError("Nothing to sign", errors.New("empty payload"))
	}

	if a.ui.State() != flow.Idle {
		a.uploader.Release()
		return 0, 0, fault(apdu.Busy)
	}
	a.signUI = signReview{
		app:    a,
		path:   path,
		hash:   digest(upload.Data),
		size:   len(upload.Data),
		expert: a.ui.Expert(),
	}
	if err := a.startReview(&a.signUI); err != nil {
		a.uploader.Release()
		return 0, 0, err
	}
	return 0, transport.FlagAsyncReply, nil
}

func (a *App) startReview(r flow.Review) error {
	err := a.ui.ShowReview(r)
	if errors.Is(err, flow.ErrFlowMounted) {
		return fault(apdu.Busy)
	}
	return err
}

// showError pages message on the device and fails the command with DataInvalid.
func (a *App) showError(message string, cause error) error {
	log.Warnf("%s: %v", message, cause)
	if err := a.ui.ShowError(message, nil); err != nil {
		if errors.Is(err, flow.ErrFlowMounted) {
			return fault(apdu.Busy)
		}
		return err
	}
	return errors.Wrap(fault(apdu.DataInvalid), cause.Error())
}

type signReview struct {
	app    *App
	path   Path
	hash   [DigestSize]byte
	size   int
	expert bool
}

func (r *signReview) LoopStart() {}

func (r *signReview) LoopInside(idx int, items *content.Store) (bool, error) {
	switch {
	case idx == 0:
		return true, items.SetItem(TitleSign, hex.EncodeToString(r.hash[:]))
	case idx == 1 && r.expert:
		return true, items.SetItem(TitlePath, r.path.String())
	case idx == 2 && r.expert:
		return true, items.SetItem(TitleSize, strconv.Itoa(r.size)+" bytes")
	}
	return false, nil
}

func (r *signReview) LoopEnd() {}

func (r *signReview) Approve(out []byte) (int, apdu.StatusWord) {
	defer r.app.uploader.Release()

	if len(out) < SignReplyLen {
		return 0, apdu.OutputBufferTooSmall
	}
	sig := ed25519.Sign(r.app.keys.derive(r.path), r.hash[:])

	tx := copy(out, sig)
	tx += copy(out[tx:], r.hash[:])
	return tx, apdu.Success
}

func (r *signReview) Reject([]byte) (int, apdu.StatusWord) {
	r.app.uploader.Release()
	return 0, apdu.CommandNotAllowed
}
