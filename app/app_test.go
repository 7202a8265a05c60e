package app

import (
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/tokencore/core/apdu"
	"github.com/vadiminshakov/tokencore/core/content"
	"github.com/vadiminshakov/tokencore/core/flow"
	"github.com/vadiminshakov/tokencore/io/transport"
	"golang.org/x/crypto/blake2b"
)

var testPath = EncodePath(44|Hardened, 0|Hardened, 1)

type harness struct {
	t       *testing.T
	buf     *apdu.Buffer
	machine *flow.Machine
	app     *App
	replies [][]byte
	titles  []string
}

func (h *harness) Reply(n int) error {
	h.replies = append(h.replies, append([]byte(nil), h.buf.Bytes()[:n]...))
	return nil
}

func newHarness(t *testing.T, expert bool, opts ...Option) *harness {
	t.Helper()
	h := &harness{t: t, buf: &apdu.Buffer{}}
	require.NoError(t, h.buf.Init(apdu.MaxFrameSize))

	items := &content.Store{}
	require.NoError(t, items.Init(34))

	h.machine = flow.New(items, h.buf, h,
		flow.WithExpert(expert),
		flow.WithRenderer(flow.RendererFunc(func(s flow.Screen) { h.titles = append(h.titles, s.Title) })),
	)
	require.NoError(t, h.machine.ShowIdle())

	var seed [SeedSize]byte
	copy(seed[:], "device secret used only in tests")
	h.app = New(h.machine, append([]Option{WithSeed(seed)}, opts...)...)
	return h
}

func frame(ins, p1, p2 byte, data []byte) []byte {
	return append([]byte{CLA, ins, p1, p2, byte(len(data))}, data...)
}

// send runs one command and returns the synchronous reply.
func (h *harness) send(raw []byte) ([]byte, transport.Flags) {
	h.t.Helper()
	rx, err := h.buf.Load(raw)
	require.NoError(h.t, err)
	tx, flags, err := h.app.Handle(h.buf.Bytes(), rx)
	require.NoError(h.t, err)
	return append([]byte(nil), h.buf.Bytes()[:tx]...), flags
}

func (h *harness) approve() {
	h.t.Helper()
	for i := 0; h.machine.State() != flow.ReviewApprove; i++ {
		require.Less(h.t, i, 100, "review never reached approve")
		require.NoError(h.t, h.machine.HandleEvent(flow.Right()))
	}
	require.NoError(h.t, h.machine.HandleEvent(flow.Both()))
}

func (h *harness) reject() {
	h.t.Helper()
	require.Equal(h.t, flow.ReviewTitle, h.machine.State())
	require.NoError(h.t, h.machine.HandleEvent(flow.Left()))
	require.Equal(h.t, flow.ReviewReject, h.machine.State())
	require.NoError(h.t, h.machine.HandleEvent(flow.Both()))
}

func status(reply []byte) apdu.StatusWord {
	sw, _ := apdu.ParseStatusWord(reply)
	return sw
}

func TestRouterShortFrame(t *testing.T) {
	h := newHarness(t, false)

	reply, _ := h.send([]byte{CLA, InsGetVersion, 0, 0})
	require.Equal(t, []byte{0x67, 0x00}, reply)
}

func TestRouterRejectsClass(t *testing.T) {
	h := newHarness(t, false)

	reply, _ := h.send([]byte{0x00, InsGetVersion, 0, 0, 0})
	require.Equal(t, []byte{0x6E, 0x00}, reply)
}

func TestRouterUnknownInstruction(t *testing.T) {
	h := newHarness(t, false)

	reply, _ := h.send(frame(0x7F, 0, 0, nil))
	require.Equal(t, []byte{0x69, 0x86}, reply)
}

func TestGetVersion(t *testing.T) {
	h := newHarness(t, false, WithVersion("1.2.3"), WithTarget(content.TargetNanoX))

	reply, flags := h.send(frame(InsGetVersion, 0, 0, nil))
	require.Zero(t, flags)
	require.Equal(t, []byte{0, 1, 2, 3, 0, 0x33, 0x00, 0x00, 0x04, 0x90, 0x00}, reply)
}

func TestParseVersion(t *testing.T) {
	require.Equal(t, [3]byte{1, 12, 0}, parseVersion("v1.12"))
	require.Equal(t, [3]byte{0, 3, 4}, parseVersion("x.3.4"))
}

func TestGetPublicKey(t *testing.T) {
	h := newHarness(t, false)

	reply, flags := h.send(frame(InsGetPublicKey, 0, CurveEd25519, testPath))
	require.Zero(t, flags)
	require.Len(t, reply, PublicKeyReplyLen+2)
	require.Equal(t, apdu.Success, status(reply))
	require.Equal(t, byte(ed25519.PublicKeySize), reply[0])

	key := reply[1 : 1+ed25519.PublicKeySize]
	sum := blake2b.Sum256(key)
	require.Equal(t, sum[:], reply[1+ed25519.PublicKeySize:PublicKeyReplyLen])

	// derivation is deterministic per path
	again, _ := h.send(frame(InsGetPublicKey, 0, CurveEd25519, testPath))
	require.Equal(t, reply, again)
	other, _ := h.send(frame(InsGetPublicKey, 0, CurveEd25519, EncodePath(44|Hardened, 1|Hardened)))
	require.NotEqual(t, reply, other)
}

func TestGetPublicKeyErrors(t *testing.T) {
	h := newHarness(t, false)

	reply, _ := h.send(frame(InsGetPublicKey, 0, 7, testPath))
	require.Equal(t, apdu.InvalidP1P2, status(reply))

	reply, _ = h.send(frame(InsGetPublicKey, 0, CurveEd25519, []byte{1, 0, 0}))
	require.Equal(t, apdu.DataInvalid, status(reply))

	reply, _ = h.send(frame(InsGetPublicKey, 0, CurveEd25519, EncodePath(44)))
	require.Equal(t, apdu.DataInvalid, status(reply), "unhardened purpose")
}

func TestGetPublicKeyWithConfirmation(t *testing.T) {
	h := newHarness(t, false)

	direct, _ := h.send(frame(InsGetPublicKey, 0, CurveEd25519, testPath))

	reply, flags := h.send(frame(InsGetPublicKey, 1, CurveEd25519, testPath))
	require.Equal(t, transport.FlagAsyncReply, flags)
	require.Equal(t, []byte{0x90, 0x00}, reply)
	require.Equal(t, flow.ReviewTitle, h.machine.State())

	h.approve()
	require.Len(t, h.replies, 1)
	require.Equal(t, direct, h.replies[0])
	require.Equal(t, flow.Idle, h.machine.State())
}

func TestGetPublicKeyDuringAddressReviewKeepsReviewedKey(t *testing.T) {
	h := newHarness(t, false)
	other := EncodePath(44|Hardened, 0|Hardened, 2)

	reviewed, _ := h.send(frame(InsGetPublicKey, 0, CurveEd25519, testPath))
	unseen, _ := h.send(frame(InsGetPublicKey, 0, CurveEd25519, other))
	require.NotEqual(t, reviewed, unseen)

	_, flags := h.send(frame(InsGetPublicKey, 1, CurveEd25519, testPath))
	require.Equal(t, transport.FlagAsyncReply, flags)
	require.NoError(t, h.machine.HandleEvent(flow.Right()))
	require.Equal(t, flow.ReviewPaging, h.machine.State())

	// a silent request is still served while the review waits
	reply, flags := h.send(frame(InsGetPublicKey, 0, CurveEd25519, other))
	require.Zero(t, flags)
	require.Equal(t, unseen, reply)

	reply, flags = h.send(frame(InsGetPublicKey, 1, CurveEd25519, other))
	require.Zero(t, flags)
	require.Equal(t, []byte{0x90, 0x01}, reply)

	h.approve()
	require.Len(t, h.replies, 1)
	require.Equal(t, reviewed, h.replies[0], "approved key must be the one shown")
}

func TestCommandsDuringSignReviewKeepDigest(t *testing.T) {
	h := newHarness(t, false)
	msg := []byte("transfer 10 tokens to carol")

	pk, _ := h.send(frame(InsGetPublicKey, 0, CurveEd25519, testPath))
	pub := ed25519.PublicKey(pk[1 : 1+ed25519.PublicKeySize])

	_, flags := h.upload(msg, 200)
	require.Equal(t, transport.FlagAsyncReply, flags)

	reply, _ := h.send(frame(InsGetPublicKey, 1, CurveEd25519, EncodePath(44|Hardened, 7|Hardened)))
	require.Equal(t, apdu.Busy, status(reply))
	reply, _ = h.send(frame(InsGetPublicKey, 0, CurveEd25519, EncodePath(44|Hardened, 7|Hardened)))
	require.Equal(t, apdu.Success, status(reply))
	require.Equal(t, flow.ReviewTitle, h.machine.State())

	h.approve()
	require.Len(t, h.replies, 1)
	hash := h.replies[0][ed25519.SignatureSize:SignReplyLen]
	want := blake2b.Sum256(msg)
	require.Equal(t, want[:], hash)
	require.True(t, ed25519.Verify(pub, hash, h.replies[0][:ed25519.SignatureSize]))
}

func TestSignLastDuringAddressReviewIsBusy(t *testing.T) {
	h := newHarness(t, false)

	reviewed, _ := h.send(frame(InsGetPublicKey, 0, CurveEd25519, testPath))
	_, flags := h.send(frame(InsGetPublicKey, 1, CurveEd25519, testPath))
	require.Equal(t, transport.FlagAsyncReply, flags)

	reply, flags := h.upload([]byte("payload"), 200)
	require.Zero(t, flags)
	require.Equal(t, apdu.Busy, status(reply))
	require.False(t, h.app.uploader.Held(), "refused upload is released")

	h.approve()
	require.Equal(t, [][]byte{reviewed}, h.replies)
}

func (h *harness) upload(data []byte, chunk int) ([]byte, transport.Flags) {
	h.t.Helper()
	reply, _ := h.send(frame(InsSign, ChunkInit, 0, testPath))
	require.Equal(h.t, apdu.Success, status(reply))

	for len(data) > chunk {
		reply, _ = h.send(frame(InsSign, ChunkAdd, 0, data[:chunk]))
		require.Equal(h.t, apdu.Success, status(reply))
		data = data[chunk:]
	}
	return h.send(frame(InsSign, ChunkLast, 0, data))
}

func TestSignApprove(t *testing.T) {
	h := newHarness(t, false)
	msg := []byte(strings.Repeat("transfer 10 tokens to bob; ", 20))

	pk, _ := h.send(frame(InsGetPublicKey, 0, CurveEd25519, testPath))
	pub := ed25519.PublicKey(pk[1 : 1+ed25519.PublicKeySize])

	reply, flags := h.upload(msg, 200)
	require.Equal(t, transport.FlagAsyncReply, flags)
	require.Equal(t, apdu.Success, status(reply))
	require.Equal(t, flow.ReviewTitle, h.machine.State())
	require.Empty(t, h.replies, "nothing is sent before the user decides")

	h.approve()
	require.Len(t, h.replies, 1)
	got := h.replies[0]
	require.Len(t, got, SignReplyLen+2)
	require.Equal(t, apdu.Success, status(got))

	sig := got[:ed25519.SignatureSize]
	hash := got[ed25519.SignatureSize:SignReplyLen]
	want := blake2b.Sum256(msg)
	require.Equal(t, want[:], hash)
	require.True(t, ed25519.Verify(pub, hash, sig))
	require.False(t, h.app.uploader.Held())
}

func TestSignReject(t *testing.T) {
	h := newHarness(t, false)

	_, flags := h.upload([]byte("payload"), 200)
	require.Equal(t, transport.FlagAsyncReply, flags)

	h.reject()
	require.Equal(t, [][]byte{{0x69, 0x86}}, h.replies)

	// buffer released
	reply, _ := h.send(frame(InsSign, ChunkInit, 0, testPath))
	require.Equal(t, apdu.Success, status(reply))
}

func TestSignBusyWhileReviewing(t *testing.T) {
	h := newHarness(t, false)

	_, flags := h.upload([]byte("payload"), 200)
	require.Equal(t, transport.FlagAsyncReply, flags)

	reply, _ := h.send(frame(InsSign, ChunkInit, 0, testPath))
	require.Equal(t, apdu.Busy, status(reply))
	require.Equal(t, flow.ReviewTitle, h.machine.State())
}

func TestSignChunkErrors(t *testing.T) {
	h := newHarness(t, false)

	reply, _ := h.send(frame(InsSign, 3, 0, nil))
	require.Equal(t, apdu.InvalidP1P2, status(reply))

	reply, _ = h.send(frame(InsSign, ChunkAdd, 0, []byte("orphan")))
	require.Equal(t, apdu.ExecutionError, status(reply))

	reply, _ = h.send(frame(InsSign, ChunkLast, 0, []byte("orphan")))
	require.Equal(t, apdu.ExecutionError, status(reply))
}

func TestSignOverflow(t *testing.T) {
	h := newHarness(t, false)

	reply, _ := h.send(frame(InsSign, ChunkInit, 0, testPath))
	require.Equal(t, apdu.Success, status(reply))

	chunk := make([]byte, 255)
	sw := apdu.Success
	for i := 0; i < UploadCapacity/len(chunk)+2 && sw == apdu.Success; i++ {
		reply, _ = h.send(frame(InsSign, ChunkAdd, 0, chunk))
		sw = status(reply)
	}
	require.Equal(t, apdu.DataInvalid, sw)

	// the overflow discarded the upload
	reply, _ = h.send(frame(InsSign, ChunkLast, 0, nil))
	require.Equal(t, apdu.ExecutionError, status(reply))
}

func TestSignInvalidPathShowsError(t *testing.T) {
	h := newHarness(t, false)

	h.send(frame(InsSign, ChunkInit, 0, EncodePath(44, 0)))
	reply, flags := h.send(frame(InsSign, ChunkLast, 0, []byte("payload")))
	require.Zero(t, flags)
	require.Equal(t, []byte{0x69, 0x84}, reply)
	require.Equal(t, flow.ErrorPaging, h.machine.State())
	require.False(t, h.app.uploader.Held())
}

func TestSignEmptyPayloadShowsError(t *testing.T) {
	h := newHarness(t, false)

	h.send(frame(InsSign, ChunkInit, 0, testPath))
	reply, _ := h.send(frame(InsSign, ChunkLast, 0, nil))
	require.Equal(t, apdu.DataInvalid, status(reply))
	require.Equal(t, flow.ErrorPaging, h.machine.State())
}

func TestSignExpertAddsItems(t *testing.T) {
	for _, expert := range []bool{false, true} {
		h := newHarness(t, expert)
		h.upload([]byte("payload"), 200)
		h.approve()

		var sawPath, sawSize bool
		for _, title := range h.titles {
			sawPath = sawPath || strings.HasPrefix(title, TitlePath)
			sawSize = sawSize || strings.HasPrefix(title, TitleSize)
		}
		require.Equal(t, expert, sawPath, "expert=%v", expert)
		require.Equal(t, expert, sawSize, "expert=%v", expert)
		require.Len(t, h.replies, 1)
	}
}

func TestPathString(t *testing.T) {
	p, err := ReadPath(testPath)
	require.NoError(t, err)
	require.Equal(t, "m/44'/0'/1", p.String())
	require.Equal(t, testPath, p.Bytes())

	_, err = ReadPath(EncodePath(make([]uint32, MaxPathLen+1)...))
	require.ErrorIs(t, err, ErrInvalidPath)
	_, err = ReadPath(nil)
	require.ErrorIs(t, err, ErrInvalidPath)
}
