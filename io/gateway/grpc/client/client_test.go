package client

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/tokencore/app"
	"github.com/vadiminshakov/tokencore/core/apdu"
	"github.com/vadiminshakov/tokencore/core/content"
	"github.com/vadiminshakov/tokencore/core/device"
	"github.com/vadiminshakov/tokencore/core/flow"
	"github.com/vadiminshakov/tokencore/io/gateway/grpc/server"
	"golang.org/x/crypto/blake2b"
)

var testPath = app.EncodePath(44|app.Hardened, 0|app.Hardened, 1)

type rig struct {
	client  *Client
	events  chan flow.Event
	screens chan flow.Screen
}

func startDevice(t *testing.T) *rig {
	t.Helper()
	link := server.New("127.0.0.1:0")
	require.NoError(t, link.Open(context.Background()))

	r := &rig{
		events:  make(chan flow.Event, 64),
		screens: make(chan flow.Screen, 256),
	}
	dev, err := device.New(device.Config{
		Target:  content.TargetNanoS,
		AppName: "Tokencore",
		Version: "1.2.3",
	}, link,
		device.WithEvents(r.events),
		device.WithRenderer(flow.RendererFunc(func(s flow.Screen) {
			select {
			case r.screens <- s:
			default:
			}
		})),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = dev.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	r.client, err = New(link.Addr)
	require.NoError(t, err)
	t.Cleanup(func() { r.client.Close() })
	return r
}

// approveWhenShown walks the review one screen at a time and approves it.
func (r *rig) approveWhenShown(t *testing.T) {
	go func() {
		timeout := time.After(5 * time.Second)
		for {
			select {
			case s := <-r.screens:
				switch s.State {
				case flow.ReviewTitle, flow.ReviewPaging:
					r.events <- flow.Right()
				case flow.ReviewApprove:
					r.events <- flow.Both()
					return
				}
			case <-timeout:
				t.Log("approve screen never drawn")
				return
			}
		}
	}()
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return c
}

func TestGetVersion(t *testing.T) {
	r := startDevice(t)

	v, err := r.client.GetVersion(ctx(t))
	require.NoError(t, err)
	require.Equal(t, byte(1), v.Major)
	require.Equal(t, byte(2), v.Minor)
	require.Equal(t, byte(3), v.Patch)
	require.Equal(t, uint32(0x31100004), v.TargetID)
}

func TestCommandStatus(t *testing.T) {
	r := startDevice(t)

	_, sw, err := r.client.Command(ctx(t), 0x7F, 0, 0, nil)
	require.NoError(t, err)
	require.Equal(t, apdu.CommandNotAllowed, sw)

	_, err = r.client.call(ctx(t), 0x7F, 0, 0, nil)
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, apdu.CommandNotAllowed, serr.Status)
}

func TestCommandTooLarge(t *testing.T) {
	r := startDevice(t)
	_, _, err := r.client.Command(ctx(t), app.InsSign, 0, 0, make([]byte, MaxChunk+1))
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestGetPublicKeyWithoutConfirmation(t *testing.T) {
	r := startDevice(t)

	pk, err := r.client.GetPublicKey(ctx(t), testPath, false)
	require.NoError(t, err)
	require.Len(t, pk, ed25519.PublicKeySize)

	again, err := r.client.GetPublicKey(ctx(t), testPath, false)
	require.NoError(t, err)
	require.Equal(t, pk, again, "keys are deterministic per path")
}

func TestSignChunked(t *testing.T) {
	r := startDevice(t)

	pk, err := r.client.GetPublicKey(ctx(t), testPath, false)
	require.NoError(t, err)

	msg := make([]byte, 2*MaxChunk+17)
	for i := range msg {
		msg[i] = byte(i)
	}
	r.approveWhenShown(t)
	sig, hash, err := r.client.Sign(ctx(t), testPath, msg)
	require.NoError(t, err)

	want := blake2b.Sum256(msg)
	require.Equal(t, want[:], hash)
	require.True(t, ed25519.Verify(pk, hash, sig))
}
