package transport_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/tokencore/core/apdu"
	"github.com/vadiminshakov/tokencore/io/transport"
	"github.com/vadiminshakov/tokencore/mocks"
	"go.uber.org/mock/gomock"
)

func newMux(t *testing.T) (*transport.Mux, *mocks.MockLink, *apdu.Buffer) {
	t.Helper()
	ctrl := gomock.NewController(t)
	link := mocks.NewMockLink(ctrl)
	buf := &apdu.Buffer{}
	require.NoError(t, buf.Init(apdu.MaxFrameSize))
	return transport.New(link, buf), link, buf
}

func TestMuxBringUpOpenFailure(t *testing.T) {
	m, link, _ := newMux(t)
	link.EXPECT().Open(gomock.Any()).Return(errors.New("no device"))

	err := m.BringUp(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "open link")
}

func TestMuxSendFailure(t *testing.T) {
	m, link, buf := newMux(t)
	tx, err := buf.PutStatus(0, apdu.Success)
	require.NoError(t, err)

	link.EXPECT().Send([]byte{0x90, 0x00}).Return(errors.New("endpoint stalled"))

	_, err = m.Exchange(context.Background(), transport.ChannelAPDU, 0, tx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "send frame")
}

func TestMuxResetFailure(t *testing.T) {
	m, link, buf := newMux(t)
	tx, err := buf.PutStatus(0, apdu.Success)
	require.NoError(t, err)

	gomock.InOrder(
		link.EXPECT().Send([]byte{0x90, 0x00}).Return(nil),
		link.EXPECT().Reset().Return(errors.New("reset refused")),
	)

	n, err := m.Exchange(context.Background(), transport.ChannelAPDU, transport.FlagResetAfterReplied, tx)
	require.Error(t, err)
	require.Zero(t, n)
}

func TestMuxAsyncReplySendsNothing(t *testing.T) {
	m, link, buf := newMux(t)
	tx, err := buf.PutStatus(0, apdu.Success)
	require.NoError(t, err)

	frames := make(chan []byte, 1)
	frames <- []byte{0xFF, 0x00, 0x00, 0x00, 0x00}
	var in <-chan []byte = frames
	// Send is never expected
	link.EXPECT().Frames().Return(in)

	n, err := m.Exchange(context.Background(), transport.ChannelAPDU, transport.FlagAsyncReply, tx)
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func TestMuxCloseClosesLink(t *testing.T) {
	m, link, _ := newMux(t)
	link.EXPECT().Close().Return(nil)
	require.NoError(t, m.Close())
}
