package dispatcher

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/tokencore/core/apdu"
	"github.com/vadiminshakov/tokencore/core/guard"
	"github.com/vadiminshakov/tokencore/io/transport"
	"github.com/vadiminshakov/tokencore/mocks"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	buf     *apdu.Buffer
	mux     *mocks.MockExchanger
	handler *mocks.MockHandler
	guard   *guard.Guard
	halts   int
	d       *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &fixture{
		buf:     &apdu.Buffer{},
		mux:     mocks.NewMockExchanger(ctrl),
		handler: mocks.NewMockHandler(ctrl),
	}
	require.NoError(t, f.buf.Init(apdu.MaxFrameSize))
	f.guard = guard.New(guard.HaltFunc(func(error) { f.halts++ }), nil)
	f.d = New(f.buf, f.mux, f.handler, f.guard, nil)
	return f
}

func TestPreInitStatus(t *testing.T) {
	cases := []struct {
		code uint16
		want apdu.StatusWord
	}{
		{0x6985, 0x6985},
		{0x6000, 0x6000},
		{0x9000, 0x9000},
		{0x9001, 0x9001},
		{0x0001, 0x6801},
		{0x1234, 0x6A34},
		{0x7FFF, 0x6FFF},
		{0xA123, 0x6923},
	}
	for _, c := range cases {
		require.Equal(t, c.want, PreInitStatus(c.code), "code 0x%04X", c.code)
	}
}

func TestPreInitFaultAppendsStatus(t *testing.T) {
	f := newFixture(t)
	copy(f.buf.Bytes(), []byte{0xAA, 0xBB})

	f.handler.EXPECT().Handle(gomock.Any(), 5).Return(2, transport.Flags(0), apdu.Fault(0x1234))
	tx, flags := f.d.dispatch(5)

	require.Equal(t, 4, tx)
	require.Zero(t, flags)
	require.Equal(t, []byte{0xAA, 0xBB, 0x6A, 0x34}, f.buf.Bytes()[:tx])
}

func TestPreInitPassThrough(t *testing.T) {
	f := newFixture(t)

	f.handler.EXPECT().Handle(gomock.Any(), 5).Return(0, transport.Flags(0), apdu.Fault(apdu.Busy))
	tx, _ := f.d.dispatch(5)

	require.Equal(t, []byte{0x90, 0x01}, f.buf.Bytes()[:tx])
}

func TestRunningFaultIsFourBytes(t *testing.T) {
	f := newFixture(t)
	f.d.phase = Running

	f.handler.EXPECT().Handle(gomock.Any(), 5).Return(10, transport.FlagAsyncReply, errors.Wrap(apdu.Fault(0x6984), "parse"))
	tx, flags := f.d.dispatch(5)

	require.Equal(t, 4, tx)
	require.Zero(t, flags, "flags must not survive a fault")
	require.Equal(t, []byte{0x69, 0x84, 0x64, 0x00}, f.buf.Bytes()[:tx])
}

func TestPanicMapsToUnknown(t *testing.T) {
	f := newFixture(t)
	f.d.phase = Running

	f.handler.EXPECT().Handle(gomock.Any(), 5).DoAndReturn(func([]byte, int) (int, transport.Flags, error) {
		panic("index out of range")
	})
	tx, _ := f.d.dispatch(5)

	require.Equal(t, []byte{0x6F, 0x00, 0x64, 0x00}, f.buf.Bytes()[:tx])
}

func TestPlainErrorMapsToUnknown(t *testing.T) {
	f := newFixture(t)

	f.handler.EXPECT().Handle(gomock.Any(), 5).Return(0, transport.Flags(0), errors.New("boom"))
	tx, _ := f.d.dispatch(5)

	require.Equal(t, []byte{0x6F, 0x00}, f.buf.Bytes()[:tx])
}

func TestHandlerOverrunIsRejected(t *testing.T) {
	f := newFixture(t)
	f.d.phase = Running

	f.handler.EXPECT().Handle(gomock.Any(), 5).Return(apdu.MaxFrameSize+1, transport.Flags(0), nil)
	tx, _ := f.d.dispatch(5)

	require.Equal(t, []byte{0x69, 0x83, 0x64, 0x00}, f.buf.Bytes()[:tx])
}

func TestStepCarriesReplyAndFlags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	gomock.InOrder(
		f.mux.EXPECT().BringUp(ctx).Return(nil),
		f.mux.EXPECT().Exchange(ctx, transport.ChannelAPDU, transport.Flags(0), 0).Return(5, nil),
		f.handler.EXPECT().Handle(gomock.Any(), 5).Return(2, transport.FlagAsyncReply, nil),
		f.mux.EXPECT().Exchange(ctx, transport.ChannelAPDU, transport.FlagAsyncReply, 2).Return(0, nil),
	)

	require.NoError(t, f.d.Step(ctx))
	require.Equal(t, Running, f.d.Phase())
	require.NoError(t, f.d.Step(ctx))
	require.Zero(t, f.halts)
}

func TestBringUpFaultIsStagedAndRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	gomock.InOrder(
		f.mux.EXPECT().BringUp(ctx).Return(apdu.Fault(0x0002)),
		f.mux.EXPECT().BringUp(ctx).Return(nil),
		f.mux.EXPECT().Exchange(ctx, transport.ChannelAPDU, transport.Flags(0), 2).Return(0, nil),
	)

	require.NoError(t, f.d.Step(ctx))
	require.Equal(t, NotInitialized, f.d.Phase())
	require.Equal(t, []byte{0x68, 0x02}, f.buf.Bytes()[:2])

	require.NoError(t, f.d.Step(ctx))
	require.Equal(t, Running, f.d.Phase())
}

func TestBringUpErrorStops(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mux.EXPECT().BringUp(ctx).Return(errors.New("address in use"))
	require.Error(t, f.d.Step(ctx))
}

func TestCorruptionAfterHandlerHalts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mux.EXPECT().BringUp(ctx).Return(nil)
	f.mux.EXPECT().Exchange(ctx, transport.ChannelAPDU, transport.Flags(0), 0).Return(5, nil)
	f.handler.EXPECT().Handle(gomock.Any(), 5).DoAndReturn(func([]byte, int) (int, transport.Flags, error) {
		*f.guard.Sentinel() = 0
		return 2, 0, nil
	})

	err := f.d.Run(ctx)
	require.ErrorIs(t, err, guard.ErrCanaryCorrupted)
	require.Equal(t, 1, f.halts)
}

func TestCorruptionAfterExchangeSkipsHandler(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mux.EXPECT().BringUp(ctx).Return(nil)
	f.mux.EXPECT().Exchange(ctx, transport.ChannelAPDU, transport.Flags(0), 0).DoAndReturn(
		func(context.Context, transport.Channel, transport.Flags, int) (int, error) {
			*f.guard.Sentinel() = 0xBAD
			return 5, nil
		})
	// no Handle expectation: the mock fails the test if it is called

	err := f.d.Run(ctx)
	require.ErrorIs(t, err, guard.ErrCanaryCorrupted)
	require.Equal(t, 1, f.halts)
}

func TestRunStopsOnContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	f.mux.EXPECT().BringUp(ctx).Return(nil)
	f.mux.EXPECT().Exchange(ctx, transport.ChannelAPDU, transport.Flags(0), 0).DoAndReturn(
		func(ctx context.Context, _ transport.Channel, _ transport.Flags, _ int) (int, error) {
			cancel()
			return 0, ctx.Err()
		})

	require.ErrorIs(t, f.d.Run(ctx), context.Canceled)
}
