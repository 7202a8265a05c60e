package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/tokencore/io/gateway/grpc/transportpb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func open(t *testing.T, opts ...Option) (*Server, transportpb.TransportClient) {
	t.Helper()
	s := New("127.0.0.1:0", opts...)
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { s.Close() })

	conn, err := grpc.Dial(s.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return s, transportpb.NewTransportClient(conn)
}

// echo answers every frame with its reverse followed by 0x9000.
func echo(s *Server, done <-chan struct{}) {
	for {
		select {
		case f, ok := <-s.Frames():
			if !ok {
				return
			}
			reply := make([]byte, 0, len(f)+2)
			for i := len(f) - 1; i >= 0; i-- {
				reply = append(reply, f[i])
			}
			_ = s.Send(append(reply, 0x90, 0x00))
		case <-done:
			return
		}
	}
}

func TestExchange(t *testing.T) {
	s, client := open(t)
	done := make(chan struct{})
	defer close(done)
	go echo(s, done)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Exchange(ctx, wrapperspb.Bytes([]byte{1, 2, 3}))
	require.NoError(t, err)
	require.Equal(t, []byte{3, 2, 1, 0x90, 0x00}, resp.GetValue())

	resp, err = client.Exchange(ctx, wrapperspb.Bytes([]byte{7}))
	require.NoError(t, err)
	require.Equal(t, []byte{7, 0x90, 0x00}, resp.GetValue())
}

func TestOpenTwice(t *testing.T) {
	s, _ := open(t)
	addr := s.Addr
	require.NoError(t, s.Open(context.Background()))
	require.Equal(t, addr, s.Addr)
}

func TestSendWithoutCaller(t *testing.T) {
	s := New("127.0.0.1:0")
	require.NoError(t, s.Send([]byte{0x90, 0x00}), "one reply is buffered")
	require.ErrorIs(t, s.Send([]byte{0x90, 0x00}), ErrNoCaller)
}

func TestStaleReplyDiscarded(t *testing.T) {
	s, client := open(t)
	require.NoError(t, s.Send([]byte{0x6F, 0x00}))

	done := make(chan struct{})
	defer close(done)
	go echo(s, done)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Exchange(ctx, wrapperspb.Bytes([]byte{5}))
	require.NoError(t, err)
	require.Equal(t, []byte{5, 0x90, 0x00}, resp.GetValue())
}

func TestExchangeDeadline(t *testing.T) {
	_, client := open(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := client.Exchange(ctx, wrapperspb.Bytes([]byte{1}))
	require.Error(t, err)
	require.Equal(t, codes.DeadlineExceeded, status.Code(err))
}

func TestCloseFailsPendingCall(t *testing.T) {
	s, client := open(t)

	errc := make(chan error, 1)
	go func() {
		_, err := client.Exchange(context.Background(), wrapperspb.Bytes([]byte{1}))
		errc <- err
	}()

	select {
	case <-s.Frames():
	case <-time.After(5 * time.Second):
		t.Fatal("frame never arrived")
	}
	require.NoError(t, s.Close())

	select {
	case err := <-errc:
		require.Equal(t, codes.Unavailable, status.Code(err))
	case <-time.After(10 * time.Second):
		t.Fatal("pending call not failed")
	}
}

func TestWhitelistDenied(t *testing.T) {
	_, client := open(t, WithWhitelist("10.1.1.1"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := client.Exchange(ctx, wrapperspb.Bytes([]byte{1}))
	require.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestReset(t *testing.T) {
	s := New("127.0.0.1:0")
	require.NoError(t, s.Reset())
	require.NoError(t, s.Reset())
	require.Equal(t, 2, s.Resets())
}

func TestWhitelistAdmitsLoopback(t *testing.T) {
	s, client := open(t, WithWhitelist("127.0.0.1", "::1"))
	done := make(chan struct{})
	defer close(done)
	go echo(s, done)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Exchange(ctx, wrapperspb.Bytes([]byte{4}))
	require.NoError(t, err)
	require.Equal(t, []byte{4, 0x90, 0x00}, resp.GetValue())
}
