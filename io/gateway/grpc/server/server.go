// Package server exposes the device command channel over gRPC. It implements
// transport.Link: each Exchange RPC carries one command frame in and the
// matching reply out.
package server

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/tokencore/io/gateway/grpc/transportpb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ErrNoCaller is returned by Send when no RPC is waiting for the reply.
var ErrNoCaller = errors.New("no caller waiting for a reply")

type Option func(s *Server)

// WithWhitelist restricts callers to the given hosts.
func WithWhitelist(hosts ...string) Option {
	return func(s *Server) { s.Whitelist = hosts }
}

// WithInterceptors appends unary interceptors after the whitelist check.
func WithInterceptors(i ...grpc.UnaryServerInterceptor) Option {
	return func(s *Server) { s.interceptors = append(s.interceptors, i...) }
}

// Server is the device side of the gRPC link.
type Server struct {
	transportpb.UnimplementedTransportServer
	Addr       string
	Whitelist  []string
	GRPCServer *grpc.Server

	interceptors []grpc.UnaryServerInterceptor
	listener     net.Listener

	// one command in flight at a time
	callMu  sync.Mutex
	frames  chan []byte
	replies chan []byte
	done    chan struct{}
	stop    sync.Once
	resets  atomic.Int32
}

// New returns a link listening on addr once opened.
func New(addr string, opts ...Option) *Server {
	s := &Server{
		Addr:    addr,
		frames:  make(chan []byte),
		replies: make(chan []byte, 1),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open starts the non-blocking gRPC server. Opening an open server is a no-op.
func (s *Server) Open(_ context.Context) error {
	if s.listener != nil {
		return nil
	}
	l, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	s.listener = l
	s.Addr = l.Addr().String()

	interceptors := append([]grpc.UnaryServerInterceptor{WhiteListChecker}, s.interceptors...)
	s.GRPCServer = grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	transportpb.RegisterTransportServer(s.GRPCServer, s)

	log.Infof("listening on tcp://%s", s.Addr)
	go func() {
		if err := s.GRPCServer.Serve(l); err != nil {
			log.Errorf("grpc server stopped: %v", err)
		}
	}()
	return nil
}

// Exchange hands the frame to the command loop and waits for its reply.
func (s *Server) Exchange(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	s.callMu.Lock()
	defer s.callMu.Unlock()

	// a reply nobody collected belongs to an abandoned call
	select {
	case stale := <-s.replies:
		log.Warnf("discarding stale reply of %d bytes", len(stale))
	default:
	}

	select {
	case s.frames <- append([]byte(nil), req.GetValue()...):
	case <-ctx.Done():
		return nil, status.FromContextError(ctx.Err()).Err()
	case <-s.done:
		return nil, status.Error(codes.Unavailable, "link closed")
	}

	select {
	case reply := <-s.replies:
		return wrapperspb.Bytes(reply), nil
	case <-ctx.Done():
		return nil, status.FromContextError(ctx.Err()).Err()
	case <-s.done:
		return nil, status.Error(codes.Unavailable, "link closed")
	}
}

func (s *Server) Send(frame []byte) error {
	select {
	case s.replies <- append([]byte(nil), frame...):
		return nil
	default:
		return ErrNoCaller
	}
}

func (s *Server) Frames() <-chan []byte { return s.frames }

// Reset records a link restart. A sent reply stays deliverable.
func (s *Server) Reset() error {
	s.resets.Add(1)
	log.Info("link reset")
	return nil
}

// Resets returns how many times the link was reset.
func (s *Server) Resets() int { return int(s.resets.Load()) }

// Close fails pending calls and stops the server.
func (s *Server) Close() error {
	s.stop.Do(func() {
		log.Info("stopping server")
		close(s.done)
		if s.GRPCServer == nil {
			return
		}
		stopped := make(chan struct{})
		go func() {
			s.GRPCServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
			s.GRPCServer.Stop()
		}
		log.Info("server stopped")
	})
	return nil
}
