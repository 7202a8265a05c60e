// Package client is the host side of the gRPC transport. It frames commands,
// splits large payloads into chunks and decodes status words.
package client

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/tokencore/app"
	"github.com/vadiminshakov/tokencore/core/apdu"
	"github.com/vadiminshakov/tokencore/io/gateway/grpc/transportpb"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// MaxChunk is the largest payload carried by one command frame.
const MaxChunk = apdu.MaxFrameSize - apdu.MinLength

var (
	ErrShortReply = errors.New("reply shorter than a status word")
	ErrTooLarge   = errors.New("payload exceeds one frame")
)

// StatusError reports a non-success status word.
type StatusError struct {
	Ins    byte
	Status apdu.StatusWord
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("command 0x%02X failed with status %s", e.Ins, e.Status)
}

// Version is the decoded GetVersion reply.
type Version struct {
	TestMode            bool
	Major, Minor, Patch byte
	Locked              bool
	TargetID            uint32
}

type Client struct {
	conn      *grpc.ClientConn
	transport transportpb.TransportClient
}

// New connects to a device listening on addr.
func New(addr string, opts ...grpc.DialOption) (*Client, error) {
	conn, err := createConnection(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, transport: transportpb.NewTransportClient(conn)}, nil
}

// Exchange sends a raw frame and returns the raw reply.
func (c *Client) Exchange(ctx context.Context, frame []byte) ([]byte, error) {
	resp, err := c.transport.Exchange(ctx, wrapperspb.Bytes(frame))
	if err != nil {
		return nil, errors.Wrap(err, "exchange")
	}
	return resp.GetValue(), nil
}

// Command sends one framed command and splits the reply into payload and
// status word.
func (c *Client) Command(ctx context.Context, ins, p1, p2 byte, data []byte) ([]byte, apdu.StatusWord, error) {
	if len(data) > MaxChunk {
		return nil, 0, errors.Wrapf(ErrTooLarge, "%d bytes", len(data))
	}
	frame := make([]byte, apdu.MinLength+len(data))
	frame[apdu.IndexCLA] = app.CLA
	frame[apdu.IndexINS] = ins
	frame[apdu.IndexP1] = p1
	frame[apdu.IndexP2] = p2
	frame[apdu.IndexLen] = byte(len(data))
	copy(frame[apdu.MinLength:], data)

	reply, err := c.Exchange(ctx, frame)
	if err != nil {
		return nil, 0, err
	}
	sw, ok := apdu.ParseStatusWord(reply)
	if !ok {
		return nil, 0, errors.Wrapf(ErrShortReply, "%d bytes", len(reply))
	}
	n := len(reply) - 2
	log.Debugf("ins 0x%02X -> %s (%d bytes)", ins, sw, n)
	return reply[:n], sw, nil
}

func (c *Client) call(ctx context.Context, ins, p1, p2 byte, data []byte) ([]byte, error) {
	out, sw, err := c.Command(ctx, ins, p1, p2, data)
	if err != nil {
		return nil, err
	}
	if sw != apdu.Success {
		return nil, &StatusError{Ins: ins, Status: sw}
	}
	return out, nil
}

func (c *Client) GetVersion(ctx context.Context) (Version, error) {
	out, err := c.call(ctx, app.InsGetVersion, 0, 0, nil)
	if err != nil {
		return Version{}, err
	}
	if len(out) < 9 {
		return Version{}, errors.Wrapf(ErrShortReply, "version of %d bytes", len(out))
	}
	return Version{
		TestMode: out[0] != 0,
		Major:    out[1],
		Minor:    out[2],
		Patch:    out[3],
		Locked:   out[4] != 0,
		TargetID: uint32(out[5])<<24 | uint32(out[6])<<16 | uint32(out[7])<<8 | uint32(out[8]),
	}, nil
}

// GetPublicKey returns the key for path. With confirm the device asks the user
// first and the call blocks until they decide.
func (c *Client) GetPublicKey(ctx context.Context, path []byte, confirm bool) (ed25519.PublicKey, error) {
	var p1 byte
	if confirm {
		p1 = 1
	}
	out, err := c.call(ctx, app.InsGetPublicKey, p1, app.CurveEd25519, path)
	if err != nil {
		return nil, err
	}
	if len(out) < 1+ed25519.PublicKeySize || int(out[0]) != ed25519.PublicKeySize {
		return nil, errors.Wrapf(ErrShortReply, "public key reply of %d bytes", len(out))
	}
	return ed25519.PublicKey(append([]byte(nil), out[1:1+ed25519.PublicKeySize]...)), nil
}

// Sign uploads msg in chunks and returns the signature and the digest the
// device displayed. The last chunk blocks until the user decides.
func (c *Client) Sign(ctx context.Context, path, msg []byte) (sig, hash []byte, err error) {
	if _, err := c.call(ctx, app.InsSign, app.ChunkInit, app.CurveEd25519, path); err != nil {
		return nil, nil, errors.Wrap(err, "init")
	}
	for {
		n := len(msg)
		if n > MaxChunk {
			n = MaxChunk
		}
		kind := app.ChunkAdd
		if n == len(msg) {
			kind = app.ChunkLast
		}
		out, err := c.call(ctx, app.InsSign, kind, 0, msg[:n])
		if err != nil {
			return nil, nil, err
		}
		msg = msg[n:]
		if kind != app.ChunkLast {
			continue
		}
		if len(out) < app.SignReplyLen {
			return nil, nil, errors.Wrapf(ErrShortReply, "signature reply of %d bytes", len(out))
		}
		return out[:ed25519.SignatureSize], out[ed25519.SignatureSize:app.SignReplyLen], nil
	}
}

func (c *Client) Close() error {
	return c.conn.Close()
}
