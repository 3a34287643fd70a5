package networking

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go_uftp/constants"
	"go_uftp/fileio"
	"go_uftp/metrics"
	"go_uftp/networking/token"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Counters number the frames of one exchange, one counter per direction
type Counters struct {
	Out uint32 // Next sequence number to send
	In  uint32 // Next sequence number expected
}

// Exchange is one command/response interaction on an Endpoint. Its counters
// start at zero and die with it.
type Exchange struct {
	Counters
	ID  uuid.UUID
	ep  *Endpoint
	log zerolog.Logger
}

// Begin starts a new exchange with fresh counters
func (e *Endpoint) Begin() *Exchange {
	id := uuid.New()
	return &Exchange{
		ID:  id,
		ep:  e,
		log: e.log.With().Str("exchange", id.String()).Logger(),
	}
}

// Logger returns the exchange scoped logger
func (x *Exchange) Logger() *zerolog.Logger {
	return &x.log
}

func (x *Exchange) send(f Frame) error {
	f.Seq = x.Out
	// The peer's next frame in this exchange, or the opening frame of its next one.
	next := func(seq uint32) bool { return seq == x.In || seq == 0 }
	if err := x.ep.send(f, next); err != nil {
		return err
	}
	x.Out++
	return nil
}

// SendControl delivers a control token as the next outgoing frame
func (x *Exchange) SendControl(t token.Token) error {
	return x.send(ControlFrame(t, 0))
}

// SendData delivers up to MAX_PAYLOAD_SIZE bytes as the next outgoing frame
func (x *Exchange) SendData(p []byte) error {
	f := DataFrame(p, 0)
	if x.ep.opts.Compress {
		if compressed, ok := fileio.CompressChunk(p); ok {
			f = Frame{Kind: KindCompressed, Payload: compressed}
		}
	}
	return x.send(f)
}

// Receive waits up to timeout for the next incoming frame. Compressed frames
// are returned as plain data frames.
func (x *Exchange) Receive(timeout time.Duration) (Frame, error) {
	f, err := x.ep.Receive(x.In, timeout)
	if err != nil {
		return Frame{}, err
	}
	x.In++
	if f.Kind == KindCompressed {
		plain, err := fileio.DecompressChunk(f.Payload, constants.MAX_PAYLOAD_SIZE)
		if err != nil {
			return Frame{}, violation("frame %d: %v", f.Seq, err)
		}
		f = DataFrame(plain, f.Seq)
	}
	return f, nil
}

// Next receives the next frame, allowing the first reply of the exchange
// FirstReplyTimeout and every later frame StreamTimeout.
func (x *Exchange) Next() (Frame, error) {
	timeout := x.ep.opts.StreamTimeout
	if x.In == 0 {
		timeout = x.ep.opts.FirstReplyTimeout
	}
	return x.Receive(timeout)
}

// Expect receives the next frame and requires it to be the control token t
func (x *Exchange) Expect(t token.Token) error {
	f, err := x.Next()
	if err != nil {
		return err
	}
	return Require(f, t)
}

// Require maps f to nil when it is the control token want. EXIT yields
// ErrExit, status tokens a *StatusError, anything else a protocol violation.
func Require(f Frame, want token.Token) error {
	tok, ok := f.Token()
	switch {
	case ok && tok == want:
		return nil
	case ok && tok == token.EXIT:
		return ErrExit
	case ok && tok.IsStatus():
		return &StatusError{Token: tok}
	case ok:
		return violation("got %s, want %s", tok, want)
	default:
		return violation("got %d bytes of %s, want %s", len(f.Payload), f.Kind, want)
	}
}

// SendStream sends src in MAX_PAYLOAD_SIZE chunks followed by END. It
// returns the number of content bytes acknowledged by the peer.
func (x *Exchange) SendStream(src io.Reader) (int64, error) {
	buf := make([]byte, constants.MAX_PAYLOAD_SIZE)
	var sent int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if serr := x.SendData(buf[:n]); serr != nil {
				return sent, serr
			}
			sent += int64(n)
			metrics.StreamBytes("out", n)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sent, fmt.Errorf("read source: %w", err)
		}
	}
	return sent, x.SendControl(token.END)
}

// ReceiveStream appends incoming data frames to dst until END, which closes
// dst. Any other outcome aborts dst and returns the reason: *StatusError for
// status tokens, ErrExit, ErrTimeout or a protocol violation.
func (x *Exchange) ReceiveStream(dst fileio.ByteSink) (int64, error) {
	return x.receiveStream(nil, dst)
}

// ContinueStream is ReceiveStream for a caller that already took the first frame
func (x *Exchange) ContinueStream(first Frame, dst fileio.ByteSink) (int64, error) {
	return x.receiveStream(&first, dst)
}

func (x *Exchange) receiveStream(first *Frame, dst fileio.ByteSink) (int64, error) {
	var received int64
	for {
		var f Frame
		if first != nil {
			f, first = *first, nil
		} else {
			var err error
			if f, err = x.Next(); err != nil {
				dst.Abort()
				return received, err
			}
		}
		if f.Kind != KindData {
			err := Require(f, token.END)
			if err != nil {
				dst.Abort()
				return received, err
			}
			return received, dst.Close()
		}
		if _, err := dst.Write(f.Payload); err != nil {
			dst.Abort()
			return received, fmt.Errorf("write sink: %w", err)
		}
		received += int64(len(f.Payload))
		metrics.StreamBytes("in", len(f.Payload))
	}
}
