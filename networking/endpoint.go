package networking

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"go_uftp/metrics"
	"go_uftp/networking/token"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Endpoint is the stop-and-wait transport of one peer towards one remote peer.
// It is not safe for concurrent use; one exchange at a time owns it.
type Endpoint struct {
	link Link
	opts Options
	log  zerolog.Logger

	// Frame that arrived while waiting for an ack, handed to the next Receive.
	pending []byte
	// Raw bytes of the last frame delivered by Receive.
	delivered []byte
}

// NewEndpoint wraps link
func NewEndpoint(link Link, opts Options) *Endpoint {
	return &Endpoint{link: link, opts: opts, log: log.Logger}
}

// WithLogger sets the logger used for per-frame diagnostics
func (e *Endpoint) WithLogger(l zerolog.Logger) *Endpoint {
	e.log = l
	return e
}

// Options returns the transport settings
func (e *Endpoint) Options() Options {
	return e.opts
}

// Close closes the underlying link
func (e *Endpoint) Close() error {
	return e.link.Close()
}

// Send transmits f and blocks until it is acknowledged. The frame goes out at
// most 1+MaxRetries times before Send gives up with ErrTimeout.
func (e *Endpoint) Send(f Frame) error {
	return e.send(f, nil)
}

// send is Send where accept, if set, picks the peer frames that may stand in
// for the ack. Others are stale and dropped.
func (e *Endpoint) send(f Frame, accept func(seq uint32) bool) error {
	raw, err := Encode(f)
	if err != nil {
		return err
	}

	for attempt := 0; attempt <= e.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.Retransmitted()
			e.log.Debug().Uint32("seq", f.Seq).Int("attempt", attempt).Msg("retransmit")
		}
		if err := e.link.WritePacket(raw); err != nil {
			return err
		}
		metrics.FrameSent(f.Kind.String())

		acked, err := e.awaitAck(time.Now().Add(e.opts.AckTimeout), accept)
		if err != nil {
			return err
		}
		if acked {
			return nil
		}
	}

	metrics.SendTimedOut()
	return fmt.Errorf("send %s seq %d: %w", f.Kind, f.Seq, ErrTimeout)
}

// awaitAck reads until deadline. It returns false when no ack arrived in time.
func (e *Endpoint) awaitAck(deadline time.Time, accept func(seq uint32) bool) (bool, error) {
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		datagram, err := e.link.ReadPacket(remaining)
		if errors.Is(err, ErrTimeout) {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		if IsAck(datagram) {
			return true, nil
		}
		f, err := Decode(datagram)
		if err != nil {
			metrics.Discarded("malformed")
			continue
		}
		if bytes.Equal(datagram, e.delivered) {
			// Peer missed our ack for a frame we already have.
			e.ack()
			metrics.Discarded("duplicate")
			continue
		}
		if accept != nil && !accept(f.Seq) {
			metrics.Discarded("stale")
			e.log.Debug().Uint32("seq", f.Seq).Msg("stale frame while awaiting ack")
			continue
		}
		// Peer only talks after taking our frame, so a new frame implies the ack.
		if e.pending == nil {
			e.pending = datagram
		}
		return true, nil
	}
}

// Receive waits for the frame numbered expected. Every well-formed frame is
// acknowledged, others are dropped silently. Frames with another number are
// discarded. Receive fails with ErrTimeout when no datagram arrives for timeout.
func (e *Endpoint) Receive(expected uint32, timeout time.Duration) (Frame, error) {
	for {
		datagram := e.pending
		e.pending = nil
		if datagram == nil {
			var err error
			datagram, err = e.link.ReadPacket(timeout)
			if err != nil {
				return Frame{}, err
			}
		}

		if IsAck(datagram) {
			metrics.Discarded("stray_ack")
			continue
		}
		f, err := Decode(datagram)
		if err != nil {
			metrics.Discarded("malformed")
			e.log.Debug().Err(err).Int("len", len(datagram)).Msg("dropping datagram")
			continue
		}

		e.ack()

		if f.Seq != expected {
			metrics.Discarded("duplicate")
			e.log.Debug().Uint32("seq", f.Seq).Uint32("expected", expected).Msg("out of sequence")
			continue
		}
		e.delivered = datagram
		return f, nil
	}
}

func (e *Endpoint) ack() {
	if err := e.link.WritePacket(token.GEN_ACK.Bytes()); err != nil {
		e.log.Debug().Err(err).Msg("ack not sent")
		return
	}
	metrics.AckSent()
}
