package networking

import (
	"sync"
	"sync/atomic"
	"time"
)

// Filter rewrites one outgoing datagram into zero or more datagrams
type Filter func(datagram []byte) [][]byte

// PipeLink is one end of an in-memory datagram pipe. Like UDP it drops
// datagrams when the receiving queue is full.
type PipeLink struct {
	in     chan []byte
	peer   *PipeLink
	mu     sync.Mutex
	filter Filter
	writes atomic.Int64
	once   sync.Once
	closed chan struct{}
}

// NewPipe returns two connected ends, each queueing up to depth datagrams
func NewPipe(depth int) (*PipeLink, *PipeLink) {
	a := &PipeLink{in: make(chan []byte, depth), closed: make(chan struct{})}
	b := &PipeLink{in: make(chan []byte, depth), closed: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

// SetFilter installs f on datagrams written by this end. nil removes it.
func (p *PipeLink) SetFilter(f Filter) {
	p.mu.Lock()
	p.filter = f
	p.mu.Unlock()
}

// Writes returns the number of WritePacket calls so far
func (p *PipeLink) Writes() int {
	return int(p.writes.Load())
}

func (p *PipeLink) ReadPacket(timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.closed:
		return nil, ErrClosed
	case <-timer.C:
		return nil, ErrTimeout
	}
}

func (p *PipeLink) WritePacket(b []byte) error {
	select {
	case <-p.closed:
		return ErrClosed
	default:
	}
	p.writes.Add(1)

	msg := make([]byte, len(b))
	copy(msg, b)

	p.mu.Lock()
	filter := p.filter
	p.mu.Unlock()

	out := [][]byte{msg}
	if filter != nil {
		out = filter(msg)
	}
	for _, d := range out {
		select {
		case p.peer.in <- d:
		default:
			// Queue full.
		}
	}
	return nil
}

func (p *PipeLink) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}
