package server

import (
	"errors"
	"net"
	"sync"
	"time"

	"go_uftp/networking"
)

// peerLink is the Link of one remote address on the shared server socket.
// The selector feeds it, the peer's session goroutine drains it.
type peerLink struct {
	conn   *net.UDPConn
	addr   *net.UDPAddr
	inbox  chan []byte
	done   chan struct{}
	closer sync.Once
}

func newPeerLink(conn *net.UDPConn, addr *net.UDPAddr, depth int) *peerLink {
	return &peerLink{
		conn:  conn,
		addr:  addr,
		inbox: make(chan []byte, depth),
		done:  make(chan struct{}),
	}
}

// deliver queues datagram without blocking the selector. Returns false if dropped.
func (p *peerLink) deliver(datagram []byte) bool {
	select {
	case p.inbox <- datagram:
		return true
	default:
		return false
	}
}

func (p *peerLink) ReadPacket(timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-p.inbox:
		return msg, nil
	case <-p.done:
		return nil, networking.ErrClosed
	case <-timer.C:
		return nil, networking.ErrTimeout
	}
}

func (p *peerLink) WritePacket(datagram []byte) error {
	select {
	case <-p.done:
		return networking.ErrClosed
	default:
	}
	_, err := p.conn.WriteToUDP(datagram, p.addr)
	if errors.Is(err, net.ErrClosed) {
		return networking.ErrClosed
	}
	return err
}

func (p *peerLink) Close() error {
	p.closer.Do(func() { close(p.done) })
	return nil
}
