package networking

import (
	"errors"
	"net"
	"os"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"
)

// Link moves whole datagrams between this peer and exactly one remote peer
type Link interface {
	// ReadPacket blocks for at most timeout. It returns ErrTimeout when
	// nothing arrived and ErrClosed once the link is gone.
	ReadPacket(timeout time.Duration) ([]byte, error)
	WritePacket(p []byte) error
	Close() error
}

// UDPLink is a Link over a connected UDP socket
type UDPLink struct {
	conn *net.UDPConn
	buf  []byte
}

// DialUDP opens UDP socket towards address. A non-zero dscp marks outgoing packets.
func DialUDP(address string, dscp int) (*UDPLink, error) {
	raddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	if dscp > 0 {
		// Set DSCP. NOTE: On Windows by default it will not apply the value.
		ipv4.NewConn(conn).SetTOS(dscp << 2)
	}
	return NewUDPLink(conn), nil
}

// NewUDPLink wraps an already connected socket
func NewUDPLink(conn *net.UDPConn) *UDPLink {
	return &UDPLink{conn: conn, buf: make([]byte, MaxFrame+1)}
}

func (u *UDPLink) ReadPacket(timeout time.Duration) ([]byte, error) {
	if err := u.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	var n int
	for {
		var err error
		n, err = u.conn.Read(u.buf)
		if errors.Is(err, syscall.ECONNREFUSED) {
			// ICMP port unreachable from an earlier write, same as loss.
			continue
		}
		if err != nil {
			return nil, mapNetError(err)
		}
		break
	}
	out := make([]byte, n)
	copy(out, u.buf[:n])
	return out, nil
}

func (u *UDPLink) WritePacket(p []byte) error {
	_, err := u.conn.Write(p)
	if errors.Is(err, syscall.ECONNREFUSED) {
		return nil
	}
	return mapNetError(err)
}

func (u *UDPLink) Close() error {
	return u.conn.Close()
}

// LocalAddr returns the local socket address
func (u *UDPLink) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

func mapNetError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	return err
}
