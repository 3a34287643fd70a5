package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go_uftp/constants"
	"go_uftp/fileio"
	"go_uftp/metrics"
	"go_uftp/networking"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/ipv4"
)

// Settings configures a Server
type Settings struct {
	Transport   networking.Options
	IdleTimeout time.Duration // Session ends after this much silence
	MaxPeers    int           // Concurrent peer sessions
	DSCP        int           // QoS marking of replies, 0 leaves it alone
}

// Server demultiplexes one UDP socket into one session per peer address
type Server struct {
	settings Settings
	store    fileio.Store

	conn  *net.UDPConn
	mu    sync.Mutex
	peers map[string]*peerLink
	wg    sync.WaitGroup
}

// NewServer serves store with settings
func NewServer(store fileio.Store, settings Settings) *Server {
	return &Server{
		settings: settings,
		store:    store,
		peers:    make(map[string]*peerLink),
	}
}

// ListenAndServe binds addr and serves until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	if s.settings.DSCP > 0 {
		if err := ipv4.NewPacketConn(conn).SetTOS(s.settings.DSCP << 2); err != nil {
			log.Warn().Err(err).Msg("could not set DSCP")
		}
	}
	return s.Serve(ctx, conn)
}

// Serve reads datagrams from conn until ctx is done or conn is closed.
// Serve closes conn and waits for all peer sessions before returning.
func (s *Server) Serve(ctx context.Context, conn *net.UDPConn) error {
	s.conn = conn
	log.Info().Str("addr", conn.LocalAddr().String()).Msg("listening")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		conn.Close()
	}()
	defer s.shutdown()

	buf := make([]byte, networking.MaxFrame+1)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Error().Err(err).Msg("read failed")
			continue
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		s.route(addr, datagram)
	}
}

// route hands datagram to the session of its sender, starting one if needed
func (s *Server) route(addr *net.UDPAddr, datagram []byte) {
	key := addr.String()

	s.mu.Lock()
	p, ok := s.peers[key]
	if !ok {
		if len(s.peers) >= s.settings.MaxPeers {
			s.mu.Unlock()
			log.Warn().Str("peer", key).Msg("too many peers, dropping datagram")
			return
		}
		p = newPeerLink(s.conn, addr, constants.PEER_INBOX_LEN)
		s.peers[key] = p
		s.wg.Add(1)
		go s.runPeer(key, p)
	}
	s.mu.Unlock()

	if !p.deliver(datagram) {
		log.Debug().Str("peer", key).Msg("peer inbox full, dropping datagram")
	}
}

func (s *Server) runPeer(key string, p *peerLink) {
	defer s.wg.Done()
	metrics.PeerOpened()
	defer metrics.PeerClosed()

	logger := log.With().Str("peer", key).Logger()
	logger.Info().Msg("new peer")

	ep := networking.NewEndpoint(p, s.settings.Transport).WithLogger(logger)
	handler := NewHandler(s.store, logger)
	if err := handler.Run(ep, s.settings.IdleTimeout); err != nil {
		logger.Error().Err(err).Msg("peer session failed")
	}

	s.mu.Lock()
	if s.peers[key] == p {
		delete(s.peers, key)
	}
	s.mu.Unlock()
	p.Close()
	logger.Info().Msg("peer session ended")
}

// Peers returns the number of live peer sessions
func (s *Server) Peers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

func (s *Server) shutdown() {
	s.mu.Lock()
	for _, p := range s.peers {
		p.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
