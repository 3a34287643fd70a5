package comms

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go_uftp/constants"
	"go_uftp/fileio"
	"go_uftp/metrics"
	"go_uftp/networking"
	"go_uftp/networking/token"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State of the client session loop
type State int

const (
	StateIdle State = iota
	StateAwaitingFirstReply
	StateStreamingReply
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingFirstReply:
		return "AwaitingFirstReply"
	case StateStreamingReply:
		return "StreamingReply"
	default:
		return "undefined"
	}
}

// Outcome describes a completed command
type Outcome struct {
	Command   networking.Command
	Entries   []string // ls
	Bytes     int64    // get, put
	Checksum  []byte   // CRC32 of the transferred bytes
	LocalPath string   // get, put
}

// Client runs commands one at a time against a server
type Client struct {
	ep    *networking.Endpoint
	dir   string
	state State
	log   zerolog.Logger
}

// New creates client over link. Local files are read from and written to dir.
func New(link networking.Link, opts networking.Options, dir string) *Client {
	return &Client{
		ep:  networking.NewEndpoint(link, opts),
		dir: dir,
		log: log.With().Str("component", "client").Logger(),
	}
}

// State returns the current session state
func (c *Client) State() State {
	return c.state
}

// Dir returns the local directory used by get and put
func (c *Client) Dir() string {
	return c.dir
}

// Close closes the link to the server
func (c *Client) Close() error {
	return c.ep.Close()
}

func (c *Client) setState(s State) {
	if c.state != s {
		c.log.Debug().Stringer("from", c.state).Stringer("to", s).Msg("state")
	}
	c.state = s
}

// Execute runs one command exchange and always leaves the client Idle.
// ErrExit means the server ended the session and the caller should stop.
func (c *Client) Execute(cmd networking.Command) (*Outcome, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	defer c.setState(StateIdle)

	var out *Outcome
	var err error
	switch cmd.Verb {
	case networking.VerbList:
		out, err = c.list(cmd)
	case networking.VerbGet:
		out, err = c.get(cmd)
	case networking.VerbPut:
		out, err = c.put(cmd)
	case networking.VerbDelete:
		out, err = c.delete(cmd)
	case networking.VerbExit:
		out, err = c.exit(cmd)
	}
	metrics.Command(cmd.Verb.String(), outcomeLabel(err))
	return out, err
}

// request sends the command and waits for the first reply
func (c *Client) request(cmd networking.Command) (*networking.Exchange, networking.Frame, error) {
	x := c.ep.Begin()
	x.Logger().UpdateContext(func(ctx zerolog.Context) zerolog.Context {
		return ctx.Str("command", cmd.String())
	})
	if err := x.SendData([]byte(cmd.String())); err != nil {
		return nil, networking.Frame{}, err
	}
	c.setState(StateAwaitingFirstReply)
	first, err := x.Next()
	if err != nil {
		return nil, networking.Frame{}, err
	}
	c.setState(StateStreamingReply)
	return x, first, nil
}

func (c *Client) list(cmd networking.Command) (*Outcome, error) {
	x, first, err := c.request(cmd)
	if err != nil {
		return nil, err
	}
	entries := new(entrySink)
	if _, err := x.ContinueStream(first, entries); err != nil {
		return nil, err
	}
	return &Outcome{Command: cmd, Entries: entries.names}, nil
}

func (c *Client) get(cmd networking.Command) (*Outcome, error) {
	local := filepath.Join(c.dir, filepath.Base(cmd.Name))
	x, first, err := c.request(cmd)
	if err != nil {
		return nil, err
	}

	// Created on first data or END only, so NOFILE leaves nothing behind.
	sink := fileio.LazyWriter(local, constants.FILE_WRITE_BUFFER)
	n, err := x.ContinueStream(first, sink)
	if err != nil {
		c.drain(x, err)
		return nil, err
	}
	x.Logger().Info().Int64("bytes", n).Str("path", local).Msg("file retrieved")
	return &Outcome{Command: cmd, Bytes: n, Checksum: sink.Checksum(), LocalPath: local}, nil
}

func (c *Client) put(cmd networking.Command) (*Outcome, error) {
	local := filepath.Join(c.dir, filepath.Base(cmd.Name))
	expected, err := fileio.GetFileChecksumCRC32(local)
	if err != nil {
		return nil, fmt.Errorf("local file: %w", err)
	}
	src, err := fileio.OpenReader(local, constants.MAX_PAYLOAD_SIZE, constants.READ_AHEAD_CHUNKS)
	if err != nil {
		return nil, fmt.Errorf("local file: %w", err)
	}
	defer src.Close()

	x, first, err := c.request(cmd)
	if err != nil {
		return nil, err
	}
	if err := networking.Require(first, token.PUT_ACK); err != nil {
		c.drain(x, err)
		return nil, err
	}

	n, err := x.SendStream(src)
	if err != nil {
		return nil, err
	}
	if err := x.Expect(token.END); err != nil {
		return nil, err
	}
	sum := src.Checksum()
	if !bytes.Equal(sum, expected) {
		x.Logger().Warn().Str("path", local).Msg("local file changed during transfer")
	}
	x.Logger().Info().Int64("bytes", n).Str("path", local).Msg("file stored")
	return &Outcome{Command: cmd, Bytes: n, Checksum: sum, LocalPath: local}, nil
}

func (c *Client) delete(cmd networking.Command) (*Outcome, error) {
	x, first, err := c.request(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := x.ContinueStream(first, fileio.Discard); err != nil {
		c.drain(x, err)
		return nil, err
	}
	return &Outcome{Command: cmd}, nil
}

func (c *Client) exit(cmd networking.Command) (*Outcome, error) {
	_, first, err := c.request(cmd)
	if err != nil {
		return nil, err
	}
	// The END that follows EXIT is deliberately left unread.
	if err := networking.Require(first, token.EXIT); err != nil {
		return nil, err
	}
	return &Outcome{Command: cmd}, networking.ErrExit
}

// drain consumes the END that the server sends after some status tokens
func (c *Client) drain(x *networking.Exchange, cause error) {
	tok, ok := networking.StatusToken(cause)
	if !ok || !tok.FollowedByEnd() {
		return
	}
	if err := x.Expect(token.END); err != nil {
		x.Logger().Debug().Err(err).Msg("no END after status")
	}
}

// entrySink turns each listing frame into one name
type entrySink struct {
	names []string
}

func (e *entrySink) Write(p []byte) (int, error) {
	e.names = append(e.names, strings.TrimSuffix(string(p), " "))
	return len(p), nil
}

func (e *entrySink) Close() error { return nil }
func (e *entrySink) Abort() error { return nil }

func outcomeLabel(err error) string {
	var se *networking.StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, networking.ErrExit):
		return "exit"
	case errors.As(err, &se):
		return "status"
	case errors.Is(err, networking.ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}
