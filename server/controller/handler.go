package server

import (
	"errors"
	"io"
	"sync/atomic"
	"time"

	"go_uftp/fileio"
	"go_uftp/metrics"
	"go_uftp/networking"
	"go_uftp/networking/token"

	"github.com/rs/zerolog"
)

// State of a peer session on the server
type State int

const (
	StateIdle State = iota
	StateDispatched
	StateStreamingOut
	StateStreamingIn
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateDispatched:
		return "Dispatched"
	case StateStreamingOut:
		return "StreamingOut"
	case StateStreamingIn:
		return "StreamingIn"
	default:
		return "undefined"
	}
}

// Handler services the commands of one peer
type Handler struct {
	store fileio.Store
	state atomic.Int32
	log   zerolog.Logger
}

// NewHandler returns a handler serving files from store
func NewHandler(store fileio.Store, logger zerolog.Logger) *Handler {
	return &Handler{store: store, log: logger}
}

// State returns the current session state
func (h *Handler) State() State {
	return State(h.state.Load())
}

func (h *Handler) setState(s State) {
	if prev := State(h.state.Swap(int32(s))); prev != s {
		h.log.Debug().Stringer("from", prev).Stringer("to", s).Msg("state")
	}
}

// Run serves exchanges on ep until the peer stays quiet for idle or the link closes
func (h *Handler) Run(ep *networking.Endpoint, idle time.Duration) error {
	for {
		x := ep.Begin()
		req, err := x.Receive(idle)
		if errors.Is(err, networking.ErrTimeout) || errors.Is(err, networking.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		h.Dispatch(x, req)
	}
}

// Dispatch handles the request that opened exchange x. Failures abort only
// this exchange; the handler is Idle again when Dispatch returns.
func (h *Handler) Dispatch(x *networking.Exchange, req networking.Frame) {
	h.setState(StateDispatched)
	defer h.setState(StateIdle)

	cmd := networking.Command{Verb: networking.VerbUnknown}
	if req.Kind == networking.KindData {
		cmd = networking.ParseCommand(string(req.Payload))
	}
	logger := x.Logger()
	logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("command", cmd.String())
	})

	var err error
	if cmd.Validate() != nil {
		err = x.SendControl(token.BADINPT)
	} else {
		switch cmd.Verb {
		case networking.VerbList:
			err = h.list(x)
		case networking.VerbGet:
			err = h.get(x, cmd.Name)
		case networking.VerbPut:
			err = h.put(x, cmd.Name)
		case networking.VerbDelete:
			err = h.delete(x, cmd.Name)
		case networking.VerbExit:
			err = h.exit(x)
		}
	}

	if err != nil {
		metrics.Command(cmd.Verb.String(), "aborted")
		logger.Warn().Err(err).Msg("exchange aborted")
		return
	}
	metrics.Command(cmd.Verb.String(), "ok")
	logger.Info().Msg("exchange complete")
}

func (h *Handler) list(x *networking.Exchange) error {
	names, err := h.store.Entries()
	if err != nil {
		x.Logger().Error().Err(err).Msg("cannot list directory")
		return x.SendControl(token.BADINPT)
	}
	h.setState(StateStreamingOut)
	for _, name := range names {
		// Space appended, the client splits on whitespace.
		if err := x.SendData([]byte(name + " ")); err != nil {
			return err
		}
	}
	return x.SendControl(token.END)
}

func (h *Handler) get(x *networking.Exchange, name string) error {
	if !fileio.ValidName(name) {
		return x.SendControl(token.BADINPT)
	}
	var src io.ReadCloser
	var err error
	if h.store.Exists(name) {
		src, err = h.store.Open(name)
	}
	if src == nil {
		if err != nil {
			x.Logger().Error().Err(err).Msg("cannot open file")
		}
		if err := x.SendControl(token.NOFILE); err != nil {
			return err
		}
		return x.SendControl(token.END)
	}
	defer src.Close()

	h.setState(StateStreamingOut)
	n, err := x.SendStream(src)
	if err != nil {
		return err
	}
	x.Logger().Info().Int64("bytes", n).Msg("file sent")
	return nil
}

func (h *Handler) put(x *networking.Exchange, name string) error {
	if !fileio.ValidName(name) {
		return x.SendControl(token.BADINPT)
	}
	sink, err := h.store.Create(name)
	if err != nil {
		x.Logger().Error().Err(err).Msg("cannot create file")
		return x.SendControl(token.BADINPT)
	}
	if err := x.SendControl(token.PUT_ACK); err != nil {
		sink.Abort()
		return err
	}

	h.setState(StateStreamingIn)
	n, err := x.ReceiveStream(sink)
	if err != nil {
		return err
	}
	x.Logger().Info().Int64("bytes", n).Msg("file stored")
	return x.SendControl(token.END)
}

func (h *Handler) delete(x *networking.Exchange, name string) error {
	if !fileio.ValidName(name) {
		return x.SendControl(token.BADINPT)
	}
	if err := h.store.Delete(name); err != nil {
		x.Logger().Info().Err(err).Msg("delete failed")
		return x.SendControl(token.DELETE_ERR)
	}
	return x.SendControl(token.END)
}

func (h *Handler) exit(x *networking.Exchange) error {
	if err := x.SendControl(token.EXIT); err != nil {
		return err
	}
	// The client usually quits on EXIT and never acknowledges END.
	if err := x.SendControl(token.END); err != nil {
		x.Logger().Debug().Err(err).Msg("END after EXIT not acknowledged")
	}
	return nil
}
