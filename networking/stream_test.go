package networking

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	"go_uftp/fileio"
	"go_uftp/networking/token"

	qt "github.com/frankban/quicktest"
)

// recordingSink remembers how the stream ended
type recordingSink struct {
	fileio.BufferSink
	closed  bool
	aborted bool
}

func (r *recordingSink) Close() error {
	r.closed = true
	return nil
}

func (r *recordingSink) Abort() error {
	r.aborted = true
	return nil
}

type streamResult struct {
	n   int64
	err error
}

func sendStream(x *Exchange, src io.Reader) <-chan streamResult {
	done := make(chan streamResult, 1)
	go func() {
		n, err := x.SendStream(src)
		done <- streamResult{n, err}
	}()
	return done
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(b)
	return b
}

func TestStreamRoundTrip(t *testing.T) {
	c := qt.New(t)

	a, b := NewPipe(64)
	opts := testOptions()
	opts.AckTimeout = time.Second
	sender := NewEndpoint(a, opts)
	receiver := NewEndpoint(b, opts)

	data := randomBytes(5*1024 + 100)
	done := sendStream(sender.Begin(), bytes.NewReader(data))

	sink := new(recordingSink)
	n, err := receiver.Begin().ReceiveStream(sink)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, int64(len(data)))
	c.Assert(sink.Bytes(), qt.DeepEquals, data)
	c.Assert(sink.closed, qt.IsTrue)

	res := <-done
	c.Assert(res.err, qt.IsNil)
	c.Assert(res.n, qt.Equals, int64(len(data)))
	// Six data frames and END.
	c.Assert(a.Writes(), qt.Equals, 7)
}

func TestStreamEmpty(t *testing.T) {
	c := qt.New(t)

	a, b := NewPipe(64)
	opts := testOptions()
	opts.AckTimeout = time.Second
	sender := NewEndpoint(a, opts)
	receiver := NewEndpoint(b, opts)

	done := sendStream(sender.Begin(), bytes.NewReader(nil))

	sink := new(recordingSink)
	n, err := receiver.Begin().ReceiveStream(sink)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, int64(0))
	c.Assert(sink.Len(), qt.Equals, 0)
	c.Assert(sink.closed, qt.IsTrue)

	c.Assert((<-done).err, qt.IsNil)
	c.Assert(a.Writes(), qt.Equals, 1)
}

func TestStreamContentLooksLikeToken(t *testing.T) {
	c := qt.New(t)

	a, b := NewPipe(64)
	sender := NewEndpoint(a, testOptions())
	receiver := NewEndpoint(b, testOptions())

	done := sendStream(sender.Begin(), bytes.NewReader([]byte("END")))

	sink := new(recordingSink)
	n, err := receiver.Begin().ReceiveStream(sink)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, int64(3))
	c.Assert(sink.String(), qt.Equals, "END")
	c.Assert((<-done).err, qt.IsNil)
}

func TestStreamSurvivesDuplicates(t *testing.T) {
	c := qt.New(t)

	a, b := NewPipe(256)
	a.SetFilter(duplicateWrites)
	b.SetFilter(duplicateWrites)
	sender := NewEndpoint(a, testOptions())
	receiver := NewEndpoint(b, testOptions())

	data := randomBytes(4096 + 17)
	done := sendStream(sender.Begin(), bytes.NewReader(data))

	sink := new(recordingSink)
	_, err := receiver.Begin().ReceiveStream(sink)
	c.Assert(err, qt.IsNil)
	c.Assert(sink.Bytes(), qt.DeepEquals, data)
	c.Assert((<-done).err, qt.IsNil)
}

func TestStreamSurvivesStaleFrames(t *testing.T) {
	c := qt.New(t)

	a, b := NewPipe(256)
	a.SetFilter(replayStale())
	sender := NewEndpoint(a, testOptions())
	receiver := NewEndpoint(b, testOptions())

	data := randomBytes(10 * 1024)
	done := sendStream(sender.Begin(), bytes.NewReader(data))

	sink := new(recordingSink)
	n, err := receiver.Begin().ReceiveStream(sink)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, int64(len(data)))
	c.Assert(sink.Bytes(), qt.DeepEquals, data)
	c.Assert(sink.closed, qt.IsTrue)
	c.Assert((<-done).err, qt.IsNil)
}

func TestStreamSurvivesLoss(t *testing.T) {
	c := qt.New(t)

	a, b := NewPipe(64)
	// Lose the ack of frame 1, then the first retransmission of frame 1.
	a.SetFilter(dropWrites(3))
	b.SetFilter(dropWrites(2))
	sender := NewEndpoint(a, testOptions())
	receiver := NewEndpoint(b, testOptions())

	data := randomBytes(4 * 1024)
	done := sendStream(sender.Begin(), bytes.NewReader(data))

	sink := new(recordingSink)
	_, err := receiver.Begin().ReceiveStream(sink)
	c.Assert(err, qt.IsNil)
	c.Assert(sink.Bytes(), qt.DeepEquals, data)
	c.Assert((<-done).err, qt.IsNil)
	c.Assert(a.Writes() > 5, qt.IsTrue)
}

func TestStreamCompressed(t *testing.T) {
	c := qt.New(t)

	a, b := NewPipe(64)
	var mu sync.Mutex
	kinds := make(map[Kind]int)
	a.SetFilter(func(d []byte) [][]byte {
		mu.Lock()
		kinds[Kind(d[0])]++
		mu.Unlock()
		return [][]byte{d}
	})
	opts := testOptions()
	opts.AckTimeout = time.Second
	opts.Compress = true
	sender := NewEndpoint(a, opts)
	receiver := NewEndpoint(b, testOptions())

	data := bytes.Repeat([]byte("abcdefgh"), 600)
	done := sendStream(sender.Begin(), bytes.NewReader(data))

	sink := new(recordingSink)
	n, err := receiver.Begin().ReceiveStream(sink)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, int64(len(data)))
	c.Assert(sink.Bytes(), qt.DeepEquals, data)
	c.Assert((<-done).err, qt.IsNil)

	mu.Lock()
	defer mu.Unlock()
	c.Assert(kinds[KindCompressed] > 0, qt.IsTrue)
	c.Assert(kinds[KindControl], qt.Equals, 1)
}

func TestStreamToSilentPeer(t *testing.T) {
	c := qt.New(t)

	a, _ := NewPipe(64)
	opts := testOptions()
	opts.AckTimeout = 10 * time.Millisecond
	sender := NewEndpoint(a, opts)

	n, err := sender.Begin().SendStream(bytes.NewReader([]byte("lost")))
	c.Assert(err, qt.ErrorIs, ErrTimeout)
	c.Assert(n, qt.Equals, int64(0))
	c.Assert(a.Writes(), qt.Equals, 6)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk gone")
}

func TestStreamSourceError(t *testing.T) {
	c := qt.New(t)

	a, _ := NewPipe(64)
	sender := NewEndpoint(a, testOptions())

	_, err := sender.Begin().SendStream(failingReader{})
	c.Assert(err, qt.ErrorMatches, "read source: disk gone")
	c.Assert(a.Writes(), qt.Equals, 0)
}

func TestReceiveStreamStatus(t *testing.T) {
	tests := []struct {
		name string
		tok  token.Token
		want error
	}{
		{"nofile", token.NOFILE, ErrNotFound},
		{"delete error", token.DELETE_ERR, ErrNotFound},
		{"exit", token.EXIT, ErrExit},
		{"unexpected ack", token.PUT_ACK, ErrProtocolViolation},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := qt.New(t)

			a, b := NewPipe(64)
			sender := NewEndpoint(a, testOptions())
			receiver := NewEndpoint(b, testOptions())

			go sender.Begin().SendControl(test.tok)

			sink := new(recordingSink)
			sink.WriteString("partial")
			_, err := receiver.Begin().ReceiveStream(sink)
			c.Assert(err, qt.ErrorIs, test.want)
			c.Assert(sink.aborted, qt.IsTrue)
			c.Assert(sink.closed, qt.IsFalse)
		})
	}
}

func TestReceiveStreamTimeoutAborts(t *testing.T) {
	c := qt.New(t)

	_, b := NewPipe(64)
	opts := testOptions()
	opts.FirstReplyTimeout = 30 * time.Millisecond
	receiver := NewEndpoint(b, opts)

	sink := new(recordingSink)
	_, err := receiver.Begin().ReceiveStream(sink)
	c.Assert(err, qt.ErrorIs, ErrTimeout)
	c.Assert(sink.aborted, qt.IsTrue)
}

func TestNextUsesFirstReplyTimeout(t *testing.T) {
	c := qt.New(t)

	_, b := NewPipe(64)
	opts := testOptions()
	opts.FirstReplyTimeout = 20 * time.Millisecond
	opts.StreamTimeout = 5 * time.Second
	x := NewEndpoint(b, opts).Begin()

	start := time.Now()
	_, err := x.Next()
	c.Assert(err, qt.ErrorIs, ErrTimeout)
	c.Assert(time.Since(start) < time.Second, qt.IsTrue)
	c.Assert(x.In, qt.Equals, uint32(0))
}

func TestRequire(t *testing.T) {
	c := qt.New(t)

	c.Assert(Require(ControlFrame(token.END, 0), token.END), qt.IsNil)

	err := Require(ControlFrame(token.NOFILE, 0), token.END)
	tok, ok := StatusToken(err)
	c.Assert(ok, qt.IsTrue)
	c.Assert(tok, qt.Equals, token.NOFILE)
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	err = Require(ControlFrame(token.BADINPT, 0), token.PUT_ACK)
	c.Assert(err, qt.Not(qt.ErrorIs), ErrNotFound)
	tok, _ = StatusToken(err)
	c.Assert(tok, qt.Equals, token.BADINPT)

	c.Assert(Require(ControlFrame(token.EXIT, 0), token.END), qt.ErrorIs, ErrExit)
	c.Assert(Require(DataFrame([]byte("x"), 0), token.PUT_ACK), qt.ErrorIs, ErrProtocolViolation)
}

func TestExchangeCountersAreFresh(t *testing.T) {
	c := qt.New(t)

	a, b := NewPipe(64)
	sender := NewEndpoint(a, testOptions())
	receiver := NewEndpoint(b, testOptions())

	for i := 0; i < 2; i++ {
		x := sender.Begin()
		done := sendStream(x, bytes.NewReader([]byte("hi")))

		y := receiver.Begin()
		_, err := y.ReceiveStream(new(recordingSink))
		c.Assert(err, qt.IsNil)
		c.Assert(y.In, qt.Equals, uint32(2))
		c.Assert((<-done).err, qt.IsNil)
		c.Assert(x.Out, qt.Equals, uint32(2))
	}
}
