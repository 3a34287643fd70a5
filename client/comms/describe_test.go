package comms

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"go_uftp/networking"
	"go_uftp/networking/token"

	qt "github.com/frankban/quicktest"
)

func TestDescribe(t *testing.T) {
	c := qt.New(t)

	get := networking.ParseCommand("get a.txt")
	del := networking.ParseCommand("delete a.txt")
	ls := networking.ParseCommand("ls")

	c.Assert(Describe(ls, &Outcome{Entries: []string{"a", "b"}}, nil), qt.Equals, "a b")
	c.Assert(Describe(ls, &Outcome{}, nil), qt.Equals, "(empty)")
	c.Assert(Describe(get, &Outcome{Bytes: 3, Checksum: []byte{0, 0, 0, 1}}, nil),
		qt.Equals, "File a.txt successfully retrieved (3 bytes, crc32 00000001)")
	c.Assert(Describe(get, nil, &networking.StatusError{Token: token.NOFILE}),
		qt.Equals, "File a.txt does not exist on the server")
	c.Assert(Describe(del, nil, &networking.StatusError{Token: token.DELETE_ERR}),
		qt.Equals, "Unable to delete a.txt from server")
	c.Assert(Describe(get, nil, fmt.Errorf("send: %w", networking.ErrTimeout)), qt.Equals, "Server timed out")
	c.Assert(Describe(get, nil, networking.ErrMissingName), qt.Equals, "Incorrect input: missing file name")
	c.Assert(Describe(get, nil, fmt.Errorf("local file: %w", os.ErrNotExist)), qt.Equals, "File a.txt does not exist")
	c.Assert(Describe(get, nil, errors.New("boom")), qt.Equals, "boom")
}
