package comms

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"go_uftp/networking"
	"go_uftp/networking/token"
)

// Describe renders the result of Execute for the operator
func Describe(cmd networking.Command, out *Outcome, err error) string {
	if err != nil {
		return describeError(cmd, err)
	}
	switch cmd.Verb {
	case networking.VerbList:
		if len(out.Entries) == 0 {
			return "(empty)"
		}
		return strings.Join(out.Entries, " ")
	case networking.VerbGet:
		return fmt.Sprintf("File %s successfully retrieved (%d bytes, crc32 %s)",
			cmd.Name, out.Bytes, hex.EncodeToString(out.Checksum))
	case networking.VerbPut:
		return fmt.Sprintf("File %s sent (%d bytes, crc32 %s)",
			cmd.Name, out.Bytes, hex.EncodeToString(out.Checksum))
	case networking.VerbDelete:
		return fmt.Sprintf("File %s deleted from server", cmd.Name)
	default:
		return "OK"
	}
}

func describeError(cmd networking.Command, err error) string {
	if tok, ok := networking.StatusToken(err); ok {
		switch tok {
		case token.NOFILE:
			return fmt.Sprintf("File %s does not exist on the server", cmd.Name)
		case token.DELETE_ERR:
			return fmt.Sprintf("Unable to delete %s from server", cmd.Name)
		default:
			return "Server rejected the request"
		}
	}
	switch {
	case errors.Is(err, networking.ErrExit):
		return "EXIT"
	case errors.Is(err, networking.ErrUnknownVerb),
		errors.Is(err, networking.ErrMissingName),
		errors.Is(err, networking.ErrUnexpectedArgument):
		return "Incorrect input: " + err.Error()
	case errors.Is(err, os.ErrNotExist):
		return fmt.Sprintf("File %s does not exist", cmd.Name)
	case errors.Is(err, networking.ErrTimeout):
		return "Server timed out"
	case errors.Is(err, networking.ErrProtocolViolation):
		return "Error with server's response: " + err.Error()
	default:
		return err.Error()
	}
}
