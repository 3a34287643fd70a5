package networking

import (
	"errors"
	"strings"
	"unicode"
)

// Verb is the first token of a request
type Verb int

const (
	VerbUnknown Verb = iota
	VerbList
	VerbGet
	VerbPut
	VerbDelete
	VerbExit
)

var verbs = map[string]Verb{
	"ls":     VerbList,
	"get":    VerbGet,
	"put":    VerbPut,
	"delete": VerbDelete,
	"exit":   VerbExit,
}

func (v Verb) String() string {
	for s, verb := range verbs {
		if verb == v {
			return s
		}
	}
	return "unknown"
}

// TakesName reports whether the verb requires a file name argument
func (v Verb) TakesName() bool {
	return v == VerbGet || v == VerbPut || v == VerbDelete
}

var (
	ErrUnknownVerb        = errors.New("unknown command")
	ErrMissingName        = errors.New("missing file name")
	ErrUnexpectedArgument = errors.New("command takes no argument")
)

// Command is one parsed request: "<verb> [<name>]"
type Command struct {
	Verb Verb
	Name string
	Raw  string
}

// ParseCommand splits a request line at its first whitespace into verb and name
func ParseCommand(line string) Command {
	line = strings.TrimSpace(line)
	head, rest := line, ""
	if i := strings.IndexFunc(line, unicode.IsSpace); i >= 0 {
		head, rest = line[:i], line[i:]
	}
	verb, ok := verbs[head]
	if !ok {
		verb = VerbUnknown
	}
	return Command{Verb: verb, Name: strings.TrimSpace(rest), Raw: line}
}

// Validate checks the argument rules of the verb
func (c Command) Validate() error {
	switch {
	case c.Verb == VerbUnknown:
		return ErrUnknownVerb
	case c.Verb.TakesName() && c.Name == "":
		return ErrMissingName
	case !c.Verb.TakesName() && c.Name != "":
		return ErrUnexpectedArgument
	}
	return nil
}

// String returns the wire form of the command
func (c Command) String() string {
	if c.Verb == VerbUnknown {
		return c.Raw
	}
	if c.Name == "" {
		return c.Verb.String()
	}
	return c.Verb.String() + " " + c.Name
}
