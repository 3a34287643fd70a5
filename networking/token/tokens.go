package token

// Token is a reserved control value carried by control frames.
type Token string

const (
	END        Token = "END"        // Terminates the current reply stream
	EXIT       Token = "EXIT"       // Server directs client to end the session
	GEN_ACK    Token = "GEN_ACK"    // Bare acknowledgment, sent without a trailer
	PUT_ACK    Token = "PUT_ACK"    // Server is ready to receive store data
	NOFILE     Token = "NOFILE"     // Requested file does not exist
	DELETE_ERR Token = "DELETE_ERR" // Removal failed
	BADINPT    Token = "BADINPT"    // Request not understood or refused
)

var known = map[Token]struct{}{
	END: {}, EXIT: {}, GEN_ACK: {}, PUT_ACK: {}, NOFILE: {}, DELETE_ERR: {}, BADINPT: {},
}

// Parse returns the token matching b exactly
func Parse(b []byte) (Token, bool) {
	t := Token(b)
	_, ok := known[t]
	return t, ok
}

// IsStatus reports whether t signals a command-level error
func (t Token) IsStatus() bool {
	return t == NOFILE || t == DELETE_ERR || t == BADINPT
}

// FollowedByEnd reports whether the server terminates a t reply with END
func (t Token) FollowedByEnd() bool {
	return t == NOFILE
}

// Bytes returns the wire form of the token
func (t Token) Bytes() []byte {
	return []byte(t)
}
