package networking

import (
	"time"

	"go_uftp/constants"
)

// Options defines transport reliability settings
type Options struct {
	AckTimeout        time.Duration // Wait per transmission attempt
	MaxRetries        int           // Retransmissions after the first attempt
	FirstReplyTimeout time.Duration // Wait for the first reply of an exchange
	StreamTimeout     time.Duration // Wait for each following packet
	Compress          bool          // LZ4 data frames when it saves bytes
}

// DefaultOptions returns the protocol defaults
func DefaultOptions() Options {
	return Options{
		AckTimeout:        constants.DEFAULT_ACK_TIMEOUT_MS * time.Millisecond,
		MaxRetries:        constants.DEFAULT_MAX_RETRIES,
		FirstReplyTimeout: constants.DEFAULT_FIRST_REPLY_MS * time.Millisecond,
		StreamTimeout:     constants.DEFAULT_STREAM_TIMEOUT_MS * time.Millisecond,
	}
}
