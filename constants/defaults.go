package constants

const Title = "Reliable file transfer over UDP"

const (
	MAX_PAYLOAD_SIZE          = 1024      // Payload bytes per datagram
	DEFAULT_PORT              = 6969      // Nice
	DEFAULT_ACK_TIMEOUT_MS    = 500       // Wait for GEN_ACK before retransmitting
	DEFAULT_MAX_RETRIES       = 5         // Retransmissions after the first attempt
	DEFAULT_FIRST_REPLY_MS    = 2000      // Wait for the first reply of an exchange
	DEFAULT_STREAM_TIMEOUT_MS = 3000      // Wait for the next packet of a stream
	DEFAULT_IDLE_TIMEOUT_S    = 30        // Server forgets quiet peers after this
	DEFAULT_MAX_PEERS         = 64        // Concurrent peer sessions on the server
	DEFAULT_DSCP              = 0x0A      // QoS for high throughput
	PEER_INBOX_LEN            = 64        // Queued datagrams per peer before dropping
	READ_AHEAD_CHUNKS         = 8         // Chunks read ahead of the sender
	FILE_WRITE_BUFFER         = 64 * 1024 // Buffered writes to disk
)
