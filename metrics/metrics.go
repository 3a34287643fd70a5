package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uftp",
			Subsystem: "transport",
			Name:      "frames_sent_total",
			Help:      "Frames transmitted, retransmissions included.",
		},
		[]string{"kind"},
	)
	retransmissions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "uftp",
			Subsystem: "transport",
			Name:      "retransmissions_total",
			Help:      "Frames sent again after an ack timeout.",
		},
	)
	sendTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "uftp",
			Subsystem: "transport",
			Name:      "send_timeouts_total",
			Help:      "Frames abandoned after the retry budget ran out.",
		},
	)
	acksSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "uftp",
			Subsystem: "transport",
			Name:      "acks_sent_total",
			Help:      "GEN_ACK datagrams sent.",
		},
	)
	framesDiscarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uftp",
			Subsystem: "transport",
			Name:      "frames_discarded_total",
			Help:      "Incoming datagrams not delivered to the caller.",
		},
		[]string{"reason"},
	)
	streamBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uftp",
			Subsystem: "transfer",
			Name:      "bytes_total",
			Help:      "File bytes moved by completed stream frames.",
		},
		[]string{"direction"},
	)
	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uftp",
			Subsystem: "session",
			Name:      "commands_total",
			Help:      "Commands handled, by verb and outcome.",
		},
		[]string{"verb", "outcome"},
	)
	activePeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "uftp",
			Subsystem: "server",
			Name:      "active_peers",
			Help:      "Peer sessions currently held by the server.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesSent, retransmissions, sendTimeouts, acksSent,
			framesDiscarded, streamBytes, commands, activePeers)
	})
}

// Handler serves the registered metrics
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func FrameSent(kind string) {
	RegisterMetrics()
	framesSent.WithLabelValues(kind).Inc()
}

func Retransmitted() {
	RegisterMetrics()
	retransmissions.Inc()
}

func SendTimedOut() {
	RegisterMetrics()
	sendTimeouts.Inc()
}

func AckSent() {
	RegisterMetrics()
	acksSent.Inc()
}

// Discarded counts an incoming datagram dropped for reason, such as "stale" or "malformed"
func Discarded(reason string) {
	RegisterMetrics()
	framesDiscarded.WithLabelValues(reason).Inc()
}

// StreamBytes counts n file bytes moved in direction (in, out)
func StreamBytes(direction string, n int) {
	RegisterMetrics()
	streamBytes.WithLabelValues(direction).Add(float64(n))
}

func Command(verb, outcome string) {
	RegisterMetrics()
	commands.WithLabelValues(verb, outcome).Inc()
}

func PeerOpened() {
	RegisterMetrics()
	activePeers.Inc()
}

func PeerClosed() {
	RegisterMetrics()
	activePeers.Dec()
}
