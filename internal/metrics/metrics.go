package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trimer"

// Poll targets.
const (
	TargetMessages = "messages"
	TargetChatList = "chat_list"
)

// Cache outcomes.
const (
	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheStored = "stored"
	CacheBypass = "bypass"
)

var (
	Polls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Number of completed polls of the chat server.",
		},
		[]string{"target"},
	)

	PollErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_errors_total",
			Help:      "Number of polls that failed and were skipped.",
		},
		[]string{"target"},
	)

	Sends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Number of send attempts by outcome.",
		},
		[]string{"result"},
	)

	Rendered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_rendered_total",
			Help:      "Number of message fragments added to a view.",
		},
		[]string{"fresh"},
	)

	Cache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Asset requests served through the cache manager by outcome.",
		},
		[]string{"result"},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open websocket connections from local pages.",
		},
	)
)

func init() {
	prometheus.MustRegister(Polls)
	prometheus.MustRegister(PollErrors)
	prometheus.MustRegister(Sends)
	prometheus.MustRegister(Rendered)
	prometheus.MustRegister(Cache)
	prometheus.MustRegister(WSConnections)
}

func PollDone(target string, err error) {
	if err != nil {
		PollErrors.WithLabelValues(target).Inc()
		return
	}
	Polls.WithLabelValues(target).Inc()
}

func SendDone(err error) {
	if err != nil {
		Sends.WithLabelValues("error").Inc()
		return
	}
	Sends.WithLabelValues("ok").Inc()
}

func RenderedMessage(fresh bool) {
	if fresh {
		Rendered.WithLabelValues("true").Inc()
		return
	}
	Rendered.WithLabelValues("false").Inc()
}

func CacheResult(result string) {
	Cache.WithLabelValues(result).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
