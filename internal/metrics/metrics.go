package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "salas",
			Name:      "api_requests_total",
			Help:      "Count of backend requests by method and HTTP status (0 = transport failure).",
		},
		[]string{"method", "status"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "salas",
			Name:      "api_cache_lookups_total",
			Help:      "Count of reference-data cache lookups by result.",
		},
		[]string{"result"},
	)

	guardDenied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "salas",
			Name:      "guard_denied_total",
			Help:      "Count of operations stopped by a session guard.",
		},
		[]string{"guard"},
	)

	botUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "salas",
			Name:      "bot_updates_total",
			Help:      "Count of Telegram updates handled by kind.",
		},
		[]string{"kind"},
	)

	sessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "salas",
			Name:      "active_sessions",
			Help:      "Number of chats with a logged-in user.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(apiRequests, cacheLookups, guardDenied, botUpdates, sessions)
	})
}

func IncAPIRequest(method string, status int) {
	apiRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func IncCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(result).Inc()
}

func IncGuardDenied(guard string) {
	guardDenied.WithLabelValues(guard).Inc()
}

func IncBotUpdate(kind string) {
	botUpdates.WithLabelValues(kind).Inc()
}

func SessionOpened() {
	sessions.Inc()
}

func SessionClosed() {
	sessions.Dec()
}
