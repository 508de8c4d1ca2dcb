package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatroom"

// Metrics holds the counters for both the bot server and the widget client.
type Metrics struct {
	registry *prometheus.Registry

	messagesLogged *prometheus.CounterVec
	sayRequests    *prometheus.CounterVec
	logRequests    prometheus.Counter
	clientFetches  *prometheus.CounterVec
	clientSends    *prometheus.CounterVec
}

// New creates the counters on a private registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		messagesLogged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_logged_total",
			Help:      "Transcript entries written, by author.",
		}, []string{"author"}),
		sayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "say_requests_total",
			Help:      "Handled say requests, by outcome.",
		}, []string{"outcome"}),
		logRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_requests_total",
			Help:      "Transcript reads served.",
		}),
		clientFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "fetch_total",
			Help:      "Transcript fetches made by the widget, by outcome.",
		}, []string{"outcome"}),
		clientSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "send_total",
			Help:      "Messages sent by the widget, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messagesLogged,
		m.sayRequests,
		m.logRequests,
		m.clientFetches,
		m.clientSends,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) MessageLogged(author string) {
	m.messagesLogged.WithLabelValues(author).Inc()
}

func (m *Metrics) SayRequest(outcome string) {
	m.sayRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LogRequest() {
	m.logRequests.Inc()
}

// FetchCompleted and SendCompleted let a widget Controller report into m.
func (m *Metrics) FetchCompleted(outcome string) {
	m.clientFetches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SendCompleted(outcome string) {
	m.clientSends.WithLabelValues(outcome).Inc()
}
