package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	linkSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aoalink",
			Subsystem: "link",
			Name:      "sessions_total",
			Help:      "Link sessions that reached the closed state, by outcome.",
		},
		[]string{"outcome"},
	)
	linkFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aoalink",
			Subsystem: "link",
			Name:      "frames_total",
			Help:      "Data frames moved over the link.",
		},
		[]string{"direction"},
	)
	linkBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aoalink",
			Subsystem: "link",
			Name:      "bytes_total",
			Help:      "Payload bytes moved over the link.",
		},
		[]string{"direction"},
	)
	linkIncompleteReads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aoalink",
			Subsystem: "link",
			Name:      "incomplete_reads_total",
			Help:      "Read attempts that ended incomplete and were rescheduled.",
		},
	)
	linkAttachPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aoalink",
			Subsystem: "link",
			Name:      "attach_polls_total",
			Help:      "Attachment polls by result.",
		},
		[]string{"result"},
	)
	linkWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aoalink",
			Subsystem: "link",
			Name:      "write_failures_total",
			Help:      "Failed frame writes by error class.",
		},
		[]string{"kind"},
	)
)

const (
	DirectionIn  = "in"
	DirectionOut = "out"

	AttachNone      = "none"
	AttachOpenError = "open_error"
	AttachListError = "list_error"
	AttachAttached  = "attached"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			linkSessions,
			linkFrames,
			linkBytes,
			linkIncompleteReads,
			linkAttachPolls,
			linkWriteFailures,
		)
	})
}

// Handler serves the default registry after registering link metrics.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func RecordSessionClosed(outcome string) {
	RegisterMetrics()
	linkSessions.WithLabelValues(outcome).Inc()
}

func RecordFrame(direction string, size int) {
	RegisterMetrics()
	linkFrames.WithLabelValues(direction).Inc()
	linkBytes.WithLabelValues(direction).Add(float64(size))
}

func RecordIncompleteRead() {
	RegisterMetrics()
	linkIncompleteReads.Inc()
}

func RecordAttachPoll(result string) {
	RegisterMetrics()
	linkAttachPolls.WithLabelValues(result).Inc()
}

func RecordWriteFailure(kind string) {
	RegisterMetrics()
	linkWriteFailures.WithLabelValues(kind).Inc()
}
