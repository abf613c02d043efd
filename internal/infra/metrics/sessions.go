package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		sessionOpsTotal,
		turnsAppendedTotal,
		protocolParseFailures,
	)
}

var (
	sessionOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_ops_total",
			Help: "Session store operations by kind (load, load_create, save_turn, save_prefs, reset).",
		},
		[]string{"op"},
	)

	turnsAppendedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "session_turns_appended_total",
			Help: "Turns appended to conversation histories.",
		},
	)

	protocolParseFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "protocol_parse_failures_total",
			Help: "Recoverable failures decoding embedded recipe/step payloads.",
		},
		[]string{"block"},
	)
)

func IncSessionOp(op string) {
	sessionOpsTotal.WithLabelValues(norm(op)).Inc()
}

func AddTurnsAppended(n int) {
	turnsAppendedTotal.Add(float64(n))
}

func IncProtocolParseFailure(block string) {
	protocolParseFailures.WithLabelValues(norm(block)).Inc()
}
