package web3

import (
	"github.com/prometheus/client_golang/prometheus"
)

/*
Prometheus collectors for RPC transports. Create one with "NewMetrics" and pass
it to "Dial" via "WithMetrics". A nil *Metrics is valid and records nothing.
*/
type Metrics struct {
	calls      *prometheus.CounterVec
	orphans    *prometheus.CounterVec
	unroutable *prometheus.CounterVec
	malformed  *prometheus.CounterVec
	pending    *prometheus.GaugeVec
	subs       *prometheus.GaugeVec
}

/*
Creates the collectors and registers them with the given registerer. A nil
registerer leaves them unregistered, which is convenient in tests.
*/
func NewMetrics(reg prometheus.Registerer) *Metrics {
	self := &Metrics{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "web3",
				Subsystem: "rpc",
				Name:      "calls_total",
				Help:      "Total number of RPC requests by transport and result",
			},
			[]string{"transport", "result"},
		),
		orphans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "web3",
				Subsystem: "rpc",
				Name:      "orphan_responses_total",
				Help:      "Responses whose id matched no pending request",
			},
			[]string{"transport"},
		),
		unroutable: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "web3",
				Subsystem: "rpc",
				Name:      "unroutable_notifications_total",
				Help:      "Notifications for unknown subscription ids",
			},
			[]string{"transport"},
		),
		malformed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "web3",
				Subsystem: "rpc",
				Name:      "malformed_frames_total",
				Help:      "Incoming frames that could not be interpreted",
			},
			[]string{"transport"},
		),
		pending: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "web3",
				Subsystem: "rpc",
				Name:      "pending_calls",
				Help:      "Requests awaiting a response",
			},
			[]string{"transport"},
		),
		subs: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "web3",
				Subsystem: "rpc",
				Name:      "subscriptions",
				Help:      "Active subscriptions",
			},
			[]string{"transport"},
		),
	}

	if reg != nil {
		reg.MustRegister(self.calls, self.orphans, self.unroutable, self.malformed, self.pending, self.subs)
	}
	return self
}

func (self *Metrics) call(kind TransKind, err error) {
	if self == nil {
		return
	}
	self.calls.WithLabelValues(string(kind), callResult(err)).Inc()
}

func (self *Metrics) orphan(kind TransKind) {
	if self != nil {
		self.orphans.WithLabelValues(string(kind)).Inc()
	}
}

func (self *Metrics) unroutableNotification(kind TransKind) {
	if self != nil {
		self.unroutable.WithLabelValues(string(kind)).Inc()
	}
}

func (self *Metrics) malformedFrame(kind TransKind) {
	if self != nil {
		self.malformed.WithLabelValues(string(kind)).Inc()
	}
}

func (self *Metrics) pendingGauge(kind TransKind) func(int) {
	if self == nil {
		return nil
	}
	gauge := self.pending.WithLabelValues(string(kind))
	var last int
	return func(size int) {
		gauge.Add(float64(size - last))
		last = size
	}
}

func (self *Metrics) subscriptions(kind TransKind, delta int) {
	if self != nil {
		self.subs.WithLabelValues(string(kind)).Add(float64(delta))
	}
}

func callResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case isRpcError(err):
		return "rpc_error"
	default:
		return "error"
	}
}
