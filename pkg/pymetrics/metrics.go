// Package pymetrics exposes the interpreter's opcode dispatch, call
// latency, and breakpoint-hit counters as Prometheus metrics.
package pymetrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds a Collector's metric namespace, subsystem and call-latency
// histogram buckets.
type Config struct {
	Namespace      string
	Subsystem      string
	LatencyBuckets []float64
}

func DefaultConfig() Config {
	return Config{
		Namespace:      "pyvym",
		Subsystem:      "interpreter",
		LatencyBuckets: prometheus.DefBuckets,
	}
}

// Collector implements pyvm.MetricsHook.
type Collector struct {
	registry         *prometheus.Registry
	opcodesDispatched *prometheus.CounterVec
	callLatency      prometheus.Histogram
	breakpointHits   *prometheus.CounterVec
}

// New builds a Collector with its own registry, so serving it never
// collides with any other Prometheus collector in the process.
func New() *Collector {
	return NewWithConfig(DefaultConfig())
}

func NewWithConfig(cfg Config) *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		opcodesDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "opcodes_dispatched_total", Help: "Opcodes dispatched by the interpreter, by mnemonic.",
		}, []string{"op"}),
		callLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "call_duration_seconds", Help: "Wall time spent inside one CALL_FUNCTION.",
			Buckets: cfg.LatencyBuckets,
		}),
		breakpointHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "breakpoint_hits_total", Help: "Breakpoint hits, by source line.",
		}, []string{"line"}),
	}
	reg.MustRegister(c.opcodesDispatched, c.callLatency, c.breakpointHits)
	return c
}

func (c *Collector) OpcodeDispatched(name string) {
	c.opcodesDispatched.WithLabelValues(name).Inc()
}

func (c *Collector) CallObserved(d time.Duration) {
	c.callLatency.Observe(d.Seconds())
}

func (c *Collector) BreakpointHit(line int) {
	c.breakpointHits.WithLabelValues(itoa(line)).Inc()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Serve starts an HTTP server exposing /metrics on addr and returns a
// function that shuts it down.
func (c *Collector) Serve(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go srv.ListenAndServe()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
