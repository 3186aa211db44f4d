package prom

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/eldaeon/gqpoll/pkg/output"
	"github.com/eldaeon/gqpoll/pkg/sensor"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

type PromOutput struct {
	Registry *prometheus.Registry

	reading    *prometheus.GaugeVec
	failures   *prometheus.CounterVec
	missing    *prometheus.CounterVec
	iterations prometheus.Counter

	srv  *http.Server
	addr string
}

func newMetrics() *PromOutput {
	p := &PromOutput{
		Registry: prometheus.NewRegistry(),
		reading: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gqpoll_reading",
			Help: "Last extracted instrument value (CPM in counts/min, EMF in mG)",
		}, []string{"metric", "device", "unit"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gqpoll_query_failures_total",
			Help: "Instrument queries that returned an error",
		}, []string{"metric"}),
		missing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gqpoll_value_missing_total",
			Help: "Readings whose output held no numeric value",
		}, []string{"metric"}),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gqpoll_iterations_total",
			Help: "Completed poll iterations",
		}),
	}
	p.Registry.MustRegister(p.reading, p.failures, p.missing, p.iterations)
	// Add Go module build info.
	p.Registry.MustRegister(collectors.NewBuildInfoCollector())
	return p
}

// NewPrometheus records readings as metrics. When listen is set the registry
// is served on /metrics at that address.
func NewPrometheus(listen string) (output.Output, error) {
	p := newMetrics()
	if listen == "" {
		return p, nil
	}
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", listen)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{
		// Opt into OpenMetrics to support exemplars.
		EnableOpenMetrics: true,
	}))
	p.addr = ln.Addr().String()
	p.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := p.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	log.WithField("addr", p.addr).Info("serving metrics on /metrics")
	return p, nil
}

// Addr is the address the metrics server listens on, or "" when not serving.
func (p *PromOutput) Addr() string { return p.addr }

func (p *PromOutput) Publish(it sensor.Iteration) error {
	for _, r := range it.Readings {
		metric := strings.ToLower(string(r.Metric))
		switch {
		case r.Err != "":
			p.failures.WithLabelValues(metric).Inc()
		case !r.Found():
			p.missing.WithLabelValues(metric).Inc()
		default:
			p.reading.WithLabelValues(metric, r.DevicePath, r.UnitModel).Set(*r.Value)
		}
	}
	p.iterations.Inc()
	return nil
}

func (p *PromOutput) Close() error {
	if p.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return p.srv.Shutdown(ctx)
}
