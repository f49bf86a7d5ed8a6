package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/regionwatch/core"
)

// Drop reasons for regionwatch_positions_dropped_total.
const (
	DropMalformed = "malformed"
	DropDecode    = "decode"
)

// Collector bundles the Prometheus metrics for region membership and its RPC
// surface. It satisfies core.MetricsRecorder.
type Collector struct {
	gatherer prometheus.Gatherer

	Positions        *prometheus.CounterVec
	RegionHits       *prometheus.CounterVec
	Dropped          *prometheus.CounterVec
	ClassifyDuration prometheus.Histogram
	Broadcasts       prometheus.Counter
	MarkersPublished prometheus.Counter
	RegionsLoaded    prometheus.Gauge

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec
}

var _ core.MetricsRecorder = (*Collector)(nil)

// NewCollector registers metrics against reg, defaulting to the global
// Prometheus registry when nil. Registering twice against the same registry
// reuses the existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error

	if c.Positions, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionwatch_positions_total",
		Help: "Classified position events, labeled by result (matched or unknown).",
	}, []string{"result"}), "regionwatch_positions_total"); err != nil {
		return nil, err
	}
	if c.RegionHits, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionwatch_region_hits_total",
		Help: "Position events classified into each region.",
	}, []string{"region"}), "regionwatch_region_hits_total"); err != nil {
		return nil, err
	}
	if c.Dropped, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionwatch_positions_dropped_total",
		Help: "Position events dropped before classification, labeled by reason.",
	}, []string{"reason"}), "regionwatch_positions_dropped_total"); err != nil {
		return nil, err
	}
	if c.ClassifyDuration, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "regionwatch_classification_duration_seconds",
		Help:    "Time spent classifying one position.",
		Buckets: []float64{1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 5e-4, 1e-3, 5e-3},
	}), "regionwatch_classification_duration_seconds"); err != nil {
		return nil, err
	}
	if c.Broadcasts, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regionwatch_broadcasts_total",
		Help: "Completed region marker broadcasts.",
	}), "regionwatch_broadcasts_total"); err != nil {
		return nil, err
	}
	if c.MarkersPublished, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regionwatch_markers_published_total",
		Help: "Outline and label markers published.",
	}), "regionwatch_markers_published_total"); err != nil {
		return nil, err
	}
	if c.RegionsLoaded, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "regionwatch_regions_loaded",
		Help: "Number of regions in the loaded configuration.",
	}), "regionwatch_regions_loaded"); err != nil {
		return nil, err
	}
	if c.RPCRequests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionwatch_rpc_requests_total",
		Help: "Handled RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "regionwatch_rpc_requests_total"); err != nil {
		return nil, err
	}
	if c.RPCDurations, err = registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "regionwatch_rpc_duration_seconds",
		Help:    "RPC latency in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"service", "method"}), "regionwatch_rpc_duration_seconds"); err != nil {
		return nil, err
	}

	return c, nil
}

// ObserveClassification implements core.MetricsRecorder.
func (c *Collector) ObserveClassification(result core.MembershipResult, elapsed time.Duration) {
	if c == nil {
		return
	}
	if result.Known() {
		c.Positions.WithLabelValues("matched").Inc()
		c.RegionHits.WithLabelValues(result.Name()).Inc()
	} else {
		c.Positions.WithLabelValues("unknown").Inc()
	}
	c.ClassifyDuration.Observe(elapsed.Seconds())
}

// ObserveBroadcast implements core.MetricsRecorder.
func (c *Collector) ObserveBroadcast(markers int) {
	if c == nil {
		return
	}
	c.Broadcasts.Inc()
	c.MarkersPublished.Add(float64(markers))
}

// ObserveDropped counts a position event that never reached classification.
func (c *Collector) ObserveDropped(reason string) {
	if c == nil {
		return
	}
	c.Dropped.WithLabelValues(reason).Inc()
}

// SetRegionCount records the size of the loaded configuration.
func (c *Collector) SetRegionCount(n int) {
	if c == nil {
		return
	}
	c.RegionsLoaded.Set(float64(n))
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *Collector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		c.RPCRequests.WithLabelValues(service, method, status.Code(err).String()).Inc()
		c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// StreamServerInterceptor counts streaming RPCs when they finish.
func (c *Collector) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		if c == nil {
			return err
		}
		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		c.RPCRequests.WithLabelValues(service, method, status.Code(err).String()).Inc()
		c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components, returning "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
