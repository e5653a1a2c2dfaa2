package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for locking, slot listing and
// booking creation.  A nil *BookingMetrics is valid and records nothing.
type BookingMetrics struct {
	lockAcquireTotal *prometheus.CounterVec
	lockWait         prometheus.Histogram
	lockReleaseTotal *prometheus.CounterVec
	bookingTotal     *prometheus.CounterVec
	slotLatency      prometheus.Histogram
	markersSwept     prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		lockAcquireTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "lock",
			Name:      "acquire_total",
			Help:      "Named lock acquisition attempts by path and outcome",
		}, []string{"path", "outcome"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "lock",
			Name:      "wait_seconds",
			Help:      "Time spent waiting for a named lock",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2, 3, 5},
		}),
		lockReleaseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "lock",
			Name:      "release_total",
			Help:      "Named lock releases by result",
		}, []string{"result"}),
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "orchestrator",
			Name:      "attempts_total",
			Help:      "Booking creation attempts by result kind",
		}, []string{"result"}),
		slotLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "availability",
			Name:      "compute_seconds",
			Help:      "Latency of slot computation for one item and day",
			Buckets:   prometheus.DefBuckets,
		}),
		markersSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "lock",
			Name:      "markers_swept_total",
			Help:      "Expired fallback lock markers removed by the sweeper",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.lockAcquireTotal, m.lockWait, m.lockReleaseTotal, m.bookingTotal, m.slotLatency, m.markersSwept)
	return m
}

// ObserveLockAcquire records one acquisition attempt.  path is "native" or
// "fallback"; outcome is "acquired" or "timeout".
func (m *BookingMetrics) ObserveLockAcquire(path, outcome string, waitSeconds float64) {
	if m == nil {
		return
	}
	m.lockAcquireTotal.WithLabelValues(path, outcome).Inc()
	m.lockWait.Observe(waitSeconds)
}

func (m *BookingMetrics) ObserveLockRelease(released bool) {
	if m == nil {
		return
	}
	label := "noop"
	if released {
		label = "released"
	}
	m.lockReleaseTotal.WithLabelValues(label).Inc()
}

// ObserveBooking records the outcome of one CreateBooking call.
func (m *BookingMetrics) ObserveBooking(result string) {
	if m == nil {
		return
	}
	m.bookingTotal.WithLabelValues(result).Inc()
}

func (m *BookingMetrics) ObserveSlotComputation(seconds float64) {
	if m == nil {
		return
	}
	m.slotLatency.Observe(seconds)
}

func (m *BookingMetrics) ObserveMarkersSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.markersSwept.Add(float64(n))
}
