package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
)

// Namespace prefixes every exported metric name.
const Namespace = "quantum_vault"

// Collector aggregates metrics from vault operations. It owns a private
// Prometheus registry so several collectors can coexist (one per test, one
// per engine).
type Collector struct {
	registry *prometheus.Registry

	// Operation counters
	encrypts prometheus.Counter
	decrypts prometheus.Counter

	// Failure counters, labelled by pipeline stage
	encryptErrors *prometheus.CounterVec
	decryptErrors *prometheus.CounterVec

	// Security counters
	authFailures   prometheus.Counter
	decapsFailures prometheus.Counter
	keypairs       prometheus.Counter

	// Latency histograms (seconds)
	encryptLatency     prometheus.Histogram
	decryptLatency     prometheus.Histogram
	encapsulateLatency prometheus.Histogram
	decapsulateLatency prometheus.Histogram

	createdAt time.Time
	labels    Labels
}

// Labels represents key-value pairs attached to every metric of a collector.
type Labels map[string]string

// Default bucket configurations for histograms, in seconds.
var (
	// LatencyBuckets for full encrypt/decrypt operations.
	LatencyBuckets = []float64{50e-6, 100e-6, 250e-6, 500e-6, 1e-3, 2.5e-3, 5e-3, 10e-3, 25e-3, 100e-3}

	// KEMLatencyBuckets for a single encapsulation or decapsulation.
	KEMLatencyBuckets = []float64{10e-6, 25e-6, 50e-6, 100e-6, 250e-6, 500e-6, 1e-3, 5e-3}
)

// NewCollector creates a collector with its own registry. Go runtime
// metrics are registered alongside the vault metrics.
func NewCollector(labels Labels) *Collector {
	if labels == nil {
		labels = make(Labels)
	}
	constLabels := prometheus.Labels(labels)

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: name, Help: help, ConstLabels: constLabels,
		})
	}
	histogram := func(name, help string, buckets []float64) prometheus.Histogram {
		return prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace, Name: name, Help: help, Buckets: buckets, ConstLabels: constLabels,
		})
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		encrypts: counter("encrypts_total", "Total number of items sealed"),
		decrypts: counter("decrypts_total", "Total number of items opened"),
		encryptErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "encrypt_errors_total",
			Help: "Encryption failures by stage", ConstLabels: constLabels,
		}, []string{"stage"}),
		decryptErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "decrypt_errors_total",
			Help: "Decryption failures by stage", ConstLabels: constLabels,
		}, []string{"stage"}),
		authFailures:       counter("auth_failures_total", "AEAD tags that failed to verify"),
		decapsFailures:     counter("decapsulation_failures_total", "KEM decapsulations rejected"),
		keypairs:           counter("keypairs_generated_total", "KEM keypairs generated by the keystore"),
		encryptLatency:     histogram("encrypt_duration_seconds", "Encrypt duration in seconds", LatencyBuckets),
		decryptLatency:     histogram("decrypt_duration_seconds", "Decrypt duration in seconds", LatencyBuckets),
		encapsulateLatency: histogram("kem_encapsulate_duration_seconds", "KEM encapsulation duration in seconds", KEMLatencyBuckets),
		decapsulateLatency: histogram("kem_decapsulate_duration_seconds", "KEM decapsulation duration in seconds", KEMLatencyBuckets),
		createdAt:          time.Now(),
		labels:             labels,
	}

	c.registry.MustRegister(
		c.encrypts, c.decrypts,
		c.encryptErrors, c.decryptErrors,
		c.authFailures, c.decapsFailures, c.keypairs,
		c.encryptLatency, c.decryptLatency,
		c.encapsulateLatency, c.decapsulateLatency,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "uptime_seconds",
			Help: "Time since the collector was created", ConstLabels: constLabels,
		}, func() float64 { return time.Since(c.createdAt).Seconds() }),
		collectors.NewGoCollector(),
	)
	return c
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// --- Operation Metrics ---

// RecordEncrypt records a successful encryption.
func (c *Collector) RecordEncrypt(d time.Duration) {
	c.encrypts.Inc()
	c.encryptLatency.Observe(d.Seconds())
}

// RecordDecrypt records a successful decryption.
func (c *Collector) RecordDecrypt(d time.Duration) {
	c.decrypts.Inc()
	c.decryptLatency.Observe(d.Seconds())
}

// RecordEncapsulate records the duration of one KEM encapsulation.
func (c *Collector) RecordEncapsulate(d time.Duration) {
	c.encapsulateLatency.Observe(d.Seconds())
}

// RecordDecapsulate records the duration of one KEM decapsulation.
func (c *Collector) RecordDecapsulate(d time.Duration) {
	c.decapsulateLatency.Observe(d.Seconds())
}

// --- Error Metrics ---

// RecordEncryptError increments the encryption failure counter for stage.
func (c *Collector) RecordEncryptError(stage string) {
	c.encryptErrors.WithLabelValues(stage).Inc()
}

// RecordDecryptError increments the decryption failure counter for stage.
func (c *Collector) RecordDecryptError(stage string) {
	c.decryptErrors.WithLabelValues(stage).Inc()
}

// --- Security Metrics ---

// RecordAuthFailure increments the authentication failure counter.
func (c *Collector) RecordAuthFailure() {
	c.authFailures.Inc()
}

// RecordDecapsulationFailure increments the rejected decapsulation counter.
func (c *Collector) RecordDecapsulationFailure() {
	c.decapsFailures.Inc()
}

// RecordKeyPairGenerated increments the generated keypair counter.
func (c *Collector) RecordKeyPairGenerated() {
	c.keypairs.Inc()
}

// --- Snapshot ---

// HistogramSummary contains summarized histogram data.
type HistogramSummary struct {
	Count   uint64        `json:"count"`
	Sum     float64       `json:"sum"`
	Mean    float64       `json:"mean"`
	Buckets []BucketCount `json:"buckets"`
}

// BucketCount represents a histogram bucket with its upper bound and count.
type BucketCount struct {
	UpperBound float64 `json:"le"`    // Upper bound (less than or equal)
	Count      uint64  `json:"count"` // Cumulative count
}

// Snapshot is a point-in-time copy of all vault metrics.
type Snapshot struct {
	Timestamp time.Time
	Uptime    time.Duration

	Encrypts uint64
	Decrypts uint64

	// Failures keyed by stage
	EncryptErrors map[string]uint64
	DecryptErrors map[string]uint64

	AuthFailures          uint64
	DecapsulationFailures uint64
	KeyPairsGenerated     uint64

	EncryptLatency     HistogramSummary
	DecryptLatency     HistogramSummary
	EncapsulateLatency HistogramSummary
	DecapsulateLatency HistogramSummary

	Labels Labels
}

// TotalDecryptErrors sums decryption failures over all stages.
func (s Snapshot) TotalDecryptErrors() uint64 {
	var n uint64
	for _, v := range s.DecryptErrors {
		n += v
	}
	return n
}

// TotalEncryptErrors sums encryption failures over all stages.
func (s Snapshot) TotalEncryptErrors() uint64 {
	var n uint64
	for _, v := range s.EncryptErrors {
		n += v
	}
	return n
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:             time.Now(),
		Uptime:                time.Since(c.createdAt),
		Encrypts:              counterValue(c.encrypts),
		Decrypts:              counterValue(c.decrypts),
		EncryptErrors:         vecValues(c.encryptErrors, "stage"),
		DecryptErrors:         vecValues(c.decryptErrors, "stage"),
		AuthFailures:          counterValue(c.authFailures),
		DecapsulationFailures: counterValue(c.decapsFailures),
		KeyPairsGenerated:     counterValue(c.keypairs),
		EncryptLatency:        summarize(c.encryptLatency),
		DecryptLatency:        summarize(c.decryptLatency),
		EncapsulateLatency:    summarize(c.encapsulateLatency),
		DecapsulateLatency:    summarize(c.decapsulateLatency),
		Labels:                c.labels,
	}
}

func counterValue(m prometheus.Metric) uint64 {
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		return 0
	}
	return uint64(out.GetCounter().GetValue())
}

func vecValues(vec *prometheus.CounterVec, label string) map[string]uint64 {
	ch := make(chan prometheus.Metric)
	go func() {
		vec.Collect(ch)
		close(ch)
	}()

	values := make(map[string]uint64)
	for m := range ch {
		var out dto.Metric
		if err := m.Write(&out); err != nil {
			continue
		}
		for _, lp := range out.GetLabel() {
			if lp.GetName() == label {
				values[lp.GetValue()] = uint64(out.GetCounter().GetValue())
			}
		}
	}
	return values
}

func summarize(h prometheus.Histogram) HistogramSummary {
	var out dto.Metric
	if err := h.Write(&out); err != nil {
		return HistogramSummary{}
	}
	hist := out.GetHistogram()

	s := HistogramSummary{
		Count: hist.GetSampleCount(),
		Sum:   hist.GetSampleSum(),
	}
	if s.Count > 0 {
		s.Mean = s.Sum / float64(s.Count)
	}
	for _, b := range hist.GetBucket() {
		s.Buckets = append(s.Buckets, BucketCount{
			UpperBound: b.GetUpperBound(),
			Count:      b.GetCumulativeCount(),
		})
	}
	sort.Slice(s.Buckets, func(i, j int) bool {
		return s.Buckets[i].UpperBound < s.Buckets[j].UpperBound
	})
	return s
}

// --- Global Collector ---

var (
	globalCollector     *Collector
	globalCollectorOnce sync.Once
	globalCollectorMu   sync.RWMutex
)

// Global returns the global metrics collector.
// Creates one with default settings if not already initialized.
func Global() *Collector {
	globalCollectorOnce.Do(func() {
		globalCollectorMu.Lock()
		if globalCollector == nil {
			globalCollector = NewCollector(Labels{"instance": "default"})
		}
		globalCollectorMu.Unlock()
	})
	globalCollectorMu.RLock()
	defer globalCollectorMu.RUnlock()
	return globalCollector
}

// SetGlobal sets the global metrics collector.
// Should be called during initialization before any metrics are recorded.
func SetGlobal(c *Collector) {
	globalCollectorMu.Lock()
	defer globalCollectorMu.Unlock()
	globalCollector = c
}
