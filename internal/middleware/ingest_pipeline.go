package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"CarbonPulse/internal/domain/models"
	domrepo "CarbonPulse/internal/domain/repository"
)

// Proc is the minimal ingest interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, m *models.Measurement) (models.HealthState, error)
}

// IngestPipeline sits between the transport edges (Kafka consumer, HTTP)
// and the measurement processor. It validates, throttles per (entity,
// sector), optionally transforms, and buffers when downstream fails.
type IngestPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.Measurement
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per (entity,sector) last accepted time
	// format transform hook (optional)
	transform func(*models.Measurement) *models.Measurement
	// metrics
	bufDepthGauge func(int)
	throttleWarn  func(string)
}

type PipelineOption func(*IngestPipeline)

// WithMaxRPS sets the max accepted measurements per second per sector.
func WithMaxRPS(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer size for downstream failures.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform sets a transformation hook applied before processing.
func WithTransform(fn func(*models.Measurement) *models.Measurement) PipelineOption {
	return func(p *IngestPipeline) { p.transform = fn }
}

// NewIngestPipeline creates a new pipeline.
func NewIngestPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   20,   // default throttle per sector
		bufSize:  1000, // default buffer
		bufCh:    make(chan *models.Measurement, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.Measurement, p.bufSize)
	}
	p.bufDepthGauge = func(n int) { p.metrics.RecordLatency("pipeline_buffer_depth", float64(n)) }
	p.throttleWarn = func(key string) { p.metrics.RecordError("pipeline_throttle_" + key) }
	return p
}

// Start launches background flushing of buffered measurements.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case m := <-p.bufCh:
				if m == nil {
					continue
				}
				if _, err := p.proc.Process(ctx, m); err != nil {
					// exponential backoff with cap
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- m:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards a measurement downstream,
// buffering transient failures. Ledger rejections (duplicate, future
// timestamp, inactive sector) are terminal and never buffered.
func (p *IngestPipeline) Process(ctx context.Context, m *models.Measurement) error {
	start := time.Now()
	if err := validateMeasurement(m); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		m = p.transform(m)
		if err := validateMeasurement(m); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	key := m.Entity + "/" + m.Sector
	if !p.allow(key, start) {
		// throttled; record and drop silently
		p.metrics.RecordError("pipeline_throttle")
		if p.throttleWarn != nil {
			p.throttleWarn(key)
		}
		return nil
	}

	if _, err := p.proc.Process(ctx, m); err != nil {
		if terminal(err) {
			p.metrics.RecordError("pipeline_reject")
			return err
		}
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- m:
			if p.bufDepthGauge != nil {
				p.bufDepthGauge(len(p.bufCh))
			}
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateMeasurement(m *models.Measurement) error {
	if m == nil {
		return fmt.Errorf("measurement nil")
	}
	if m.Entity == "" || m.Sector == "" {
		return fmt.Errorf("entity/sector empty")
	}
	if m.Timestamp <= 0 {
		return fmt.Errorf("timestamp invalid")
	}
	if m.Value.IsNeg() {
		return fmt.Errorf("negative value")
	}
	return nil
}

// terminal reports whether the error is a ledger rejection that a retry
// can never fix.
func terminal(err error) bool {
	for _, e := range []error{
		models.ErrInvalidState,
		models.ErrDuplicateRecord,
		models.ErrFutureTimestamp,
		models.ErrValueOutOfRange,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

func (p *IngestPipeline) allow(key string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[key]
	if last.IsZero() {
		p.lastSeen[key] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[key] = now
	return true
}
