package usecase

import (
	"context"
	"encoding/json"
	"time"

	"CarbonPulse/internal/domain/models"
	drepo "CarbonPulse/internal/domain/repository"
	"CarbonPulse/pkg/fixed"
	pkgkafka "CarbonPulse/pkg/kafka"
)

// Ingestor accepts a single measurement. The throttling pipeline sits
// behind this when wired; otherwise singles go straight to the processor.
type Ingestor interface {
	Process(ctx context.Context, m *models.Measurement) error
}

// KafkaMeasurementsHandler consumes inbound measurement messages and feeds
// them through the ingest pipeline.
type KafkaMeasurementsHandler struct {
	topic     string
	processor *MeasurementProcessor
	pipeline  Ingestor
	metrics   drepo.Metrics
}

func NewKafkaMeasurementsHandler(topic string, processor *MeasurementProcessor, metrics drepo.Metrics) *KafkaMeasurementsHandler {
	return &KafkaMeasurementsHandler{topic: topic, processor: processor, metrics: metrics}
}

// SetPipeline routes single measurements through the throttling pipeline.
// Batches keep going to the processor directly so per-record semantics hold.
func (h *KafkaMeasurementsHandler) SetPipeline(p Ingestor) { h.pipeline = p }

func (h *KafkaMeasurementsHandler) Topic() string { return h.topic }

// incoming message schema: single {entity, sector, t, value} or
// {measurements: [...]} for batches.
func (h *KafkaMeasurementsHandler) Handle(ctx context.Context, b []byte) error {
	var msg struct {
		Entity       string    `json:"entity"`
		Sector       string    `json:"sector"`
		T            int64     `json:"t"`
		Value        fixed.Num `json:"value"`
		Measurements []struct {
			Entity string    `json:"entity"`
			Sector string    `json:"sector"`
			T      int64     `json:"t"`
			Value  fixed.Num `json:"value"`
		} `json:"measurements"`
	}
	if err := json.Unmarshal(b, &msg); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}

	if len(msg.Measurements) > 0 {
		ms := make([]*models.Measurement, 0, len(msg.Measurements))
		for _, m := range msg.Measurements {
			ms = append(ms, &models.Measurement{
				Entity:    m.Entity,
				Sector:    m.Sector,
				Timestamp: normalizeTS(m.T),
				Value:     m.Value,
			})
		}
		return h.processor.ProcessBatch(ctx, ms)
	}

	ts := normalizeTS(msg.T)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(ts, 0)).Seconds())
	m := &models.Measurement{
		Entity:    msg.Entity,
		Sector:    msg.Sector,
		Timestamp: ts,
		Value:     msg.Value,
	}
	if h.pipeline != nil {
		return h.pipeline.Process(ctx, m)
	}
	_, err := h.processor.Process(ctx, m)
	return err
}

func normalizeTS(t int64) int64 {
	if t > 1e11 { // ms
		return t / 1000
	}
	return t
}

var _ pkgkafka.MessageHandler = (*KafkaMeasurementsHandler)(nil)
