// Package kafka consumes crowd-sourced flood incident reports from the
// source topic.
package kafka

import (
	"context"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/floodwatch/flood-search-service/internal/config"
	"github.com/floodwatch/flood-search-service/internal/domain"
)

// Reader consumes raw incident reports from Kafka with manual offset
// commits. It implements ingest.ReportSource.
type Reader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewReader creates a consumer-group reader for the configured report topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaReportTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Reader{reader: r, logger: logger}
}

// Fetch blocks until a report message arrives or the context is cancelled.
// The returned report carries a Commit closure; the offset advances only
// when the caller invokes it after a successful store write.
func (r *Reader) Fetch(ctx context.Context) (domain.RawReport, error) {
	msg, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return domain.RawReport{}, fmt.Errorf("fetch report: %w", err)
	}

	raw := mapMessageToRawReport(msg)
	raw.Commit = func(ctx context.Context) error {
		return r.reader.CommitMessages(ctx, msg)
	}
	return raw, nil
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

// mapMessageToRawReport copies the Kafka message fields into the domain
// representation, leaving Commit for the caller to attach.
func mapMessageToRawReport(msg kafkago.Message) domain.RawReport {
	return domain.RawReport{
		Key:       msg.Key,
		Value:     msg.Value,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}
}
