package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"GrowthOpt/internal/domain/models"
	"GrowthOpt/pkg/kafka"
	"GrowthOpt/pkg/logger"
)

// KafkaReports publishes portfolio diagnostic records to a Kafka topic.
// Messages are keyed by universe and date so one evaluation run compacts to
// a single record per partition key.
type KafkaReports struct {
	producer *kafka.Producer
	topic    string
	log      *logger.Logger
}

func NewKafkaReports(producer *kafka.Producer, topic string, log *logger.Logger) *KafkaReports {
	return &KafkaReports{
		producer: producer,
		topic:    topic,
		log:      log.With("reports_repository"),
	}
}

func (r *KafkaReports) Publish(ctx context.Context, report *models.PortfolioReport) error {
	key := reportKey(report)

	if err := r.producer.Publish(ctx, r.topic, []byte(key), report); err != nil {
		return fmt.Errorf("reports: publish %s: %w", key, err)
	}

	r.log.Debug("report published",
		logger.String("key", key),
		logger.Int("positions", report.Positions),
	)

	return nil
}

func (r *KafkaReports) Close() error {
	return r.producer.Close()
}

func reportKey(report *models.PortfolioReport) string {
	return fmt.Sprintf("%s:%s",
		strings.Join(report.Tickers, ","),
		report.Date.Format(time.DateOnly),
	)
}
