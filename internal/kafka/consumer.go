package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"mill-alert-service/internal/config"
	"mill-alert-service/internal/escalation"
	"mill-alert-service/internal/logging"
	"mill-alert-service/internal/models"
)

// eventTypes maps upstream mill event names to alert types.
var eventTypes = map[string]models.AlertType{
	"qc_failure":           models.AlertQCFailure,
	"batch_contamination":  models.AlertBatchContamination,
	"compliance_breach":    models.AlertComplianceBreach,
	"license_expiring":     models.AlertLicenseExpiring,
	"calibration_overdue":  models.AlertCalibrationOverdue,
	"equipment_failure":    models.AlertEquipmentFailure,
	"premix_stock_low":     models.AlertPremixStockLow,
	"production_shortfall": models.AlertProductionShortfall,
	"rfp_deadline":         models.AlertRFPDeadline,
	"training_expired":     models.AlertTrainingExpired,
}

type millEvent struct {
	EventType string            `json:"event_type"`
	MillID    int64             `json:"mill_id"`
	BatchID   string            `json:"batch_id"`
	Message   string            `json:"message"`
	Summary   string            `json:"summary"`
	Link      string            `json:"link"`
	Deadline  *time.Time        `json:"deadline"`
	Metadata  map[string]string `json:"metadata"`
}

// Consumer turns upstream mill domain events into raised alerts.
type Consumer struct {
	reader    *kafka.Reader
	scheduler *escalation.Scheduler
	logger    *logging.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewConsumer(cfg config.Config, scheduler *escalation.Scheduler, logger *logging.Logger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     []string{cfg.Kafka.Broker},
			Topic:       cfg.Kafka.Topic,
			GroupID:     cfg.Kafka.GroupID,
			StartOffset: kafka.FirstOffset,
		}),
		scheduler: scheduler,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (c *Consumer) Start(wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Kafka consumer started on topic %s", c.reader.Config().Topic)
		for {
			msg, err := c.reader.ReadMessage(c.ctx)
			if err != nil {
				if c.ctx.Err() != nil {
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				continue
			}

			var event millEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				c.logger.Errorf("Unmarshal message failed: %v", err)
				continue
			}

			alertType, ok := eventTypes[event.EventType]
			if !ok {
				c.logger.Warnf("Unknown event type %q, skipping", event.EventType)
				continue
			}
			if event.MillID == 0 {
				c.logger.Errorf("Invalid event %q: missing mill_id", event.EventType)
				continue
			}

			id, err := c.scheduler.RaiseAlert(c.ctx, alertType, models.AlertContext{
				MillID:   event.MillID,
				BatchID:  event.BatchID,
				Message:  event.Message,
				Summary:  event.Summary,
				Link:     event.Link,
				Deadline: event.Deadline,
				Metadata: event.Metadata,
			})
			if err != nil {
				c.logger.Errorf("Failed to raise alert for event %q: %v", event.EventType, err)
				continue
			}
			c.logger.Infof("Raised alert %s from event %q for mill %d", id, event.EventType, event.MillID)
		}
	}()
}

func (c *Consumer) Close() {
	c.cancel()
	if err := c.reader.Close(); err != nil {
		c.logger.Errorf("Kafka reader close failed: %v", err)
	}
}
