package kafka

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/segmentio/kafka-go"

	"dispatch-service/internal/alerts"
	"dispatch-service/internal/logging"
	"dispatch-service/internal/models"
)

// report is an automated emergency report from a sensor or monitoring feed.
type report struct {
	SourceID      string  `json:"source_id"`
	Type          string  `json:"type"`
	Severity      string  `json:"severity"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Address       string  `json:"address"`
	ContactNumber string  `json:"contact_number"`
}

// Consumer turns automated reports into alerts through the same create path
// as human reporters.
type Consumer struct {
	reader *kafka.Reader
	svc    *alerts.Service
	logger *logging.Logger
}

func NewConsumer(brokers []string, topic, groupID string, svc *alerts.Service, logger *logging.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		svc:    svc,
		logger: logger,
	}
}

// Start consumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Report consumer started")
		for {
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				continue
			}

			var r report
			if err := json.Unmarshal(msg.Value, &r); err != nil {
				c.logger.Errorf("Unmarshal report failed: %v", err)
				continue
			}
			if r.SourceID == "" || r.Title == "" {
				c.logger.Errorf("Invalid report: missing source_id or title")
				continue
			}

			alert, err := c.svc.Create(ctx, r.SourceID, models.CreateAlertRequest{
				Type:          models.AlertType(r.Type),
				Severity:      models.Severity(r.Severity),
				Title:         r.Title,
				Description:   r.Description,
				Location:      models.Location{Latitude: r.Latitude, Longitude: r.Longitude, Address: r.Address},
				ContactNumber: r.ContactNumber,
			})
			if err != nil {
				c.logger.Errorf("Failed to create alert from report by %s: %v", r.SourceID, err)
				continue
			}
			c.logger.Infof("Created alert %s from automated report by %s", alert.Code, r.SourceID)
		}
	}()
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Errorf("Report consumer close failed: %v", err)
	}
}
