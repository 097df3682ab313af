package clients

import (
	"encoding/json"
	"fmt"
	"time"

	"studyhub-session-svc/src/internal/config"
	"studyhub-session-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// ActivityPublisher emits session lifecycle events to the activity exchange.
// Publishing is best-effort: callers log failures and continue.
type ActivityPublisher struct {
	channel *amqp.Channel
	cfg     *config.RabbitMQConfig
}

func NewActivityPublisher(cfg *config.Configuration, channel *amqp.Channel) *ActivityPublisher {
	return &ActivityPublisher{
		channel: channel,
		cfg:     &cfg.Queue.RabbitMQ,
	}
}

// PublishActivity publishes a session activity message to RabbitMQ.
func (p *ActivityPublisher) PublishActivity(userID, sessionID, serviceName, action string) error {
	return p.PublishActivityWithMetadata(userID, sessionID, serviceName, action, nil)
}

// PublishActivityWithMetadata publishes a session activity message with extra fields.
func (p *ActivityPublisher) PublishActivityWithMetadata(userID, sessionID, serviceName, action string, metadata map[string]string) error {
	message := models.ActivityMessage{
		UserID:      userID,
		SessionID:   sessionID,
		ServiceName: serviceName,
		Action:      action,
		Metadata:    metadata,
		Timestamp:   time.Now(),
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal activity message: %w", err)
	}

	err = p.channel.Publish(
		p.cfg.Exchange,
		p.cfg.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)

	if err != nil {
		logrus.WithError(err).Error("Failed to publish activity message")
		return fmt.Errorf("failed to publish activity message: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":     userID,
		"session_id":  sessionID,
		"service":     serviceName,
		"action":      action,
		"exchange":    p.cfg.Exchange,
		"routing_key": p.cfg.RoutingKey,
	}).Debug("Activity message published")

	return nil
}
