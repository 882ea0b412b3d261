package clients

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"multisig-backend/internal/config"
	"multisig-backend/internal/metrics"
)

// LifecycleEvent is the message published for every successful
// state-changing operation. Downstream consumers (notification
// services, audit sinks) key on Subject and MessageID.
type LifecycleEvent struct {
	MessageID string    `json:"message_id"`
	EventType string    `json:"event_type"`
	Wallet    string    `json:"wallet"`
	TxHash    string    `json:"tx_hash,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NATSClient publishes lifecycle events. Publishing is best-effort:
// the chain write the event describes has already succeeded, so a
// publish failure is logged and counted but never propagated.
type NATSClient struct {
	conn          *nats.Conn
	subjectPrefix string
	logger        *logrus.Logger
}

// NewNATSClient connects to the configured NATS server with unlimited
// reconnects.
func NewNATSClient(cfg config.NATSConfig, logger *logrus.Logger) (*NATSClient, error) {
	connectTimeout := 10 * time.Second
	if cfg.Timeout > 0 {
		connectTimeout = time.Duration(cfg.Timeout) * time.Second
	}
	reconnectWait := 5 * time.Second
	if cfg.ReconnectWait > 0 {
		reconnectWait = time.Duration(cfg.ReconnectWait) * time.Second
	}
	maxReconnects := -1
	if cfg.MaxReconnects != 0 {
		maxReconnects = cfg.MaxReconnects
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			metrics.NATSConnectionStatus.Set(0)
			logger.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			metrics.NATSConnectionStatus.Set(1)
			logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	metrics.NATSConnectionStatus.Set(1)

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "multisig"
	}

	return &NATSClient{
		conn:          conn,
		subjectPrefix: prefix,
		logger:        logger,
	}, nil
}

// PublishLifecycleEvent emits one event on
// <prefix>.<wallet>.<event_type>.
func (c *NATSClient) PublishLifecycleEvent(eventType, wallet, txHash string) {
	event := LifecycleEvent{
		MessageID: uuid.New().String(),
		EventType: eventType,
		Wallet:    wallet,
		TxHash:    txHash,
		Timestamp: time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		c.logger.WithError(err).Error("failed to marshal lifecycle event")
		return
	}

	subject := fmt.Sprintf("%s.%s.%s", c.subjectPrefix, wallet, eventType)
	if err := c.conn.Publish(subject, payload); err != nil {
		c.logger.WithError(err).WithField("subject", subject).Warn("failed to publish lifecycle event")
		return
	}
	metrics.EventsPublished.WithLabelValues(eventType).Inc()
}

// Close drains the connection.
func (c *NATSClient) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
