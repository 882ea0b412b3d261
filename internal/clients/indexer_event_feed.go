package clients

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// IndexerEvent is one live update pushed by the indexer over its
// websocket feed.
type IndexerEvent struct {
	Type    string `json:"type"`
	Wallet  string `json:"wallet"`
	TxHash  string `json:"tx_hash,omitempty"`
	Block   uint64 `json:"block,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// EventHandler consumes feed events. Handlers must not block; slow
// consumers stall the read pump and eventually drop the connection.
type EventHandler func(event IndexerEvent)

// DisconnectHandler fires when the feed loses its connection, before
// the reconnect backoff starts.
type DisconnectHandler func(err error)

// IndexerEventFeed keeps a websocket subscription to the indexer's
// live event stream, reconnecting with backoff after failures. The
// feed is an optimization only; everything it delivers can also be
// discovered by polling, so a dead feed degrades freshness, not
// correctness.
type IndexerEventFeed struct {
	url          string
	onEvent      EventHandler
	onDisconnect DisconnectHandler
	logger       *logrus.Logger

	readTimeout    time.Duration
	maxBackoff     time.Duration
	initialBackoff time.Duration
}

func NewIndexerEventFeed(url string, onEvent EventHandler, onDisconnect DisconnectHandler, logger *logrus.Logger) *IndexerEventFeed {
	return &IndexerEventFeed{
		url:            url,
		onEvent:        onEvent,
		onDisconnect:   onDisconnect,
		logger:         logger,
		readTimeout:    90 * time.Second,
		maxBackoff:     time.Minute,
		initialBackoff: time.Second,
	}
}

// Run connects and pumps events until the context is cancelled.
// Intended to be launched as a goroutine by the container.
func (f *IndexerEventFeed) Run(ctx context.Context) {
	backoff := f.initialBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		err := f.connectAndPump(ctx)
		if ctx.Err() != nil {
			return
		}
		if f.onDisconnect != nil {
			f.onDisconnect(err)
		}
		f.logger.WithError(err).WithField("backoff", backoff.String()).
			Warn("indexer event feed disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > f.maxBackoff {
			backoff = f.maxBackoff
		}
	}
}

func (f *IndexerEventFeed) connectAndPump(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.logger.WithField("url", f.url).Info("indexer event feed connected")

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(f.readTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go f.pingLoop(ctx, conn, done)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(f.readTimeout)); err != nil {
			return err
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var event IndexerEvent
		if err := json.Unmarshal(message, &event); err != nil {
			f.logger.WithError(err).Warn("dropping malformed feed event")
			continue
		}
		if f.onEvent != nil {
			f.onEvent(event)
		}
	}
}

func (f *IndexerEventFeed) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
