package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/kdev47/stakehouse/go/internal/events"
	"github.com/kdev47/stakehouse/go/internal/models"
)

// ChangeFeed delivers one game's change events in receipt order. The
// returned function cancels the subscription.
type ChangeFeed interface {
	Subscribe(ctx context.Context, game models.GameType, handler func(events.Envelope)) (func(), error)
}

// NATSFeedConfig configures the JetStream-backed change feed.
type NATSFeedConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultNATSFeedConfig() NATSFeedConfig {
	return NATSFeedConfig{
		URL:           nats.DefaultURL,
		StreamName:    "ROUND_EVENTS",
		SubjectPrefix: "casino.rounds",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSFeed subscribes to the round change stream with an ephemeral consumer.
// New events only: a subscriber resyncs through the state snapshot, not by
// replaying the stream.
type NATSFeed struct {
	nc  *nats.Conn
	js  jetstream.JetStream
	cfg NATSFeedConfig
}

func NewNATSFeed(cfg NATSFeedConfig) (*NATSFeed, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	return &NATSFeed{nc: nc, js: js, cfg: cfg}, nil
}

func (f *NATSFeed) Subscribe(ctx context.Context, game models.GameType, handler func(events.Envelope)) (func(), error) {
	stream, err := f.js.Stream(ctx, f.cfg.StreamName)
	if err != nil {
		return nil, fmt.Errorf("get stream: %w", err)
	}

	consumer, err := stream.CreateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: fmt.Sprintf("%s.%s.>", f.cfg.SubjectPrefix, strings.ToLower(string(game))),
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		var env events.Envelope
		if err := json.Unmarshal(msg.Data(), &env); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to unmarshal change event")
			msg.Ack()
			return
		}
		handler(env)
		msg.Ack()
	})
	if err != nil {
		return nil, fmt.Errorf("start consumer: %w", err)
	}

	return consumeCtx.Stop, nil
}

// Close tears down the NATS connection.
func (f *NATSFeed) Close() {
	if f.nc != nil {
		f.nc.Close()
	}
}
