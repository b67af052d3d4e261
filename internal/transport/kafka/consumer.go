// Package kafka consumes the inbound event topics and dispatches records to
// the same service entry points as the HTTP surface. Delivery is
// at-least-once: offsets are committed only after a poll is processed, and
// every gate operation is idempotent enough to tolerate redelivery.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"vigil/internal/challenge"
	"vigil/internal/handshake"
	"vigil/internal/verify"
)

// Topics names the four inbound event streams.
type Topics struct {
	Challenge string
	Response  string
	Telemetry string
	Timeout   string
}

// DefaultTopics derives topic names from a shared prefix.
func DefaultTopics(prefix string) Topics {
	return Topics{
		Challenge: prefix + ".challenge",
		Response:  prefix + ".response",
		Telemetry: prefix + ".telemetry",
		Timeout:   prefix + ".timeout-check",
	}
}

// Consumer polls the event topics in a consumer group.
type Consumer struct {
	client    *kgo.Client
	topics    Topics
	tracker   *challenge.Tracker
	completer *handshake.Completer
	gate      *verify.Gate
	logger    *slog.Logger
}

func NewConsumer(brokers []string, group string, topics Topics, tracker *challenge.Tracker, completer *handshake.Completer, gate *verify.Gate, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics.Challenge, topics.Response, topics.Telemetry, topics.Timeout),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, err
	}
	return &Consumer{
		client:    client,
		topics:    topics,
		tracker:   tracker,
		completer: completer,
		gate:      gate,
		logger:    logger,
	}, nil
}

// Run polls until the context is cancelled. Malformed records are logged
// and skipped; they are not retried by redelivering the poll.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("fetch error", "topic", topic, "partition", partition, "error", err)
		})
		fetches.EachRecord(func(record *kgo.Record) {
			c.dispatch(ctx, record)
		})
		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			c.logger.Error("offset commit failed", "error", err)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, record *kgo.Record) {
	eventID := uuid.NewString()
	now := time.Now()

	switch record.Topic {
	case c.topics.Challenge:
		var ev struct {
			DeviceID string `json:"deviceId"`
			TS       int64  `json:"ts"`
		}
		if err := json.Unmarshal(record.Value, &ev); err != nil {
			c.logger.Error("malformed challenge event", "event_id", eventID, "error", err)
			return
		}
		if err := c.tracker.OpenWindow(ctx, ev.DeviceID, now); err != nil {
			c.logger.Error("open window failed",
				"event_id", eventID, "device_id", ev.DeviceID, "error", err)
		}

	case c.topics.Response:
		var ev struct {
			B64    string `json:"b64"`
			IPAddr string `json:"ipAddr"`
		}
		if err := json.Unmarshal(record.Value, &ev); err != nil {
			c.logger.Error("malformed response event", "event_id", eventID, "error", err)
			return
		}
		result, err := c.completer.CompleteResponse(ctx, ev.B64, ev.IPAddr, now)
		if err != nil {
			c.logger.Error("handshake completion failed", "event_id", eventID, "error", err)
			return
		}
		c.logger.Info("handshake response processed",
			"event_id", eventID, "result", result.String())

	case c.topics.Telemetry:
		var ev struct {
			DeviceID    string   `json:"deviceId"`
			IPAddr      string   `json:"ipAddr"`
			TS          int64    `json:"ts"`
			Temperature *float64 `json:"temperature"`
			Humidity    *float64 `json:"humidity"`
		}
		if err := json.Unmarshal(record.Value, &ev); err != nil {
			c.logger.Error("malformed telemetry event", "event_id", eventID, "error", err)
			return
		}
		sub := verify.TelemetryEvent{
			DeviceID:    ev.DeviceID,
			IPAddr:      ev.IPAddr,
			Temperature: ev.Temperature,
			Humidity:    ev.Humidity,
		}
		if ev.TS > 0 {
			sub.Timestamp = time.Unix(ev.TS, 0)
		}
		outcome, err := c.gate.Process(ctx, sub, now)
		if err != nil {
			c.logger.Error("telemetry processing failed",
				"event_id", eventID, "device_id", ev.DeviceID, "error", err)
			return
		}
		c.logger.Info("telemetry processed",
			"event_id", eventID, "device_id", ev.DeviceID, "outcome", outcome.String())

	case c.topics.Timeout:
		var ev struct {
			DeviceID string `json:"deviceId"`
		}
		if err := json.Unmarshal(record.Value, &ev); err != nil {
			c.logger.Error("malformed timeout event", "event_id", eventID, "error", err)
			return
		}
		if _, err := c.tracker.CheckAndEnforceTimeout(ctx, ev.DeviceID, now); err != nil {
			c.logger.Error("timeout check failed",
				"event_id", eventID, "device_id", ev.DeviceID, "error", err)
		}

	default:
		c.logger.Warn("record on unexpected topic", "topic", record.Topic)
	}
}
