package broker

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mwahhasnft-alt/rork-sub000/config"
	"github.com/mwahhasnft-alt/rork-sub000/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress/lz4"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NewFeedPublisher takes canonical properties from propertyChan and sends
// them to the downstream kafka feed. After shutdown, the function keeps
// draining until the channel runs out of properties.
func NewFeedPublisher(wg *sync.WaitGroup, propertyChan <-chan model.Property, log *slog.Logger,
	cfg *config.FeedConfig) {
	defer wg.Done()
	log.Info("starting feed publisher...", slog.String("topic", cfg.TopicName))

	w := kafka.Writer{
		Addr:         kafka.TCP(strings.Split(cfg.Addr, ",")...),
		Topic:        cfg.TopicName,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  cfg.MaxAttempts,
		BatchSize:    1,                // the parameter is controlled by 'batchTicker' variable
		BatchTimeout: time.Millisecond, // the parameter is controlled by 'batch' variable
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Async:        cfg.Async,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error("failed to send messages to kafka.", slog.String("err", err.Error()))
			}
		},
		Compression: kafka.Compression(new(lz4.Codec).Code()),
	}
	defer func() {
		err := w.Close()
		if err != nil {
			log.Error("failed to close kafka writer.", slog.String("err", err.Error()))
		}
	}()

	batchTicker := time.NewTicker(cfg.BatchTimeout)
	defer batchTicker.Stop()
	batch := make([]kafka.Message, 0, cfg.BatchSize)
	writeMessages := func(batch []kafka.Message) {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.WriteTimeout)
		defer cancel()
		err := w.WriteMessages(ctx, batch...)
		if err != nil {
			log.Error("failed to send messages to kafka.", slog.String("err", err.Error()))
			return
		}
		log.Debug("successfully sent messages to kafka.", slog.Int("batch length", len(batch)))
	}

	for property := range propertyChan {
		body, err := json.Marshal(property)
		if err != nil {
			log.Error("marshaling error.", slog.String("err", err.Error()), slog.String("id", property.ID))
			continue
		}
		batch = append(batch, kafka.Message{
			Key:   []byte(property.ID),
			Value: body,
		})
		select {
		case <-batchTicker.C:
			writeMessages(batch)
			batch = make([]kafka.Message, 0, cfg.BatchSize)
		default:
			if len(batch) >= cfg.BatchSize {
				writeMessages(batch)
				batch = make([]kafka.Message, 0, cfg.BatchSize)
			}
		}
	}
	// Some properties may remain in the batch after propertyChan is closed
	if len(batch) > 0 {
		log.Debug("properties in batch.", slog.Int("count", len(batch)))
		writeMessages(batch)
	}
	log.Info("stopping feed publisher.")
}
