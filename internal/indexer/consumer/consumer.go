// Package consumer turns messages on the index-reload topic into index
// rebuilds. Every replica consumes the topic on its own, so one published
// event refreshes the whole fleet.
package consumer

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/logger"
)

// ReloadEvent is the payload published to the reload topic.
type ReloadEvent struct {
	Reason      string    `json:"reason"`
	RequestedBy string    `json:"requested_by,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// Reloader is satisfied by *indexer.Engine.
type Reloader interface {
	Reload(ctx context.Context, trigger string) (index.Stats, error)
}

// HandleReload returns a MessageHandler that rebuilds the index for each
// event. Undecodable messages are logged and skipped so they do not block the
// partition. A failed rebuild is returned so the message is not committed.
func HandleReload(r Reloader) kafka.MessageHandler {
	log := logger.WithComponent("reload-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ReloadEvent](value)
		if err != nil {
			log.Error("failed to decode reload event", "error", err, "key", string(key))
			return nil
		}
		log.Info("reload requested",
			"reason", event.Reason,
			"requested_by", event.RequestedBy,
			"requested_at", event.RequestedAt,
		)
		stats, err := r.Reload(ctx, indexer.TriggerKafka)
		if err != nil {
			return err
		}
		log.Debug("reload applied", "documents", stats.Documents)
		return nil
	}
}
