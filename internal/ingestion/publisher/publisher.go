// Package publisher writes ingested documents to PostgreSQL and announces
// that the index is stale. Writes are idempotent per key.
package publisher

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/postgres"
)

// The documents table is shared with source.PostgresSource, which only needs
// id and body. The extra columns are added in place so an existing table
// keeps working.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id   BIGSERIAL PRIMARY KEY,
		body TEXT NOT NULL
	)`,
	`ALTER TABLE documents ADD COLUMN IF NOT EXISTS content_hash TEXT`,
	`ALTER TABLE documents ADD COLUMN IF NOT EXISTS idempotency_key TEXT`,
	`ALTER TABLE documents ADD COLUMN IF NOT EXISTS created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()`,
	`CREATE UNIQUE INDEX IF NOT EXISTS documents_idempotency_key ON documents (idempotency_key)`,
}

// Notifier tells the search fleet that the document table changed.
type Notifier interface {
	NotifyReload(ctx context.Context, reason string) error
}

type NotifierFunc func(ctx context.Context, reason string) error

func (f NotifierFunc) NotifyReload(ctx context.Context, reason string) error {
	return f(ctx, reason)
}

// KafkaNotifier publishes a reload event that every replica consumes.
func KafkaNotifier(p kafka.Publisher) Notifier {
	host, _ := os.Hostname()
	return NotifierFunc(func(ctx context.Context, reason string) error {
		event := consumer.ReloadEvent{
			Reason:      reason,
			RequestedBy: "ingestion@" + host,
			RequestedAt: time.Now().UTC(),
		}
		return p.Publish(ctx, kafka.Event{Key: event.RequestedBy, Value: event})
	})
}

// LocalNotifier rebuilds this process's index directly, for single-replica
// deployments without Kafka.
func LocalNotifier(r consumer.Reloader) Notifier {
	return NotifierFunc(func(ctx context.Context, reason string) error {
		_, err := r.Reload(ctx, indexer.TriggerIngest)
		return err
	})
}

type Publisher struct {
	db       *postgres.Client
	notifier Notifier
	logger   *slog.Logger
}

// New creates a Publisher. A nil notifier leaves rebuilding to the periodic
// reload loop.
func New(db *postgres.Client, notifier Notifier) *Publisher {
	return &Publisher{
		db:       db,
		notifier: notifier,
		logger:   logger.WithComponent("ingestion-publisher"),
	}
}

func (p *Publisher) EnsureSchema(ctx context.Context) error {
	err := p.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating documents schema: %w", err)
	}
	return nil
}

// Ingest stores req and requests a rebuild. A repeated idempotency key with
// the same body returns the original row; with a different body it fails
// with ErrIdempotencyConflict. The document is stored even when the rebuild
// request fails; the response says so.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	body := strings.TrimSpace(req.Body)
	contentHash := fmt.Sprintf("%x", sha256.Sum256([]byte(body)))

	if req.IdempotencyKey != "" {
		existing, err := p.findByIdempotencyKey(ctx, req.IdempotencyKey, contentHash)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			p.logger.Info("duplicate ingestion detected",
				"idempotency_key", req.IdempotencyKey,
				"row_id", existing.RowID,
			)
			return existing, nil
		}
	}

	var rowID int64
	err := p.db.InTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO documents (body, content_hash, idempotency_key)
			VALUES ($1, $2, $3)
			ON CONFLICT (idempotency_key) DO NOTHING
			RETURNING id`, body, contentHash, nullableString(req.IdempotencyKey)).Scan(&rowID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.New(apperrors.ErrIdempotencyConflict, http.StatusConflict, "idempotency key already in use")
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("inserting document: %w", err)
	}

	resp := &ingestion.IngestResponse{RowID: rowID, Reload: ingestion.ReloadSkipped}
	if p.notifier != nil {
		resp.Reload = ingestion.ReloadRequested
		if err := p.notifier.NotifyReload(ctx, fmt.Sprintf("document %d ingested", rowID)); err != nil {
			p.logger.Error("reload request failed, document waits for the next rebuild",
				"row_id", rowID,
				"error", err,
			)
			resp.Reload = ingestion.ReloadFailed
		}
	}
	return resp, nil
}

func (p *Publisher) findByIdempotencyKey(ctx context.Context, key, contentHash string) (*ingestion.IngestResponse, error) {
	var (
		rowID int64
		hash  sql.NullString
	)
	err := p.db.DB.QueryRowContext(ctx,
		`SELECT id, content_hash FROM documents WHERE idempotency_key = $1`, key).Scan(&rowID, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying by idempotency key: %w", err)
	}
	if hash.String != contentHash {
		return nil, apperrors.New(apperrors.ErrIdempotencyConflict, http.StatusConflict,
			"idempotency key was used for a different document")
	}
	return &ingestion.IngestResponse{RowID: rowID, Duplicate: true, Reload: ingestion.ReloadSkipped}, nil
}

// nullableString maps "" to NULL so documents without a key never collide
// on the unique index.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
