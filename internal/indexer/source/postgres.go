package source

import (
	"context"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/postgres"
)

// PostgresSource reads documents from a table with the shape:
//
//	CREATE TABLE documents (
//	    id   BIGSERIAL PRIMARY KEY,
//	    body TEXT NOT NULL
//	);
//
// Rows are returned in id order, so document IDs stay stable across reloads
// as long as rows are only appended.
type PostgresSource struct {
	db    *postgres.Client
	table string
}

func NewPostgresSource(db *postgres.Client) *PostgresSource {
	return &PostgresSource{db: db, table: "documents"}
}

func (s *PostgresSource) Describe() string {
	return "postgres:" + s.table
}

func (s *PostgresSource) ReadDocuments(ctx context.Context) ([]string, error) {
	rows, err := s.db.DB.QueryContext(ctx, `SELECT body FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w: %w", apperrors.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	docs := make([]string, 0, 256)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning document row: %w: %w", apperrors.ErrSourceUnavailable, err)
		}
		docs = append(docs, body)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w: %w", apperrors.ErrSourceUnavailable, err)
	}
	return docs, nil
}
