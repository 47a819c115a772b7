// Package memory adapts a Postgres/pgvector database into the assistant's
// conversation memory. Embeddings come from the local Ollama daemon;
// similarity ranking is delegated entirely to pgvector cosine distance.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/loomlabs/loom-assistant/agent/contract"
)

const defaultDimensions = 768 // nomic-embed-text

type Config struct {
	DSN        string `envconfig:"DSN" split_words:"true"`
	Dimensions int    `envconfig:"DIMENSIONS" split_words:"true" default:"768"`
}

// Embedder turns text into a vector. Satisfied by the ollama client.
type Embedder interface {
	Embeddings(ctx context.Context, text string) ([]float32, error)
}

// Record is one stored memory row.
type Record struct {
	bun.BaseModel `bun:"table:memories,alias:m"`

	ID        string                   `bun:"id,pk"`
	UserID    int64                    `bun:"user_id,notnull"`
	Kind      string                   `bun:"kind,notnull"`
	Document  string                   `bun:"document,notnull"`
	Metadata  contractx.MemoryMetadata `bun:"metadata,type:jsonb"`
	// The column type is created by migrate with the configured dimension.
	Embedding pgvector.Vector `bun:"embedding,type:vector"`
	CreatedAt time.Time                `bun:"created_at,notnull,default:current_timestamp"`

	Distance float64 `bun:"distance,scanonly"`
}

// Store implements contract.MemoryStore on Postgres + pgvector.
type Store struct {
	db       *bun.DB
	embedder Embedder
	dims     int
}

var _ contractx.MemoryStore = (*Store)(nil)

func NewStore(ctx context.Context, cfg Config, embedder Embedder) (*Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}

	dims := cfg.Dimensions
	if dims <= 0 {
		dims = defaultDimensions
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	s := &Store{db: db, embedder: embedder, dims: dims}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("enable pgvector: %w", err)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memories (
		id text PRIMARY KEY,
		user_id bigint NOT NULL,
		kind text NOT NULL,
		document text NOT NULL,
		metadata jsonb,
		embedding vector(%d),
		created_at timestamptz NOT NULL DEFAULT now()
	)`, s.dims)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create memories table: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS memories_user_id_idx ON memories (user_id, created_at DESC)"); err != nil {
		return fmt.Errorf("create user index: %w", err)
	}
	return nil
}

// Store embeds and writes one document, returning its generated id.
// Identifiers are UUIDs: wall-clock ids collide under concurrent writes.
func (s *Store) Store(ctx context.Context, userID int64, document string, meta contractx.MemoryMetadata) (string, error) {
	if strings.TrimSpace(document) == "" {
		return "", fmt.Errorf("%w: document is empty", contractx.ErrValidation)
	}

	vec, err := s.embedder.Embeddings(ctx, document)
	if err != nil {
		return "", fmt.Errorf("%w: embed document: %v", contractx.ErrMemoryUnavailable, err)
	}

	meta.UserID = userID
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}
	kind := meta.Kind
	if kind == "" {
		kind = "conversation"
		meta.Kind = kind
	}

	rec := &Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Document:  document,
		Metadata:  meta,
		Embedding: pgvector.NewVector(vec),
		CreatedAt: meta.Timestamp,
	}

	if _, err := s.db.NewInsert().Model(rec).Exec(ctx); err != nil {
		return "", fmt.Errorf("%w: insert memory: %v", contractx.ErrMemoryUnavailable, err)
	}
	return rec.ID, nil
}

// Search returns up to k nearest documents for the user. An empty query
// skips embedding and returns the most recent documents instead.
func (s *Store) Search(ctx context.Context, userID int64, query string, k int) ([]contractx.MemoryRecord, error) {
	if k <= 0 {
		k = 5
	}

	var rows []Record
	q := s.db.NewSelect().Model(&rows).Where("user_id = ?", userID).Limit(k)

	if strings.TrimSpace(query) == "" {
		q = q.ColumnExpr("m.*").ColumnExpr("0.0 AS distance").OrderExpr("created_at DESC")
	} else {
		vec, err := s.embedder.Embeddings(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("%w: embed query: %v", contractx.ErrMemoryUnavailable, err)
		}
		q = q.ColumnExpr("m.*").
			ColumnExpr("embedding <=> ? AS distance", pgvector.NewVector(vec)).
			OrderExpr("embedding <=> ?", pgvector.NewVector(vec))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: search memories: %v", contractx.ErrMemoryUnavailable, err)
	}

	out := make([]contractx.MemoryRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, contractx.MemoryRecord{
			ID:       r.ID,
			Document: r.Document,
			Metadata: r.Metadata,
			Distance: r.Distance,
		})
	}
	return out, nil
}

// Stats aggregates stored memory counts for a user.
func (s *Store) Stats(ctx context.Context, userID int64) (contractx.MemoryStats, error) {
	stats := contractx.MemoryStats{UserID: userID}

	total, err := s.db.NewSelect().Model((*Record)(nil)).Where("user_id = ?", userID).Count(ctx)
	if err != nil {
		return stats, fmt.Errorf("%w: count memories: %v", contractx.ErrMemoryUnavailable, err)
	}
	contexts, err := s.db.NewSelect().Model((*Record)(nil)).
		Where("user_id = ?", userID).
		Where("kind = ?", "user_context").
		Count(ctx)
	if err != nil {
		return stats, fmt.Errorf("%w: count contexts: %v", contractx.ErrMemoryUnavailable, err)
	}

	var last time.Time
	err = s.db.NewSelect().Model((*Record)(nil)).
		ColumnExpr("COALESCE(MAX(created_at), 'epoch'::timestamptz)").
		Where("user_id = ?", userID).
		Scan(ctx, &last)
	if err != nil {
		return stats, fmt.Errorf("%w: last update: %v", contractx.ErrMemoryUnavailable, err)
	}

	stats.TotalMemories = int64(total)
	stats.Contexts = int64(contexts)
	stats.Conversations = int64(total - contexts)
	if last.Unix() > 0 {
		stats.LastUpdated = last.UTC()
	}
	return stats, nil
}

// Ping reports database reachability for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
