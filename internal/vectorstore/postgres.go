// Package vectorstore keeps product documents and their embeddings in
// PostgreSQL with the pgvector extension.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/IshaanNene/ShopStalk/internal/config"
	"github.com/IshaanNene/ShopStalk/internal/embeddings"
	"github.com/IshaanNene/ShopStalk/internal/ingest"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// ScoredDocument is a search hit. Score is cosine similarity.
type ScoredDocument struct {
	ingest.Document
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// PGStore stores documents in one pgvector table.
type PGStore struct {
	db         DB
	pool       *pgxpool.Pool
	table      string
	dimensions int
	embedder   embeddings.Embedder
	logger     *slog.Logger
}

// Connect opens a pool on cfg.DatabaseURL and prepares the table.
func Connect(ctx context.Context, cfg config.IngestConfig, emb embeddings.Embedder, logger *slog.Logger) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := New(pool, cfg, emb, logger)
	s.pool = pool
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection.
func New(db DB, cfg config.IngestConfig, emb embeddings.Embedder, logger *slog.Logger) *PGStore {
	return &PGStore{
		db:         db,
		table:      pgx.Identifier{cfg.Table}.Sanitize(),
		dimensions: cfg.Dimensions,
		embedder:   emb,
		logger:     logger.With("component", "pgvector"),
	}
}

// Migrate creates the extension and table if they do not exist.
func (s *PGStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id         uuid PRIMARY KEY,
			content    text NOT NULL,
			metadata   jsonb NOT NULL DEFAULT '{}'::jsonb,
			embedding  vector(%d) NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, s.table, s.dimensions),
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.table, err)
		}
	}
	return nil
}

// AddDocuments embeds each document's page content and inserts it. The
// returned ids follow input order.
func (s *PGStore) AddDocuments(ctx context.Context, docs []ingest.Document) ([]string, error) {
	if len(docs) == 0 {
		return []string{}, nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.PageContent
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	insert := fmt.Sprintf(`INSERT INTO %s (id, content, metadata, embedding) VALUES ($1, $2, $3, $4::vector)`, s.table)
	batch := &pgx.Batch{}
	ids := make([]string, len(docs))
	for i, d := range docs {
		id := uuid.New()
		ids[i] = id.String()
		meta := d.Metadata
		if meta == nil {
			meta = map[string]string{}
		}
		batch.Queue(insert, id, strings.ToValidUTF8(d.PageContent, ""), meta, VectorLiteral(vecs[i]))
	}

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()
	for i := range docs {
		if _, err := br.Exec(); err != nil {
			return nil, fmt.Errorf("insert document %d: %w", i, err)
		}
	}

	s.logger.Debug("documents inserted", "count", len(ids))
	return ids, nil
}

// SimilaritySearch returns the k documents closest to query.
func (s *PGStore) SimilaritySearch(ctx context.Context, query string, k int) ([]ScoredDocument, error) {
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`
		SELECT id::text, content, metadata, 1 - (embedding <=> $1::vector) AS score
		FROM %s
		ORDER BY embedding <=> $1::vector
		LIMIT $2`, s.table)
	rows, err := s.db.Query(ctx, sql, VectorLiteral(vecs[0]), k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var out []ScoredDocument
	for rows.Next() {
		var d ScoredDocument
		if err := rows.Scan(&d.ID, &d.PageContent, &d.Metadata, &d.Score); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close releases the pool when the store owns one.
func (s *PGStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// VectorLiteral formats v the way pgvector parses it: "[v1,v2,...]".
func VectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 8)
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
