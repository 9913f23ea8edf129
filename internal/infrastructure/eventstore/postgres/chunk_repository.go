package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/tutor-context/internal/core/domain"
)

// ChunkRepository reads tutoring event chunks out of Postgres. The
// write path lives in the ingestion service; this side only hydrates
// and lists.
type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ChunkRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/auditor startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082401)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS event_chunks (
	chunk_id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL,
	chunk_text TEXT NOT NULL,
	topic_tags JSONB NOT NULL DEFAULT '[]'::jsonb,
	skill_tags JSONB NOT NULL DEFAULT '[]'::jsonb,
	embedding JSONB,
	created_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_event_chunks_event_id ON event_chunks(event_id);
CREATE INDEX IF NOT EXISTS idx_event_chunks_created_at ON event_chunks(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const chunkColumns = `chunk_id, event_id, chunk_text, topic_tags, skill_tags, embedding, created_at`

func (r *ChunkRepository) GetChunksByIDs(ctx context.Context, chunkIDs []string) ([]domain.CandidateChunk, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(chunkIDs))
	args := make([]any, len(chunkIDs))
	for i, id := range chunkIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`
SELECT %s
FROM event_chunks
WHERE chunk_id IN (%s)
`, chunkColumns, strings.Join(placeholders, ","))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks by ids: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

func (r *ChunkRepository) ListRecentChunks(ctx context.Context, window domain.TimeWindow, limit int) ([]domain.CandidateChunk, error) {
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
SELECT %s
FROM event_chunks
WHERE created_at IS NOT NULL
`, chunkColumns)
	args := make([]any, 0, 3)

	if !window.From.IsZero() {
		args = append(args, window.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !window.To.IsZero() {
		args = append(args, window.To)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent chunks: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

func scanChunks(rows *sql.Rows) ([]domain.CandidateChunk, error) {
	var out []domain.CandidateChunk
	for rows.Next() {
		var chunk domain.CandidateChunk
		var topicsRaw, skillsRaw []byte
		var embeddingRaw sql.Null[[]byte]
		var createdAt sql.NullTime

		err := rows.Scan(
			&chunk.ChunkID, &chunk.SourceEventID, &chunk.Text,
			&topicsRaw, &skillsRaw, &embeddingRaw, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}

		if err := json.Unmarshal(topicsRaw, &chunk.TopicTags); err != nil {
			return nil, fmt.Errorf("unmarshal topic tags: %w", err)
		}
		if err := json.Unmarshal(skillsRaw, &chunk.SkillTags); err != nil {
			return nil, fmt.Errorf("unmarshal skill tags: %w", err)
		}
		if embeddingRaw.Valid && len(embeddingRaw.V) > 0 {
			if err := json.Unmarshal(embeddingRaw.V, &chunk.Embedding); err != nil {
				return nil, fmt.Errorf("unmarshal embedding: %w", err)
			}
		}
		if createdAt.Valid {
			chunk.CreatedAt = createdAt.Time.UTC()
		}

		out = append(out, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}
