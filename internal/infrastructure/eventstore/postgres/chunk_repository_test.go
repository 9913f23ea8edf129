package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/tutor-context/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*ChunkRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ChunkRepository{db: db}, mock, func() { _ = db.Close() }
}

func chunkRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"chunk_id", "event_id", "chunk_text", "topic_tags", "skill_tags", "embedding", "created_at",
	})
}

func TestGetChunksByIDsHydratesTagsAndEmbedding(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	created := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM event_chunks").
		WithArgs("c-1", "c-2").
		WillReturnRows(chunkRows().
			AddRow("c-1", "evt-1", "the chain rule", `["calculus"]`, `["differentiation"]`, `[0.1,0.2]`, created).
			AddRow("c-2", "evt-2", "matrices", `[]`, `[]`, nil, nil))

	chunks, err := repo.GetChunksByIDs(context.Background(), []string{"c-1", "c-2"})
	if err != nil {
		t.Fatalf("GetChunksByIDs() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	first := chunks[0]
	if first.ChunkID != "c-1" || first.SourceEventID != "evt-1" {
		t.Fatalf("unexpected first chunk %+v", first)
	}
	if len(first.TopicTags) != 1 || first.TopicTags[0] != "calculus" {
		t.Fatalf("expected topic tags hydrated, got %v", first.TopicTags)
	}
	if len(first.Embedding) != 2 {
		t.Fatalf("expected embedding hydrated, got %v", first.Embedding)
	}
	if !first.CreatedAt.Equal(created) {
		t.Fatalf("expected created_at %v, got %v", created, first.CreatedAt)
	}
	if !chunks[1].CreatedAt.IsZero() {
		t.Fatalf("expected zero time for null created_at, got %v", chunks[1].CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetChunksByIDsEmptyInputSkipsQuery(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	chunks, err := repo.GetChunksByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetChunksByIDs() error = %v", err)
	}
	if chunks != nil {
		t.Fatalf("expected nil for empty input, got %v", chunks)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRecentChunksAppliesWindowAndLimit(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM event_chunks WHERE created_at IS NOT NULL AND created_at >= (.+) AND created_at <= (.+) ORDER BY created_at DESC").
		WithArgs(from, to, 10).
		WillReturnRows(chunkRows().
			AddRow("c-1", "evt-1", "recent", `[]`, `[]`, nil, to.Add(-time.Hour)))

	chunks, err := repo.ListRecentChunks(context.Background(), domain.TimeWindow{From: from, To: to}, 10)
	if err != nil {
		t.Fatalf("ListRecentChunks() error = %v", err)
	}
	if len(chunks) != 1 || chunks[0].ChunkID != "c-1" {
		t.Fatalf("unexpected chunks %+v", chunks)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRecentChunksDefaultsLimit(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT (.+) FROM event_chunks WHERE created_at IS NOT NULL ORDER BY created_at DESC").
		WithArgs(50).
		WillReturnRows(chunkRows())

	chunks, err := repo.ListRecentChunks(context.Background(), domain.TimeWindow{}, 0)
	if err != nil {
		t.Fatalf("ListRecentChunks() error = %v", err)
	}
	if chunks != nil {
		t.Fatalf("expected no chunks, got %v", chunks)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
