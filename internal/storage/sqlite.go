// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		authors TEXT,
		year INTEGER,
		doc_type TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS artifacts (
		document_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		path TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (document_id, kind),
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS pipeline_status (
		document_id TEXT PRIMARY KEY,
		heading_chunks TEXT NOT NULL DEFAULT 'unstarted',
		content_chunks TEXT NOT NULL DEFAULT 'unstarted',
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line INTEGER NOT NULL,
		text TEXT NOT NULL,
		vectorization_decision TEXT NOT NULL,
		embedding_status TEXT NOT NULL DEFAULT 'not_queued',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_kind ON chunks(document_id, kind);
	CREATE INDEX IF NOT EXISTS idx_chunks_decision ON chunks(vectorization_decision);

	CREATE TABLE IF NOT EXISTS queries (
		id TEXT PRIMARY KEY,
		original_query TEXT NOT NULL,
		expanded_queries TEXT,
		hyde_answer TEXT,
		intent TEXT,
		entities TEXT,
		clean_retrieval_context TEXT,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS results (
		id TEXT PRIMARY KEY,
		query_id TEXT NOT NULL,
		response_text TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (query_id) REFERENCES queries(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_results_query_id ON results(query_id);

	CREATE TABLE IF NOT EXISTS rag_configs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		is_default INTEGER NOT NULL DEFAULT 0,
		config TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateDocument inserts a document. A missing ID is generated.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	doc.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, title, authors, year, doc_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.Authors, doc.Year, doc.DocType, doc.CreatedAt,
	)
	return err
}

// GetDocument returns a document by ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, authors, year, doc_type, created_at FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.Title, &doc.Authors, &doc.Year, &doc.DocType, &doc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns documents with offset and limit, newest first.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, authors, year, doc_type, created_at
		 FROM documents ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Authors, &doc.Year, &doc.DocType, &doc.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document; artifacts, chunks, and status cascade.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// UpsertArtifact records (or replaces) the path and content hash for a
// document's artifact of the given kind.
func (s *SQLiteStorage) UpsertArtifact(ctx context.Context, a *models.Artifact) error {
	a.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (document_id, kind, path, content_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(document_id, kind) DO UPDATE SET
			path = excluded.path,
			content_hash = excluded.content_hash,
			created_at = excluded.created_at`,
		a.DocumentID, a.Kind, a.Path, a.ContentHash, a.CreatedAt,
	)
	return err
}

// GetArtifact returns the recorded artifact for (docID, kind).
func (s *SQLiteStorage) GetArtifact(ctx context.Context, docID string, kind models.ArtifactKind) (*models.Artifact, error) {
	var a models.Artifact
	err := s.db.QueryRowContext(ctx,
		`SELECT document_id, kind, path, content_hash, created_at
		 FROM artifacts WHERE document_id = ? AND kind = ?`,
		docID, kind,
	).Scan(&a.DocumentID, &a.Kind, &a.Path, &a.ContentHash, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("artifact not found: %s/%s", docID, kind)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetPipelineStatus returns both stage flags for a document. Documents with
// no recorded status report both stages as unstarted.
func (s *SQLiteStorage) GetPipelineStatus(ctx context.Context, docID string) (*models.PipelineStatus, error) {
	var st models.PipelineStatus
	err := s.db.QueryRowContext(ctx,
		`SELECT document_id, heading_chunks, content_chunks, updated_at
		 FROM pipeline_status WHERE document_id = ?`, docID,
	).Scan(&st.DocumentID, &st.HeadingChunks, &st.ContentChunks, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return &models.PipelineStatus{
			DocumentID:    docID,
			HeadingChunks: models.StageUnstarted,
			ContentChunks: models.StageUnstarted,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// SetStageState upserts one stage flag for a document.
func (s *SQLiteStorage) SetStageState(ctx context.Context, docID string, stage models.Stage, state models.StageState) error {
	col := "heading_chunks"
	if stage == models.StageContentChunks {
		col = "content_chunks"
	}
	query := fmt.Sprintf(
		`INSERT INTO pipeline_status (document_id, %s, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(document_id) DO UPDATE SET %s = excluded.%s, updated_at = excluded.updated_at`,
		col, col, col,
	)
	_, err := s.db.ExecContext(ctx, query, docID, state, time.Now())
	return err
}

// ReplaceChunks atomically supersedes all chunks of the given kind for a
// document. Either the full new set is visible or the old set remains.
func (s *SQLiteStorage) ReplaceChunks(ctx context.Context, docID string, kind models.ChunkKind, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunks WHERE document_id = ? AND kind = ?`, docID, kind,
	); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, document_id, kind, start_line, end_line, text,
			vectorization_decision, embedding_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, ch := range chunks {
		ch.CreatedAt = now
		if ch.EmbeddingStatus == "" {
			ch.EmbeddingStatus = models.EmbeddingNotQueued
		}
		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.DocumentID, ch.Kind, ch.StartLine, ch.EndLine, ch.Text,
			ch.Decision, ch.EmbeddingStatus, ch.CreatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const chunkColumns = `id, document_id, kind, start_line, end_line, text,
	vectorization_decision, embedding_status, created_at`

func scanChunk(scan func(dest ...any) error) (*models.Chunk, error) {
	var ch models.Chunk
	err := scan(&ch.ID, &ch.DocumentID, &ch.Kind, &ch.StartLine, &ch.EndLine,
		&ch.Text, &ch.Decision, &ch.EmbeddingStatus, &ch.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// GetChunk returns a chunk by ID.
func (s *SQLiteStorage) GetChunk(ctx context.Context, id string) (*models.Chunk, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE id = ?`, id)
	ch, err := scanChunk(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chunk not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// GetChunksByIDs returns the chunks for the given IDs, in ID order.
// Missing IDs are silently skipped.
func (s *SQLiteStorage) GetChunksByIDs(ctx context.Context, ids []string) ([]*models.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE id IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chunks []*models.Chunk
	for rows.Next() {
		ch, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

// GetChunksByDocument returns a document's chunks of one kind, ordered by
// start line then ID.
func (s *SQLiteStorage) GetChunksByDocument(ctx context.Context, docID string, kind models.ChunkKind) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE document_id = ? AND kind = ?
		 ORDER BY start_line, id`, docID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chunks []*models.Chunk
	for rows.Next() {
		ch, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

// SetEmbeddingStatus updates the embedding status of the given chunk IDs.
func (s *SQLiteStorage) SetEmbeddingStatus(ctx context.Context, ids []string, status models.EmbeddingStatus) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, status)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE chunks SET embedding_status = ? WHERE id IN (`+placeholders+`)`, args...)
	return err
}

// ListChunksByDecision returns all chunks carrying the given decision,
// ordered by ID for determinism.
func (s *SQLiteStorage) ListChunksByDecision(ctx context.Context, decision models.VectorizationDecision) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE vectorization_decision = ? ORDER BY id`, decision)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chunks []*models.Chunk
	for rows.Next() {
		ch, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CreateQuery inserts a query row. A missing ID is generated.
func (s *SQLiteStorage) CreateQuery(ctx context.Context, q *models.Query) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	q.UpdatedAt = time.Now()
	expanded, _ := json.Marshal(q.ExpandedQueries)
	entities, _ := json.Marshal(q.Entities)
	contextItems, _ := json.Marshal(q.CleanRetrievalContext)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queries (id, original_query, expanded_queries, hyde_answer, intent,
			entities, clean_retrieval_context, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.OriginalQuery, string(expanded), q.HydeAnswer, q.Intent,
		string(entities), string(contextItems), q.UpdatedAt,
	)
	return err
}

// GetQuery returns a query by ID.
func (s *SQLiteStorage) GetQuery(ctx context.Context, id string) (*models.Query, error) {
	var q models.Query
	var expanded, entities, contextItems string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, original_query, expanded_queries, hyde_answer, intent,
			entities, clean_retrieval_context, updated_at
		 FROM queries WHERE id = ?`, id,
	).Scan(&q.ID, &q.OriginalQuery, &expanded, &q.HydeAnswer, &q.Intent,
		&entities, &contextItems, &q.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("query not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(expanded), &q.ExpandedQueries)
	_ = json.Unmarshal([]byte(entities), &q.Entities)
	_ = json.Unmarshal([]byte(contextItems), &q.CleanRetrievalContext)
	return &q, nil
}

// SaveCleanContext replaces a query's curated retrieval context. Fewer than
// models.MinCleanContextItems items are rejected with
// *InsufficientContextError before anything is written. Item order is
// stored exactly as given.
func (s *SQLiteStorage) SaveCleanContext(ctx context.Context, queryID string, items []string) error {
	if len(items) < models.MinCleanContextItems {
		return &InsufficientContextError{Got: len(items), Min: models.MinCleanContextItems}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE queries SET clean_retrieval_context = ?, updated_at = ? WHERE id = ?`,
		string(data), time.Now(), queryID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("query not found: %s", queryID)
	}
	return nil
}

// AppendResult inserts a new result row. Prior results are never touched.
func (s *SQLiteStorage) AppendResult(ctx context.Context, r *models.Result) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (id, query_id, response_text, created_at) VALUES (?, ?, ?, ?)`,
		r.ID, r.QueryID, r.ResponseText, r.CreatedAt,
	)
	return err
}

// ListResults returns all results for a query, oldest first.
func (s *SQLiteStorage) ListResults(ctx context.Context, queryID string) ([]*models.Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query_id, response_text, created_at FROM results
		 WHERE query_id = ? ORDER BY rowid`, queryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []*models.Result
	for rows.Next() {
		var r models.Result
		if err := rows.Scan(&r.ID, &r.QueryID, &r.ResponseText, &r.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

// CreateRagConfig validates and inserts a config preset. When it is the
// first preset, it becomes the default.
func (s *SQLiteStorage) CreateRagConfig(ctx context.Context, c *models.RagConfig) error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	data, err := json.Marshal(c.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM rag_configs`).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		c.IsDefault = true
	}
	isDefault := 0
	if c.IsDefault {
		// Only one default at a time.
		if _, err := tx.ExecContext(ctx, `UPDATE rag_configs SET is_default = 0 WHERE is_default = 1`); err != nil {
			return err
		}
		isDefault = 1
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rag_configs (id, name, is_default, config, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, isDefault, string(data), c.CreatedAt, c.UpdatedAt,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateRagConfig validates and replaces a preset's parameters and name.
// The default flag is changed only through SetDefaultRagConfig.
func (s *SQLiteStorage) UpdateRagConfig(ctx context.Context, c *models.RagConfig) error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	c.UpdatedAt = time.Now()
	data, err := json.Marshal(c.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE rag_configs SET name = ?, config = ?, updated_at = ? WHERE id = ?`,
		c.Name, string(data), c.UpdatedAt, c.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("rag config not found: %s", c.ID)
	}
	return nil
}

func (s *SQLiteStorage) scanRagConfig(row *sql.Row) (*models.RagConfig, error) {
	var c models.RagConfig
	var isDefault int
	var data string
	err := row.Scan(&c.ID, &c.Name, &isDefault, &data, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.IsDefault = isDefault == 1
	if err := json.Unmarshal([]byte(data), &c.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// GetRagConfig returns a preset by ID.
func (s *SQLiteStorage) GetRagConfig(ctx context.Context, id string) (*models.RagConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, is_default, config, created_at, updated_at FROM rag_configs WHERE id = ?`, id)
	c, err := s.scanRagConfig(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rag config not found: %s", id)
	}
	return c, err
}

// GetRagConfigByName returns a preset by name.
func (s *SQLiteStorage) GetRagConfigByName(ctx context.Context, name string) (*models.RagConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, is_default, config, created_at, updated_at FROM rag_configs WHERE name = ?`, name)
	c, err := s.scanRagConfig(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rag config not found: %s", name)
	}
	return c, err
}

// GetDefaultRagConfig returns the active default preset.
func (s *SQLiteStorage) GetDefaultRagConfig(ctx context.Context) (*models.RagConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, is_default, config, created_at, updated_at FROM rag_configs WHERE is_default = 1`)
	c, err := s.scanRagConfig(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no default rag config")
	}
	return c, err
}

// ListRagConfigs returns all presets ordered by name.
func (s *SQLiteStorage) ListRagConfigs(ctx context.Context) ([]*models.RagConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, is_default, config, created_at, updated_at FROM rag_configs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var configs []*models.RagConfig
	for rows.Next() {
		var c models.RagConfig
		var isDefault int
		var data string
		if err := rows.Scan(&c.ID, &c.Name, &isDefault, &data, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.IsDefault = isDefault == 1
		if err := json.Unmarshal([]byte(data), &c.Config); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
		configs = append(configs, &c)
	}
	return configs, rows.Err()
}

// SetDefaultRagConfig makes the preset with the given ID the single default.
// The previous default is unset in the same transaction.
func (s *SQLiteStorage) SetDefaultRagConfig(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `UPDATE rag_configs SET is_default = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("rag config not found: %s", id)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE rag_configs SET is_default = 0 WHERE id != ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
