package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hyperjump/kurabe/internal/models"
)

const documentColumns = `id, owner_id, title, content, content_hash, file_type, file_size, word_count, created_at, updated_at`

// CreateDocument inserts a document outside of a scan.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	return insertDocument(ctx, s.db, doc, "")
}

// keepExisting leaves a stored row with the same ID untouched.
const keepExisting = ` ON CONFLICT(id) DO NOTHING`

func insertDocument(ctx context.Context, ex execer, doc *models.Document, onConflict string) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`+onConflict,
		doc.ID, doc.OwnerID, doc.Title, doc.Content, doc.ContentHash, doc.FileType,
		doc.FileSize, doc.WordCount, doc.CreatedAt.UTC(), doc.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert document %s: %w", doc.ID, err)
	}
	return nil
}

// GetDocument returns a document by ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns documents newest first with offset and limit.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	return s.queryDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		limit, offset)
}

// ListCorpus returns every document except excludeID in insertion order.
func (s *SQLiteStorage) ListCorpus(ctx context.Context, excludeID string) ([]*models.Document, error) {
	return s.queryDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id != ? ORDER BY rowid ASC`,
		excludeID)
}

func (s *SQLiteStorage) queryDocuments(ctx context.Context, query string, args ...any) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var fileType sql.NullString
	err := row.Scan(&doc.ID, &doc.OwnerID, &doc.Title, &doc.Content, &doc.ContentHash, &fileType,
		&doc.FileSize, &doc.WordCount, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.FileType = fileType.String
	return &doc, nil
}
