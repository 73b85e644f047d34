package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateDocument inserts an uploaded document record
func (c *Client) CreateDocument(ctx context.Context, doc *UploadedDocument) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.UploadedAt = time.Now().UTC()

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO uploaded_documents (
			id, session_id, file_name, file_type, file_path, file_size,
			extracted_text, summary, error_message, uploaded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		doc.ID, doc.SessionID, doc.FileName, doc.FileType, doc.FilePath, doc.FileSize,
		doc.ExtractedText, doc.Summary, doc.ErrorMessage, doc.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	c.logger.Debug("Document created",
		zap.String("document_id", doc.ID.String()),
		zap.String("file_name", doc.FileName),
	)
	return nil
}

// GetDocument fetches a document by id within its session
func (c *Client) GetDocument(ctx context.Context, sessionID, documentID uuid.UUID) (*UploadedDocument, error) {
	var doc UploadedDocument
	err := c.db.GetContext(ctx, &doc,
		`SELECT * FROM uploaded_documents WHERE id = $1 AND session_id = $2`,
		documentID, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// ListDocuments returns a session's documents, newest first
func (c *Client) ListDocuments(ctx context.Context, sessionID uuid.UUID) ([]UploadedDocument, error) {
	var docs []UploadedDocument
	err := c.db.SelectContext(ctx, &docs,
		`SELECT * FROM uploaded_documents WHERE session_id = $1 ORDER BY uploaded_at DESC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// ListDocumentSummaries returns the non-empty document summaries for a
// session, oldest upload first, for context injection.
func (c *Client) ListDocumentSummaries(ctx context.Context, sessionID uuid.UUID) ([]string, error) {
	var summaries []string
	err := c.db.SelectContext(ctx, &summaries,
		`SELECT summary FROM uploaded_documents
		 WHERE session_id = $1 AND btrim(summary) <> ''
		 ORDER BY uploaded_at`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list document summaries: %w", err)
	}
	return summaries, nil
}

// SetDocumentProcessed stores extraction and summarization output. Written
// once per document; documents are never mutated afterward.
func (c *Client) SetDocumentProcessed(ctx context.Context, documentID uuid.UUID, extractedText, summary string) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE uploaded_documents
		 SET extracted_text = $1, summary = $2, error_message = '', processed_at = $3
		 WHERE id = $4`,
		extractedText, summary, time.Now().UTC(), documentID)
	if err != nil {
		return fmt.Errorf("failed to set document processed: %w", err)
	}
	return nil
}

// SetDocumentError records a per-document processing failure. The owning
// session is unaffected.
func (c *Client) SetDocumentError(ctx context.Context, documentID uuid.UUID, errorMessage string) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE uploaded_documents SET error_message = $1, processed_at = $2 WHERE id = $3`,
		errorMessage, time.Now().UTC(), documentID)
	if err != nil {
		return fmt.Errorf("failed to set document error: %w", err)
	}
	return nil
}
