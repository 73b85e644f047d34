package activities

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crestonhq/researchd/internal/db"
	"github.com/crestonhq/researchd/internal/documents"
	"github.com/crestonhq/researchd/internal/metrics"
)

// DocumentActivities holds dependencies for document processing
type DocumentActivities struct {
	dbClient      *db.Client
	extractor     documents.Extractor
	summarizer    *documents.Summarizer
	summaryLength int
	logger        *zap.Logger
}

// NewDocumentActivities creates document activities with dependencies
func NewDocumentActivities(dbClient *db.Client, extractor documents.Extractor, summarizer *documents.Summarizer, summaryLength int, logger *zap.Logger) *DocumentActivities {
	if summaryLength <= 0 {
		summaryLength = documents.DefaultSummaryLength
	}
	return &DocumentActivities{
		dbClient:      dbClient,
		extractor:     extractor,
		summarizer:    summarizer,
		summaryLength: summaryLength,
		logger:        logger,
	}
}

// ProcessDocument extracts text from one uploaded file and stores a
// summary for later research calls. Extraction failures are recorded on
// the document row and reported in the result, not returned as activity
// errors, so the workflow completes without retrying a bad file.
func (a *DocumentActivities) ProcessDocument(ctx context.Context, input ProcessDocumentInput) (ProcessDocumentResult, error) {
	sessionID, err := uuid.Parse(input.SessionID)
	if err != nil {
		return ProcessDocumentResult{}, fmt.Errorf("invalid session id %q: %w", input.SessionID, err)
	}
	documentID, err := uuid.Parse(input.DocumentID)
	if err != nil {
		return ProcessDocumentResult{}, fmt.Errorf("invalid document id %q: %w", input.DocumentID, err)
	}

	doc, err := a.dbClient.GetDocument(ctx, sessionID, documentID)
	if err != nil {
		return ProcessDocumentResult{}, err
	}

	text, err := a.extractor.Extract(doc.FilePath, doc.FileName, doc.FileType)
	if err != nil {
		var extractionErr *documents.ExtractionError
		if errors.As(err, &extractionErr) {
			message := extractionErr.Error()
			if dbErr := a.dbClient.SetDocumentError(ctx, documentID, message); dbErr != nil {
				return ProcessDocumentResult{}, dbErr
			}
			metrics.DocumentsProcessed.WithLabelValues(doc.FileType, "error").Inc()
			a.logger.Warn("Document extraction failed",
				zap.String("document_id", input.DocumentID),
				zap.String("file_name", doc.FileName),
				zap.Error(extractionErr),
			)
			return ProcessDocumentResult{
				DocumentID:   input.DocumentID,
				Processed:    false,
				ErrorMessage: message,
			}, nil
		}
		return ProcessDocumentResult{}, err
	}

	summary := a.summarizer.Summarize(ctx, text, a.summaryLength)
	if err := a.dbClient.SetDocumentProcessed(ctx, documentID, text, summary); err != nil {
		return ProcessDocumentResult{}, err
	}

	metrics.DocumentsProcessed.WithLabelValues(doc.FileType, "processed").Inc()
	a.logger.Info("Document processed",
		zap.String("document_id", input.DocumentID),
		zap.String("file_name", doc.FileName),
		zap.Int("extracted_chars", len(text)),
	)
	return ProcessDocumentResult{
		DocumentID: input.DocumentID,
		Processed:  true,
	}, nil
}
