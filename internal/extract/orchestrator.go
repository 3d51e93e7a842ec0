package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/facturapass/password-assigner/constants"
	"github.com/facturapass/password-assigner/internal/common"
	"github.com/facturapass/password-assigner/internal/entity"
)

// Orchestrator classifies each document, sequences the extraction strategies
// with fallback, and flattens results into one ordered batch. Strategies are
// injected from the capability registry resolved at process start; a nil
// strategy means the capability is disabled.
type Orchestrator struct {
	logger   *slog.Logger
	profiles ProfileResolver
	tabular  Strategy
	pdfTable Strategy
	vision   Strategy
}

func NewOrchestrator(logger *slog.Logger, profiles ProfileResolver, tabular, pdfTable, vision Strategy) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		logger:   logger,
		profiles: profiles,
		tabular:  tabular,
		pdfTable: pdfTable,
		vision:   vision,
	}
}

// ProcessBatch runs extraction for every document sequentially. Per-document
// failures are logged, recorded on the batch report, and never abort the
// remaining documents.
func (o *Orchestrator) ProcessBatch(ctx context.Context, docs []Document) *entity.ExtractionBatch {
	batch := &entity.ExtractionBatch{BatchID: uuid.New()}

	for _, doc := range docs {
		batch.Log = append(batch.Log, fmt.Sprintf("processing %s (%s)", doc.Filename, doc.MediaType))

		passwords, err := o.processDocument(ctx, doc)
		if err != nil {
			o.logger.Error("extract.document.failed", "document", doc.Filename, "error", err)
			batch.Errors = append(batch.Errors, entity.DocumentError{
				Document: doc.Filename,
				Message:  err.Error(),
			})
			batch.Log = append(batch.Log, fmt.Sprintf("  -> ERROR: %v", err))
			continue
		}

		batch.Documents = append(batch.Documents, entity.DocumentExtraction{
			Document:  doc.Filename,
			Passwords: passwords,
		})
		batch.Log = append(batch.Log, fmt.Sprintf("  -> %d passwords found", len(passwords)))
	}

	o.logger.Info("extract.batch.done",
		"batch_id", batch.BatchID,
		"documents", len(batch.Documents),
		"errors", len(batch.Errors),
	)
	return batch
}

func (o *Orchestrator) processDocument(ctx context.Context, doc Document) (passwords []entity.ExtractedPassword, err error) {
	// One document must never take the batch down with it.
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("extract.document.panic", "document", doc.Filename, "panic", r)
			passwords, err = nil, fmt.Errorf("extraction panic: %v", r)
		}
	}()

	switch constants.Classify(doc.Filename, doc.MediaType) {
	case constants.FileClassTabular:
		return o.extractTabular(ctx, doc)
	case constants.FileClassPDFOrImage:
		return o.extractPDFOrImage(ctx, doc)
	default:
		return nil, common.UnsupportedFormatErrorf("unsupported file type: %s (%s)", doc.Filename, doc.MediaType)
	}
}

func (o *Orchestrator) extractTabular(ctx context.Context, doc Document) ([]entity.ExtractedPassword, error) {
	if o.tabular == nil {
		return nil, common.ConfigurationErrorf("tabular extraction is disabled")
	}
	if doc.Profile == nil {
		if doc.ProfileID == "" {
			return nil, common.ConfigurationErrorf("no template bound for tabular file %s", doc.Filename)
		}
		profile, err := o.profiles.Resolve(ctx, doc.ProfileID)
		if err != nil {
			return nil, err
		}
		doc.Profile = profile
	}
	return o.tabular.TryExtract(ctx, doc)
}

func (o *Orchestrator) extractPDFOrImage(ctx context.Context, doc Document) ([]entity.ExtractedPassword, error) {
	if constants.IsPDF(doc.Filename, doc.MediaType) && o.pdfTable != nil {
		passwords, err := o.pdfTable.TryExtract(ctx, doc)
		if err != nil {
			o.logger.Warn("extract.pdftable.failed", "document", doc.Filename, "error", err)
		} else if len(passwords) > 0 {
			return passwords, nil
		} else {
			o.logger.Info("extract.pdftable.declined", "document", doc.Filename)
		}
	}

	if o.vision == nil {
		return nil, common.ConfigurationErrorf("vision extraction is not configured (missing API credentials)")
	}
	return o.vision.TryExtract(ctx, doc)
}
