package importapp

import (
	"bytes"
	"context"
	"time"

	"github.com/propbill/backend/internal/domain/bulk"
	"github.com/propbill/backend/internal/infrastructure/storage"
	"go.uber.org/zap"
)

// Upload is a spreadsheet received over HTTP
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Service wraps the pipeline for uploaded files: it archives the upload,
// runs the import and records the outcome as an ImportRun
type Service struct {
	pipeline *Pipeline
	archive  storage.Archive
	runs     bulk.ImportRunRepository
	logger   *zap.Logger
}

// NewService creates a new import Service. archive and runs may be nil.
func NewService(pipeline *Pipeline, archive storage.Archive, runs bulk.ImportRunRepository, logger *zap.Logger) *Service {
	if archive == nil {
		archive = storage.NopArchive{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		pipeline: pipeline,
		archive:  archive,
		runs:     runs,
		logger:   logger,
	}
}

// ImportUpload runs the pipeline over an uploaded file. Archiving and run
// recording are best effort: their failures are logged, never returned.
func (s *Service) ImportUpload(ctx context.Context, upload Upload, opts ...Option) (Summary, error) {
	started := time.Now()

	archiveKey, err := s.archive.Store(ctx, upload.FileName, upload.Data, upload.ContentType)
	if err != nil {
		s.logger.Warn("Failed to archive import upload",
			zap.String("file", upload.FileName),
			zap.Error(err))
	}

	summary, importErr := s.pipeline.Import(ctx, Source{
		Name: upload.FileName,
		Body: bytes.NewReader(upload.Data),
	}, opts...)

	s.record(ctx, upload, archiveKey, summary, started, importErr)
	return summary, importErr
}

// GetRun returns the recorded outcome of an import
func (s *Service) GetRun(ctx context.Context, importID string) (*bulk.ImportRun, error) {
	return s.runs.FindByImportID(ctx, importID)
}

func (s *Service) record(ctx context.Context, upload Upload, archiveKey string, summary Summary, started time.Time, importErr error) {
	if s.runs == nil {
		return
	}
	run, err := bulk.NewImportRun(summary.ImportID, upload.FileName, int64(len(upload.Data)), started)
	if err != nil {
		s.logger.Warn("Failed to build import run record", zap.Error(err))
		return
	}
	run.ArchiveKey = archiveKey

	counts := summary.Counts()
	if importErr != nil {
		_ = run.Fail(counts, importErr, time.Now())
	} else {
		_ = run.Complete(counts, time.Now())
	}

	// the request context may already be cancelled
	if err := s.runs.Create(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Warn("Failed to record import run",
			zap.String("import_id", summary.ImportID),
			zap.Error(err))
	}
}

// Counts converts the summary to run counts
func (s Summary) Counts() bulk.ImportCounts {
	return bulk.ImportCounts{
		Rows:            s.Rows,
		Providers:       s.Providers,
		Properties:      s.Properties,
		Tenants:         s.Tenants,
		UtilityAccounts: s.UtilityAccounts,
		Skipped:         s.Skipped,
	}
}
