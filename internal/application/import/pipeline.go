// Package importapp loads utility-account spreadsheets into the document
// store.
//
// An import runs as a fixed sequence of stages: parse the first worksheet,
// normalize columns, extract unique providers, properties and tenants, then
// write four ordered passes (providers, properties, tenants, utility
// accounts). Each pass feeds the ID map the next one needs. Writes go through
// store batches that stay below the backend's per-commit operation ceiling.
package importapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/propbill/backend/internal/domain/portfolio"
	"github.com/propbill/backend/internal/domain/shared"
	"github.com/propbill/backend/internal/infrastructure/docstore"
	"github.com/propbill/backend/internal/infrastructure/logger"
	"github.com/propbill/backend/internal/infrastructure/metrics"
	"github.com/propbill/backend/internal/infrastructure/persistence"
	"github.com/propbill/backend/internal/infrastructure/spreadsheet"
	"go.uber.org/zap"
)

// DefaultBatchSize keeps batches under the common 500-operation ceiling
const DefaultBatchSize = 450

// ErrMissingBPColumn is returned when the sheet has no BP Number column
var ErrMissingBPColumn = shared.NewDomainError("IMPORT_MISSING_COLUMN",
	fmt.Sprintf("Spreadsheet has no %q column", HeaderBPNumber))

// Source is a spreadsheet to import. Name selects the format by extension.
type Source struct {
	Name string
	Body io.Reader
}

// Summary counts what an import wrote. SkippedRows lists at most the first
// 100 skips; SkippedTruncated is set when there were more.
type Summary struct {
	ImportID         string       `json:"importId"`
	Rows             int          `json:"rows"`
	Providers        int          `json:"providers"`
	Properties       int          `json:"properties"`
	Tenants          int          `json:"tenants"`
	UtilityAccounts  int          `json:"utilityAccounts"`
	Skipped          int          `json:"skipped"`
	SkippedRows      []SkippedRow `json:"skippedRows,omitempty"`
	SkippedTruncated bool         `json:"skippedTruncated,omitempty"`
	Batches          int          `json:"batches"`
	Duration         string       `json:"duration"`
}

// ProgressFunc receives human-readable progress lines
type ProgressFunc func(line string)

// Option configures a single import run
type Option func(*runOptions)

type runOptions struct {
	progress ProgressFunc
}

// WithProgress reports each stage to fn in addition to the log
func WithProgress(fn ProgressFunc) Option {
	return func(o *runOptions) {
		o.progress = fn
	}
}

// PipelineConfig holds the pipeline's collaborators and limits
type PipelineConfig struct {
	// BatchSize is the number of writes per commit. It is capped below the
	// store's MaxBatchOps.
	BatchSize int
	// Company is recorded on every imported property
	Company string
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Pipeline runs spreadsheet imports against a document store
type Pipeline struct {
	store     docstore.Store
	batchSize int
	company   string
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewPipeline creates a new import Pipeline
func NewPipeline(store docstore.Store, cfg PipelineConfig) *Pipeline {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	company := cfg.Company
	if company == "" {
		company = portfolio.DefaultCompany
	}
	return &Pipeline{
		store:     store,
		batchSize: effectiveBatchSize(cfg.BatchSize, store.MaxBatchOps()),
		company:   company,
		metrics:   cfg.Metrics,
		logger:    log,
	}
}

// effectiveBatchSize keeps the batch strictly below the store ceiling
func effectiveBatchSize(requested, ceiling int) int {
	if ceiling <= 0 {
		ceiling = docstore.DefaultMaxBatchOps
	}
	size := requested
	if size <= 0 {
		size = DefaultBatchSize
	}
	if size >= ceiling {
		size = ceiling * 9 / 10
	}
	if size < 1 {
		size = 1
	}
	return size
}

// BatchSize returns the effective number of writes per commit
func (p *Pipeline) BatchSize() int {
	return p.batchSize
}

// Import parses src and writes its providers, properties, tenants and
// utility accounts. A parse failure returns before any write. A write
// failure stops the run; batches committed before it are kept.
func (p *Pipeline) Import(ctx context.Context, src Source, opts ...Option) (Summary, error) {
	o := runOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	run := &importRun{
		pipeline: p,
		progress: o.progress,
		started:  time.Now(),
		skips:    newSkipLog(maxReportedSkips),
	}
	run.summary.ImportID = uuid.NewString()
	ctx = logger.WithImportID(ctx, run.summary.ImportID)
	run.log = logger.L(ctx, p.logger).With(zap.String("source", src.Name))

	summary, err := run.execute(ctx, src)
	if err != nil {
		p.metrics.ObserveImportRun(metrics.ResultFailed, summary.Skipped)
		run.log.Error("Import failed",
			zap.Int("providers", summary.Providers),
			zap.Int("properties", summary.Properties),
			zap.Int("tenants", summary.Tenants),
			zap.Int("utility_accounts", summary.UtilityAccounts),
			zap.Error(err))
		return summary, err
	}
	p.metrics.ObserveImportRun(metrics.ResultSuccess, summary.Skipped)
	return summary, nil
}

// importRun carries the state of one Import call
type importRun struct {
	pipeline *Pipeline
	progress ProgressFunc
	log      *zap.Logger
	started  time.Time
	skips    *skipLog
	summary  Summary
}

func (r *importRun) execute(ctx context.Context, src Source) (Summary, error) {
	reader, err := spreadsheet.ReaderFor(src.Name)
	if err != nil {
		return r.summary, err
	}
	parsed, err := reader.Read(src.Body)
	if err != nil {
		return r.summary, fmt.Errorf("failed to parse %s: %w", src.Name, err)
	}
	if len(parsed) > 0 && !hasColumn(parsed, HeaderBPNumber) {
		return r.summary, ErrMissingBPColumn
	}

	rows := Normalize(parsed)
	r.summary.Rows = len(rows)
	r.report(fmt.Sprintf("Parsed %d rows from %s", len(rows), src.Name))

	ex := Extract(rows, r.pipeline.company)
	r.report(fmt.Sprintf("Found %d providers, %d properties, %d tenants",
		len(ex.Providers), len(ex.Properties), len(ex.Tenants)))

	providerIDs, err := r.writeProviders(ctx, ex.Providers)
	if err != nil {
		return r.summary, err
	}
	propertyIDs, err := r.writeProperties(ctx, ex.Properties)
	if err != nil {
		return r.summary, err
	}
	tenantIDs, err := r.writeTenants(ctx, ex, propertyIDs)
	if err != nil {
		return r.summary, err
	}
	if err := r.writeAccounts(ctx, ex.Rows, providerIDs, propertyIDs, tenantIDs); err != nil {
		return r.summary, err
	}

	r.summary.Duration = time.Since(r.started).Round(time.Millisecond).String()
	r.report(fmt.Sprintf("Import complete: %d providers, %d properties, %d tenants, %d utility accounts, %d rows skipped",
		r.summary.Providers, r.summary.Properties, r.summary.Tenants, r.summary.UtilityAccounts, r.summary.Skipped))
	return r.summary, nil
}

func (r *importRun) writeProviders(ctx context.Context, providers []*portfolio.Provider) (ProviderIDs, error) {
	docs := make([]docstore.Document, 0, len(providers))
	for _, p := range providers {
		docs = append(docs, persistence.ProviderDocument(p))
	}
	ids, err := r.writePass(ctx, persistence.CollectionProviders, docs)
	r.summary.Providers = len(ids)
	if err != nil {
		return nil, err
	}
	out := make(ProviderIDs, len(ids))
	for i, id := range ids {
		providers[i].ID = id
		out[providers[i].Name] = id
	}
	return out, nil
}

func (r *importRun) writeProperties(ctx context.Context, properties []*portfolio.Property) (PropertyIDs, error) {
	docs := make([]docstore.Document, 0, len(properties))
	for _, p := range properties {
		docs = append(docs, persistence.PropertyDocument(p))
	}
	ids, err := r.writePass(ctx, persistence.CollectionProperties, docs)
	r.summary.Properties = len(ids)
	if err != nil {
		return nil, err
	}
	out := make(PropertyIDs, len(ids))
	for i, id := range ids {
		properties[i].ID = id
		out[properties[i].BPNumber] = id
	}
	return out, nil
}

// writeTenants places each tenant in the property of the first row that
// named it, when that property was written
func (r *importRun) writeTenants(ctx context.Context, ex *Extraction, propertyIDs PropertyIDs) (TenantIDs, error) {
	docs := make([]docstore.Document, 0, len(ex.Tenants))
	for _, t := range ex.Tenants {
		if propertyID, ok := propertyIDs[ex.TenantBPNumber(t.Name)]; ok {
			t.AssignTo(propertyID)
		}
		docs = append(docs, persistence.TenantDocument(t))
	}
	ids, err := r.writePass(ctx, persistence.CollectionTenants, docs)
	r.summary.Tenants = len(ids)
	if err != nil {
		return nil, err
	}
	out := make(TenantIDs, len(ids))
	for i, id := range ids {
		ex.Tenants[i].ID = id
		out[ex.Tenants[i].Name] = id
	}
	return out, nil
}

func (r *importRun) writeAccounts(
	ctx context.Context,
	rows []AccountRow,
	providerIDs ProviderIDs,
	propertyIDs PropertyIDs,
	tenantIDs TenantIDs,
) error {
	docs := make([]docstore.Document, 0, len(rows))
	for _, row := range rows {
		if row.BPNumber == "" {
			r.skips.Add(SkippedRow{Line: row.Line, Reason: "missing BP number"})
			continue
		}
		propertyID, ok := propertyIDs[row.BPNumber]
		if !ok {
			r.skips.Add(SkippedRow{Line: row.Line, BPNumber: row.BPNumber, Reason: "unknown BP number"})
			continue
		}

		acct, err := portfolio.NewUtilityAccount(propertyID, row.BPNumber)
		if err != nil {
			r.skips.Add(SkippedRow{Line: row.Line, BPNumber: row.BPNumber, Reason: err.Error()})
			continue
		}
		acct.TenantName = row.TenantName
		if row.HasOccupant() {
			if id, ok := tenantIDs[row.TenantName]; ok {
				acct.TenantID = &id
			}
		}
		acct.ProviderName = row.ProviderName()
		if id, ok := providerIDs[acct.ProviderName]; ok {
			acct.ProviderID = &id
		}
		acct.AccountNumber = row.AccountNumber
		acct.SAPAccountNumber = row.SAPAccountNumber
		acct.UtilityTypes = append(acct.UtilityTypes, row.UtilityTypes...)
		docs = append(docs, persistence.UtilityAccountDocument(acct))
	}

	r.summary.Skipped = r.skips.Total()
	r.summary.SkippedRows = r.skips.Rows()
	r.summary.SkippedTruncated = r.skips.IsTruncated()

	ids, err := r.writePass(ctx, persistence.CollectionUtilityAccounts, docs)
	r.summary.UtilityAccounts = len(ids)
	return err
}

// writePass commits docs in sequential batches and returns the IDs of every
// document in committed batches, in input order
func (r *importRun) writePass(ctx context.Context, collection string, docs []docstore.Document) ([]string, error) {
	size := r.pipeline.batchSize
	ids := make([]string, 0, len(docs))

	for start, n := 0, 1; start < len(docs); start, n = start+size, n+1 {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		end := start + size
		if end > len(docs) {
			end = len(docs)
		}

		batch := r.pipeline.store.NewBatch()
		pending := make([]string, 0, end-start)
		for _, doc := range docs[start:end] {
			id, err := batch.Set(collection, doc)
			if err != nil {
				return ids, fmt.Errorf("failed to queue %s write: %w", collection, err)
			}
			pending = append(pending, id)
		}
		if err := batch.Commit(ctx); err != nil {
			return ids, fmt.Errorf("failed to commit %s batch %d: %w", collection, n, err)
		}

		ids = append(ids, pending...)
		r.summary.Batches++
		r.pipeline.metrics.ObserveImportBatch(collection, len(pending))
		r.report(fmt.Sprintf("Committed %s batch %d (%d ops)", collection, n, len(pending)))
	}
	return ids, nil
}

// report logs a progress line and hands it to the caller's callback. A
// panicking callback does not stop the import.
func (r *importRun) report(line string) {
	r.log.Info(line)
	if r.progress == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Warn("Progress callback panicked", zap.Any("panic", rec))
		}
	}()
	r.progress(line)
}

// IsParseError reports whether err came from reading the spreadsheet
func IsParseError(err error) bool {
	var pe *spreadsheet.ParseError
	return errors.As(err, &pe) ||
		errors.Is(err, spreadsheet.ErrEmptyFile) ||
		errors.Is(err, spreadsheet.ErrMissingHeader) ||
		errors.Is(err, spreadsheet.ErrNoWorksheet) ||
		errors.Is(err, spreadsheet.ErrInvalidEncoding) ||
		errors.Is(err, spreadsheet.ErrUnsupportedFormat)
}
