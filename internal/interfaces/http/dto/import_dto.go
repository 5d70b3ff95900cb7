package dto

import (
	"time"

	"github.com/propbill/backend/internal/domain/bulk"
)

// ImportProgressEvent is one line streamed while an import runs
type ImportProgressEvent struct {
	Line string `json:"line"`
}

// ImportRunResponse is the recorded outcome of an import
type ImportRunResponse struct {
	ImportID        string     `json:"importId"`
	FileName        string     `json:"fileName"`
	FileSize        int64      `json:"fileSize"`
	ArchiveKey      string     `json:"archiveKey,omitempty"`
	Status          string     `json:"status"`
	Rows            int        `json:"rows"`
	Providers       int        `json:"providers"`
	Properties      int        `json:"properties"`
	Tenants         int        `json:"tenants"`
	UtilityAccounts int        `json:"utilityAccounts"`
	Skipped         int        `json:"skipped"`
	Error           string     `json:"error,omitempty"`
	StartedAt       time.Time  `json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

// ToImportRunResponse converts a run record to its API shape
func ToImportRunResponse(run *bulk.ImportRun) ImportRunResponse {
	resp := ImportRunResponse{
		ImportID:        run.ImportID,
		FileName:        run.FileName,
		FileSize:        run.FileSize,
		ArchiveKey:      run.ArchiveKey,
		Status:          string(run.Status),
		Rows:            run.Counts.Rows,
		Providers:       run.Counts.Providers,
		Properties:      run.Counts.Properties,
		Tenants:         run.Counts.Tenants,
		UtilityAccounts: run.Counts.UtilityAccounts,
		Skipped:         run.Counts.Skipped,
		Error:           run.Error,
		StartedAt:       run.StartedAt,
	}
	if !run.CompletedAt.IsZero() {
		completed := run.CompletedAt
		resp.CompletedAt = &completed
	}
	return resp
}
