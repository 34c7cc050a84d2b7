package models

import "time"

// ExportFormat selects the rendered breakdown report format.
type ExportFormat string

// Supported export formats.
const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportStatus tracks an export job's lifecycle.
type ExportStatus string

// Export job statuses.
const (
	ExportStatusQueued     ExportStatus = "QUEUED"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusDone       ExportStatus = "DONE"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// ExportJob is an asynchronous breakdown report render.
type ExportJob struct {
	ID         string          `json:"id"`
	Format     ExportFormat    `json:"format"`
	Filter     BreakdownFilter `json:"-"`
	Status     ExportStatus    `json:"status"`
	FilePath   string          `json:"-"`
	ResultURL  string          `json:"result_url,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedBy  string          `json:"created_by,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}
