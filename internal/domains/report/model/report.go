package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// GenerateReportRequest asks for an XLSX export of refunds in a window.
type GenerateReportRequest struct {
	StartDate string `json:"start_date"` // RFC3339 or YYYY-MM-DD
	EndDate   string `json:"end_date"`
	Status    string `json:"status,omitempty"`
}

func (r GenerateReportRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.StartDate, validation.Required),
		validation.Field(&r.EndDate, validation.Required),
	)
}

// Report points at a generated export.
type Report struct {
	ObjectName  string    `json:"object_name"`
	DownloadURL string    `json:"download_url"`
	RowCount    int       `json:"row_count"`
	ExpiresAt   time.Time `json:"expires_at"`
	GeneratedAt time.Time `json:"generated_at"`
}
