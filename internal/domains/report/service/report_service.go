package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	refundmodel "refunds-backend/internal/domains/refund/model"
	refundrepo "refunds-backend/internal/domains/refund/repository"
	"refunds-backend/internal/domains/report/model"
	"refunds-backend/internal/infrastructure/storage"
	"refunds-backend/pkg/logger"
)

// =====================================================
// REPORT SERVICE
// =====================================================

const (
	// pageSize is the repository page used while collecting rows.
	pageSize = 500

	// maxRows caps one export; larger windows should be split.
	maxRows = 10000

	// downloadExpiry bounds the presigned link lifetime.
	downloadExpiry = 24 * time.Hour

	sheetName = "Refunds"
)

// ReportService exports refund listings as XLSX files in object storage.
type ReportService interface {
	Generate(ctx context.Context, merchantID string, req *model.GenerateReportRequest) (*model.Report, error)
}

type reportService struct {
	refunds refundrepo.RefundRepository
	storage storage.ObjectStorage
}

func NewReportService(refunds refundrepo.RefundRepository, objectStorage storage.ObjectStorage) ReportService {
	return &reportService{
		refunds: refunds,
		storage: objectStorage,
	}
}

func (s *reportService) Generate(ctx context.Context, merchantID string, req *model.GenerateReportRequest) (*model.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.collect(ctx, merchantID, req)
	if err != nil {
		return nil, err
	}

	data, err := buildWorkbook(rows)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	objectName := fmt.Sprintf("refunds/%s/refund-report-%s.xlsx", merchantID, now.Format("20060102-150405"))

	if _, err := s.storage.Upload(ctx, objectName, data,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"); err != nil {
		return nil, fmt.Errorf("failed to upload report: %w", err)
	}

	url, err := s.storage.PresignedURL(ctx, objectName, downloadExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to presign report: %w", err)
	}

	logger.Info("refund report generated", map[string]interface{}{
		"merchant_id": merchantID,
		"object":      objectName,
		"rows":        len(rows),
	})

	return &model.Report{
		ObjectName:  objectName,
		DownloadURL: url,
		RowCount:    len(rows),
		ExpiresAt:   now.Add(downloadExpiry),
		GeneratedAt: now,
	}, nil
}

func (s *reportService) collect(ctx context.Context, merchantID string, req *model.GenerateReportRequest) ([]*refundmodel.RefundRequest, error) {
	var rows []*refundmodel.RefundRequest

	for page := 1; len(rows) < maxRows; page++ {
		batch, _, err := s.refunds.List(ctx, refundmodel.ListRefundsRequest{
			MerchantID: merchantID,
			Status:     req.Status,
			StartDate:  req.StartDate,
			EndDate:    req.EndDate,
			Page:       page,
			PageSize:   pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to collect refunds for report: %w", err)
		}

		rows = append(rows, batch...)
		if len(batch) < pageSize {
			break
		}
	}

	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	return rows, nil
}

var reportHeader = []string{
	"Refund ID", "Transaction ID", "Merchant ID", "Amount", "Currency",
	"Method", "Status", "Approval", "Gateway", "Gateway Reference",
	"Reason", "Created At", "Completed At",
}

func buildWorkbook(rows []*refundmodel.RefundRequest) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create report sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for col, title := range reportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheetName, cell, title); err != nil {
			return nil, fmt.Errorf("failed to write report header: %w", err)
		}
	}

	for i, refund := range rows {
		values := []interface{}{
			refund.ID,
			refund.TransactionID,
			refund.MerchantID,
			refund.Amount,
			refund.Currency,
			refund.RefundMethod,
			refund.Status,
			refund.ApprovalStatus,
			refund.GatewayType,
			stringOrEmpty(refund.GatewayReference),
			refund.Reason,
			refund.CreatedAt.Format(time.RFC3339),
			timeOrEmpty(refund.CompletedAt),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write report row: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize report: %w", err)
	}
	return buf.Bytes(), nil
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func timeOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
