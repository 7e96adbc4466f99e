package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/garyjia/hr-approval/internal/application/port"
	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/domain/identity"
)

const exportSheet = "Requests"

var exportHeader = []interface{}{"ID", "Requester", "Team Lead", "Status", "Summary", "Amount", "Created", "Updated"}

// ExportService renders a projection as an xlsx workbook
type ExportService interface {
	Export(ctx context.Context, scope Scope, actor identity.Identity, requestType entity.RequestType, w io.Writer) (string, error)

	// Archive renders the workbook into store under <request type>/<name>
	// and returns the stored file's full path
	Archive(ctx context.Context, scope Scope, actor identity.Identity, requestType entity.RequestType, store port.FileStorage) (string, error)
}

type exportServiceImpl struct {
	projections ProjectionService
	logger      Logger
	now         func() time.Time
}

// NewExportService creates a new ExportService
func NewExportService(projections ProjectionService, logger Logger) ExportService {
	if logger == nil {
		logger = nopLogger{}
	}
	return &exportServiceImpl{
		projections: projections,
		logger:      logger,
		now:         time.Now,
	}
}

// Export writes the workbook to w and returns its suggested file name
func (s *exportServiceImpl) Export(ctx context.Context, scope Scope, actor identity.Identity, requestType entity.RequestType, w io.Writer) (string, error) {
	rows, err := s.projections.List(ctx, scope, actor, requestType, Page{})
	if err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return "", fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return "", fmt.Errorf("failed to write header: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetCellStyle(exportSheet, "A1", "H1", style)
	}

	for i, req := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", fmt.Errorf("failed to address row %d: %w", i+2, err)
		}
		row := exportRow(req)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return "", fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(exportSheet, "E", "E", 48); err != nil {
		s.logger.Error("Failed to set column width", "error", err)
	}

	if err := f.Write(w); err != nil {
		return "", fmt.Errorf("failed to write workbook: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%s.xlsx", requestType, scope, s.now().Format("20060102"))
	s.logger.Info("Exported requests", "request_type", requestType, "scope", scope, "rows", len(rows), "user_id", actor.UserID)
	return name, nil
}

// Archive renders the workbook and saves it to store
func (s *exportServiceImpl) Archive(ctx context.Context, scope Scope, actor identity.Identity, requestType entity.RequestType, store port.FileStorage) (string, error) {
	var buf bytes.Buffer
	name, err := s.Export(ctx, scope, actor, requestType, &buf)
	if err != nil {
		return "", err
	}

	path := filepath.Join(string(requestType), name)
	if err := store.Save(ctx, path, buf.Bytes()); err != nil {
		s.logger.Error("Failed to archive export", "error", err, "path", path)
		return "", fmt.Errorf("failed to archive export: %w", err)
	}
	return store.GetFullPath(path), nil
}

func exportRow(req *entity.Request) []interface{} {
	teamLead := ""
	if req.TeamLeadID != nil {
		teamLead = fmt.Sprint(*req.TeamLeadID)
	}
	summary, amount := summarize(req.Payload)
	return []interface{}{
		req.ID,
		req.RequesterID,
		teamLead,
		req.DisplayStatus(),
		summary,
		amount,
		req.CreatedAt.Format("2006-01-02 15:04"),
		req.UpdatedAt.Format("2006-01-02 15:04"),
	}
}

// summarize renders a one-line description and, for claims, the amount
func summarize(p entity.Payload) (string, string) {
	switch v := p.(type) {
	case *entity.LeavePayload:
		return fmt.Sprintf("%s to %s: %s", v.FromDate, v.ToDate, v.Reason), ""
	case *entity.PermissionPayload:
		return fmt.Sprintf("%s %s-%s, %s: %s", v.Date, v.TimeOut, v.TimeIn, v.GoingTo, v.Reason), ""
	case *entity.TravelPayload:
		legs := make([]string, 0, len(v.JourneyDetails))
		for _, leg := range v.JourneyDetails {
			legs = append(legs, leg.From+" > "+leg.To)
		}
		return fmt.Sprintf("%s (%s): %s", v.Purpose, v.Date, strings.Join(legs, ", ")), ""
	case *entity.ConveyancePayload:
		return fmt.Sprintf("%d claim lines from %s", len(v.ClaimDetails), v.RequestDate), v.Total().StringFixed(2)
	case *entity.AssetPayload:
		names := make([]string, 0, len(v.ItemDetails))
		for _, item := range v.ItemDetails {
			names = append(names, item.Name)
		}
		return strings.Join(names, ", "), v.GrandTotal().StringFixed(2)
	default:
		return "", ""
	}
}
